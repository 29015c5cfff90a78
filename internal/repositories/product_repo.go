package repositories

import (
	"souq/internal/models"
)

// ProductRepository defines the interface for product catalog access.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id uint) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id uint) error
}
