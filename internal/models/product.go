package models

import "github.com/shopspring/decimal"

// Category groups products in the catalog.
type Category struct {
	ID   uint   `json:"category_id" gorm:"primaryKey"`
	Name string `json:"category_name" gorm:"type:varchar(200)" validate:"required"`
}

// Product represents a product in the store. Quantity is the units currently
// in stock and must never go negative; reservations happen through
// conditional updates, not read-modify-write.
type Product struct {
	ID          uint            `json:"product_id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(255)" validate:"required,min=1,max=255"`
	Description string          `json:"description" gorm:"type:varchar(300)" validate:"omitempty,max=300"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	CategoryID  uint            `json:"category_id" validate:"required"`
}
