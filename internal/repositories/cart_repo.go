package repositories

import (
	"errors"

	"souq/internal/models"
)

// ErrInsufficientStock is returned by ReserveStock when the conditional
// decrement matches no row, i.e. the product no longer has enough units.
var ErrInsufficientStock = errors.New("insufficient stock")

// CartRepository defines the data access needed by the cart workflow: the
// user's Pending order, its line items, its invoice, and guarded stock
// adjustments on products. Transaction returns a repository bound to a single
// database transaction; every cart mutation runs entirely inside one.
type CartRepository interface {
	Transaction(fn func(tx CartRepository) error) error

	PendingOrder(userID uint) (*models.Order, error)
	FindOrCreatePendingOrder(userID uint) (*models.Order, error)
	DeleteOrder(orderID uint) error

	ItemsByOrder(orderID uint) ([]models.OrderItem, error)
	ItemByOrderAndProduct(orderID, productID uint) (*models.OrderItem, error)
	SaveItem(item *models.OrderItem) error
	DeleteItemsByOrder(orderID uint) error

	InvoiceByOrder(orderID uint) (*models.Invoice, error)
	SaveInvoice(invoice *models.Invoice) error
	DeleteInvoiceByOrder(orderID uint) error

	ProductByID(id uint) (*models.Product, error)
	ProductByName(name string) (*models.Product, error)
	ReserveStock(productID uint, quantity int) error
	RestoreStock(productID uint, quantity int) error
}
