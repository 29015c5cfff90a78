package repositories

import (
	"errors"
	"fmt"
	"time"

	"souq/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db: db,
	}
}

// Transaction runs fn against a repository bound to one database transaction.
// Any error returned by fn rolls the whole transaction back.
func (r *GORMCartRepository) Transaction(fn func(tx CartRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GORMCartRepository{db: tx})
	})
}

// PendingOrder retrieves the user's Pending order, if any.
func (r *GORMCartRepository) PendingOrder(userID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, "user_id = ? AND status = ?", userID, models.OrderStatusPending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pending order for user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pending order for user %d: %w", userID, err)
	}
	return &order, nil
}

// FindOrCreatePendingOrder returns the user's Pending order, creating it if
// absent. The partial unique index on (user_id, status='Pending') rejects a
// concurrent duplicate insert, in which case the winner's order is fetched.
func (r *GORMCartRepository) FindOrCreatePendingOrder(userID uint) (*models.Order, error) {
	order, err := r.PendingOrder(userID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created := models.Order{
		Status:    models.OrderStatusPending,
		OrderDate: time.Now(),
		UserID:    userID,
	}
	// ON CONFLICT DO NOTHING rather than a plain insert: a raw unique
	// violation aborts the whole enclosing transaction on Postgres, so the
	// lost race has to surface as zero rows affected instead of an error.
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&created)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create pending order for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return r.PendingOrder(userID)
	}
	return &created, nil
}

// DeleteOrder removes an order row.
func (r *GORMCartRepository) DeleteOrder(orderID uint) error {
	if err := r.db.Delete(&models.Order{}, "id = ?", orderID).Error; err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	return nil
}

// ItemsByOrder retrieves all line items of an order.
func (r *GORMCartRepository) ItemsByOrder(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.Find(&items, "order_id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("failed to get items for order %d: %w", orderID, err)
	}
	return items, nil
}

// ItemByOrderAndProduct retrieves the single line item for (order, product).
func (r *GORMCartRepository) ItemByOrderAndProduct(orderID, productID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.db.First(&item, "order_id = ? AND product_id = ?", orderID, productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item for order %d product %d: %w", orderID, productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item for order %d product %d: %w", orderID, productID, err)
	}
	return &item, nil
}

// SaveItem inserts a new line item or updates an existing one.
func (r *GORMCartRepository) SaveItem(item *models.OrderItem) error {
	if err := r.db.Save(item).Error; err != nil {
		return fmt.Errorf("failed to save order item: %w", err)
	}
	return nil
}

// DeleteItemsByOrder removes every line item of an order.
func (r *GORMCartRepository) DeleteItemsByOrder(orderID uint) error {
	if err := r.db.Delete(&models.OrderItem{}, "order_id = ?", orderID).Error; err != nil {
		return fmt.Errorf("failed to delete items for order %d: %w", orderID, err)
	}
	return nil
}

// InvoiceByOrder retrieves the invoice attached to an order.
func (r *GORMCartRepository) InvoiceByOrder(orderID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.First(&invoice, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice for order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice for order %d: %w", orderID, err)
	}
	return &invoice, nil
}

// SaveInvoice inserts a new invoice or updates an existing one.
func (r *GORMCartRepository) SaveInvoice(invoice *models.Invoice) error {
	if err := r.db.Save(invoice).Error; err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

// DeleteInvoiceByOrder removes the invoice of an order. Deleting when no
// invoice exists is not an error.
func (r *GORMCartRepository) DeleteInvoiceByOrder(orderID uint) error {
	if err := r.db.Delete(&models.Invoice{}, "order_id = ?", orderID).Error; err != nil {
		return fmt.Errorf("failed to delete invoice for order %d: %w", orderID, err)
	}
	return nil
}

// ProductByID retrieves a product by its ID.
func (r *GORMCartRepository) ProductByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return &product, nil
}

// ProductByName retrieves a product by its business name. Cart requests
// address products by name, not ID.
func (r *GORMCartRepository) ProductByName(name string) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with name %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by name %s: %w", name, err)
	}
	return &product, nil
}

// ReserveStock decrements a product's stock by quantity, guarded so stock can
// never go negative: the UPDATE only matches while enough units remain. Zero
// rows affected reports ErrInsufficientStock; that also covers a product row
// deleted since it was looked up, so callers must reserve in the same
// transaction as the lookup.
func (r *GORMCartRepository) ReserveStock(productID uint, quantity int) error {
	res := r.db.Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", productID, quantity).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to reserve stock for product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
	}
	return nil
}

// RestoreStock returns quantity units to a product's stock. A product that no
// longer exists is tolerated; the units are simply dropped.
func (r *GORMCartRepository) RestoreStock(productID uint, quantity int) error {
	res := r.db.Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to restore stock for product %d: %w", productID, res.Error)
	}
	return nil
}
