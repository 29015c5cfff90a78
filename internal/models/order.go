package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values. Cart operations only ever touch Pending orders.
const (
	OrderStatusPending   = "Pending"
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"
)

// Order represents a customer order. A Pending order is the user's open cart.
// The partial unique index guarantees at most one Pending order per user,
// closing the find-then-create race between concurrent requests.
type Order struct {
	ID        uint      `json:"order_id" gorm:"primaryKey"`
	Status    string    `json:"status" gorm:"type:varchar(50);index:idx_orders_user_pending,unique,where:status = 'Pending'"`
	OrderDate time.Time `json:"order_date"`
	UserID    uint      `json:"user_id" gorm:"index:idx_orders_user_pending,unique,where:status = 'Pending'"`
}

// OrderItem is one line of an order, linking a product to a quantity.
// (OrderID, ProductID) is unique so repeated adds merge into one line.
type OrderItem struct {
	ID        uint `json:"order_item_id" gorm:"primaryKey"`
	Quantity  int  `json:"quantity"`
	ProductID uint `json:"product_id" gorm:"uniqueIndex:idx_items_order_product"`
	OrderID   uint `json:"order_id" gorm:"uniqueIndex:idx_items_order_product"`
}

// Invoice is the derived total attached 1:1 to an order. TotalAmount is a
// cached value recomputed from the order's full item set on every cart
// mutation, never on read.
type Invoice struct {
	ID            uint            `json:"invoice_id" gorm:"primaryKey"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2)"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	PaymentMethod string          `json:"payment_method" gorm:"type:varchar(50)"`
	OrderID       uint            `json:"order_id" gorm:"uniqueIndex"`
	UserID        uint            `json:"user_id"`
}
