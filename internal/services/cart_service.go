package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"souq/internal/models"
	"souq/internal/repositories"

	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by the cart workflow. Handlers map these onto
// HTTP status codes.
var (
	ErrNoActiveOrder   = errors.New("No active order found for user")
	ErrNoInvoice       = errors.New("No invoice found for the order")
	ErrInvalidQuantity = errors.New("Invalid quantity provided")
	ErrNoProducts      = errors.New("No products provided")
)

// ProductNotFoundError reports a cart request naming a product that does not
// exist in the catalog.
type ProductNotFoundError struct {
	Name string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product %s not found", e.Name)
}

// ItemNotInCartError reports an update for a product the cart holds no line
// item for.
type ItemNotInCartError struct {
	Name string
}

func (e *ItemNotInCartError) Error() string {
	return fmt.Sprintf("Product %s is not in the cart", e.Name)
}

// InsufficientStockError reports a requested quantity exceeding the units
// currently in stock.
type InsufficientStockError struct {
	Name string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for product %s", e.Name)
}

// CartLine is one requested (product name, quantity) pair in a cart request.
type CartLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// CartViewProduct is one resolved line item in a cart view.
type CartViewProduct struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// CartView is the read model of a user's open cart.
type CartView struct {
	OrderID     uint              `json:"order_id"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Products    []CartViewProduct `json:"products"`
	Date        string            `json:"date"`
}

const invoiceDateLayout = "2006-01-02 15:04:05"

// CartEventPublisher publishes cart lifecycle events to the message broker.
type CartEventPublisher interface {
	PublishCartEvent(eventType string, payload map[string]interface{}) error
}

// CartService orchestrates the cart workflow over Order, OrderItem, Invoice
// and Product rows. Its invariant: a user's Pending order's invoice total
// always equals the sum of price x quantity over the order's current items,
// and product stock always reflects the units reserved in carts. Every
// mutation runs in a single transaction, so an operation either applies
// fully or not at all.
type CartService struct {
	cartRepo repositories.CartRepository
	events   CartEventPublisher
}

// NewCartService creates a new CartService. The event publisher may be nil,
// in which case no events are emitted.
func NewCartService(cartRepo repositories.CartRepository, events CartEventPublisher) *CartService {
	return &CartService{
		cartRepo: cartRepo,
		events:   events,
	}
}

// GetCart returns the user's open cart: order id, invoice total and date, and
// the resolved line items. Items whose product has since been removed from
// the catalog are dropped from the view rather than failing the read.
func (s *CartService) GetCart(userID uint) (*CartView, error) {
	order, err := s.cartRepo.PendingOrder(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoActiveOrder
		}
		return nil, err
	}

	invoice, err := s.cartRepo.InvoiceByOrder(order.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// An order without an invoice is an inconsistent state; surface
			// it instead of repairing it here.
			return nil, ErrNoInvoice
		}
		return nil, err
	}

	items, err := s.cartRepo.ItemsByOrder(order.ID)
	if err != nil {
		return nil, err
	}

	products := make([]CartViewProduct, 0, len(items))
	for _, item := range items {
		product, err := s.cartRepo.ProductByID(item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, err
		}
		products = append(products, CartViewProduct{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			Price:     product.Price.StringFixed(2),
		})
	}

	return &CartView{
		OrderID:     order.ID,
		TotalAmount: invoice.TotalAmount,
		Products:    products,
		Date:        invoice.InvoiceDate.Format(invoiceDateLayout),
	}, nil
}

// AddToCart adds the requested products to the user's cart, creating the
// Pending order and its invoice on first use. Stock is reserved through
// guarded decrements, a product already in the cart gets its line item
// quantity increased instead of a duplicate row, and the invoice total is
// recomputed from the full current item set. All of it commits atomically.
func (s *CartService) AddToCart(userID uint, lines []CartLine, paymentMethod string) (uint, error) {
	for _, line := range lines {
		if line.Quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
	}

	var orderID uint
	err := s.cartRepo.Transaction(func(tx repositories.CartRepository) error {
		order, err := tx.FindOrCreatePendingOrder(userID)
		if err != nil {
			return err
		}
		orderID = order.ID

		for _, line := range lines {
			product, err := tx.ProductByName(line.Name)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return &ProductNotFoundError{Name: line.Name}
				}
				return err
			}

			if err := tx.ReserveStock(product.ID, line.Quantity); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return &InsufficientStockError{Name: product.Name}
				}
				return err
			}

			item, err := tx.ItemByOrderAndProduct(order.ID, product.ID)
			switch {
			case err == nil:
				item.Quantity += line.Quantity
			case errors.Is(err, repositories.ErrNotFound):
				item = &models.OrderItem{
					Quantity:  line.Quantity,
					ProductID: product.ID,
					OrderID:   order.ID,
				}
			default:
				return err
			}
			if err := tx.SaveItem(item); err != nil {
				return err
			}
		}

		total, err := orderTotal(tx, order.ID)
		if err != nil {
			return err
		}

		invoice, err := tx.InvoiceByOrder(order.ID)
		switch {
		case err == nil:
			invoice.TotalAmount = total
			invoice.PaymentMethod = paymentMethod
		case errors.Is(err, repositories.ErrNotFound):
			invoice = &models.Invoice{
				TotalAmount:   total,
				InvoiceDate:   time.Now(),
				PaymentMethod: paymentMethod,
				OrderID:       order.ID,
				UserID:        userID,
			}
		default:
			return err
		}
		return tx.SaveInvoice(invoice)
	})
	if err != nil {
		return 0, err
	}

	s.publish("cart.items_added", userID, orderID)
	return orderID, nil
}

// UpdateCart sets new quantities for products already in the user's cart.
// Raising a quantity reserves the difference from stock; lowering it returns
// the difference. The invoice total is recomputed from the full item set;
// a missing invoice skips the total update rather than failing.
func (s *CartService) UpdateCart(userID uint, lines []CartLine) (uint, error) {
	if len(lines) == 0 {
		return 0, ErrNoProducts
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
	}

	var orderID uint
	err := s.cartRepo.Transaction(func(tx repositories.CartRepository) error {
		order, err := tx.PendingOrder(userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrNoActiveOrder
			}
			return err
		}
		orderID = order.ID

		for _, line := range lines {
			product, err := tx.ProductByName(line.Name)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return &ProductNotFoundError{Name: line.Name}
				}
				return err
			}

			item, err := tx.ItemByOrderAndProduct(order.ID, product.ID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return &ItemNotInCartError{Name: product.Name}
				}
				return err
			}

			delta := line.Quantity - item.Quantity
			if delta > 0 {
				if err := tx.ReserveStock(product.ID, delta); err != nil {
					if errors.Is(err, repositories.ErrInsufficientStock) {
						return &InsufficientStockError{Name: product.Name}
					}
					return err
				}
			} else if delta < 0 {
				if err := tx.RestoreStock(product.ID, -delta); err != nil {
					return err
				}
			}

			item.Quantity = line.Quantity
			if err := tx.SaveItem(item); err != nil {
				return err
			}
		}

		total, err := orderTotal(tx, order.ID)
		if err != nil {
			return err
		}

		invoice, err := tx.InvoiceByOrder(order.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil
			}
			return err
		}
		invoice.TotalAmount = total
		return tx.SaveInvoice(invoice)
	})
	if err != nil {
		return 0, err
	}

	s.publish("cart.updated", userID, orderID)
	return orderID, nil
}

// ClearCart empties the user's cart: every reserved unit goes back to stock,
// then the line items, the invoice and the order itself are deleted, all in
// one transaction. Items referencing a removed product are skipped during the
// stock restore.
func (s *CartService) ClearCart(userID uint) error {
	var orderID uint
	err := s.cartRepo.Transaction(func(tx repositories.CartRepository) error {
		order, err := tx.PendingOrder(userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrNoActiveOrder
			}
			return err
		}
		orderID = order.ID

		items, err := tx.ItemsByOrder(order.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.RestoreStock(item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.DeleteItemsByOrder(order.ID); err != nil {
			return err
		}
		if err := tx.DeleteInvoiceByOrder(order.ID); err != nil {
			return err
		}
		return tx.DeleteOrder(order.ID)
	})
	if err != nil {
		return err
	}

	s.publish("cart.cleared", userID, orderID)
	return nil
}

// orderTotal recomputes the invoice total over the order's current item set.
// Items whose product is gone contribute nothing, matching the read side.
func orderTotal(tx repositories.CartRepository, orderID uint) (decimal.Decimal, error) {
	items, err := tx.ItemsByOrder(orderID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, item := range items {
		product, err := tx.ProductByID(item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return decimal.Zero, err
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total, nil
}

// publish emits a cart event. Publishing is best effort; a broker failure
// must never fail the request that already committed.
func (s *CartService) publish(eventType string, userID, orderID uint) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
	}
	if err := s.events.PublishCartEvent(eventType, payload); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %d: %v", eventType, orderID, err)
	}
}
