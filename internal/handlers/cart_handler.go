package handlers

import (
	"errors"
	"log"

	"souq/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the shopping cart. Request semantics
// (quantity checks, stock rules) live in the service; the handler only parses
// and maps errors onto status codes.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{
		service: service,
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/cart", h.HandleGetCart)
	router.Post("/cart", h.HandleAddToCart)
	router.Put("/cart", h.HandleUpdateCart)
	router.Delete("/cart/clear", h.HandleClearCart)
}

// HandleGetCart retrieves the current user's cart details, including order
// items and invoice.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	view, err := h.service.GetCart(currentUserID(c))
	if err != nil {
		return h.cartError(c, err)
	}
	return c.JSON(view)
}

// CartRequest represents the request body for adding to or updating the cart.
type CartRequest struct {
	Products    []services.CartLine `json:"products"`
	WayOfBuying string              `json:"way_of_buying"`
}

// HandleAddToCart adds products to the current user's cart, creating a new
// pending order if none exists.
func (h *CartHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req CartRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing cart request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if req.WayOfBuying == "" {
		req.WayOfBuying = "Online Payment"
	}

	orderID, err := h.service.AddToCart(currentUserID(c), req.Products, req.WayOfBuying)
	if err != nil {
		return h.cartError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Products added to cart successfully",
		"order_id": orderID,
	})
}

// HandleUpdateCart updates the quantities of products already in the cart.
func (h *CartHandler) HandleUpdateCart(c *fiber.Ctx) error {
	var req CartRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing cart update body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	orderID, err := h.service.UpdateCart(currentUserID(c), req.Products)
	if err != nil {
		return h.cartError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Cart updated successfully",
		"order_id": orderID,
	})
}

// HandleClearCart removes every item from the current user's cart and deletes
// the pending order along with its invoice.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.ClearCart(currentUserID(c)); err != nil {
		return h.cartError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Cart cleared successfully",
	})
}

// cartError maps cart workflow errors onto the HTTP taxonomy: validation and
// business-rule violations are 400, missing entities are 404, anything else
// is a persistence failure and reports 500.
func (h *CartHandler) cartError(c *fiber.Ctx, err error) error {
	var (
		notFound   *services.ProductNotFoundError
		notInCart  *services.ItemNotInCartError
		outOfStock *services.InsufficientStockError
	)
	switch {
	case errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrNoProducts):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.As(err, &outOfStock):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrNoActiveOrder),
		errors.Is(err, services.ErrNoInvoice):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.As(err, &notFound), errors.As(err, &notInCart):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		log.Printf("Cart operation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
