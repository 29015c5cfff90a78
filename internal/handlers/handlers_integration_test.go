package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"souq/internal/handlers"
	"souq/internal/middleware"
	"souq/internal/models"
	"souq/internal/repositories"
	"souq/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite and all
// handlers/services wired the way main does it.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Invoice{},
	)
	if err != nil {
		t.Fatalf("failed to auto-migrate database: %v", err)
	}

	// Repositories
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)

	// Services (nil event publisher, no broker in tests)
	authService := services.NewAuthService(userRepo, jwtSecret)
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, nil)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)
	cartHandler.RegisterRoutes(protected)

	adminOnly := protected.Group("", middleware.AdminRequired())
	productHandler.RegisterRoutes(adminOnly)

	return app, db
}

// seedCatalog puts a category and a couple of products into the database.
func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	category := models.Category{Name: "Furniture"}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	products := []models.Product{
		{Name: "Chair", Description: "Wooden chair", Quantity: 10, Price: decimal.NewFromFloat(50.00), CategoryID: category.ID},
		{Name: "Lamp", Description: "Desk lamp", Quantity: 3, Price: decimal.NewFromFloat(20.00), CategoryID: category.ID},
	}
	for i := range products {
		if err := db.Create(&products[i]).Error; err != nil {
			t.Fatalf("failed to seed product %s: %v", products[i].Name, err)
		}
	}
}

// doJSON performs a request with an optional JSON body and bearer token and
// decodes the JSON response.
func doJSON(t *testing.T, app *fiber.App, method, target, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1) // -1 for no timeout
	assert.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// Some endpoints return JSON arrays; callers decode those themselves
			decoded = nil
		}
	}
	return resp.StatusCode, decoded
}

// registerAndLogin creates a user through the API and returns a bearer token.
func registerAndLogin(t *testing.T, app *fiber.App, name, email, password, role string) string {
	t.Helper()

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"user_name": name,
		"email":     email,
		"password":  password,
		"role":      role,
	})
	assert.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	assert.Equal(t, http.StatusOK, status)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)
	return token
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t)

	registration := map[string]string{
		"user_name": "Test User",
		"email":     "test@example.com",
		"password":  "password123",
	}
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", registration)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])

	// Duplicate email
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", registration)
	assert.Equal(t, http.StatusConflict, status)

	// Weak password rejected up front
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"user_name": "Other User",
		"email":     "other@example.com",
		"password":  "short",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// Login
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	// Wrong password
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "test@example.com",
		"password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Profile with the issued token
	token, _ := body["token"].(string)
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/auth/profile", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "test@example.com", body["email"])
}

func TestCartEndpoints(t *testing.T) {
	app, db := setupApp(t)
	seedCatalog(t, db)
	token := registerAndLogin(t, app, "Cart User", "cart@example.com", "password123", "")

	// Empty cart reads as 404
	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Add two chairs
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/cart", token, map[string]interface{}{
		"products": []map[string]interface{}{{"name": "Chair", "quantity": 2}},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Products added to cart successfully", body["message"])
	orderID := body["order_id"]
	assert.NotNil(t, orderID)

	// Read the cart back
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, orderID, body["order_id"])
	assert.Equal(t, "100", body["total_amount"])
	products, ok := body["products"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, products, 1)
	line, _ := products[0].(map[string]interface{})
	assert.Equal(t, "Chair", line["name"])
	assert.Equal(t, float64(2), line["quantity"])
	assert.Equal(t, "50.00", line["price"])
	assert.NotEmpty(t, body["date"])

	// Invalid quantity is rejected before any mutation
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/cart", token, map[string]interface{}{
		"products": []map[string]interface{}{{"name": "Chair", "quantity": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// Unknown product
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/cart", token, map[string]interface{}{
		"products": []map[string]interface{}{{"name": "Sofa", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, status)

	// More than the remaining stock
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/cart", token, map[string]interface{}{
		"products": []map[string]interface{}{{"name": "Lamp", "quantity": 4}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Insufficient stock for product Lamp", body["message"])

	// Update the chair line to 5
	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/cart", token, map[string]interface{}{
		"products": []map[string]interface{}{{"name": "Chair", "quantity": 5}},
	})
	assert.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "250", body["total_amount"])

	// Update with an empty product list
	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/cart", token, map[string]interface{}{
		"products": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// Update a product that is not in the cart
	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/cart", token, map[string]interface{}{
		"products": []map[string]interface{}{{"name": "Lamp", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, status)

	// Clear the cart
	status, body = doJSON(t, app, http.MethodDelete, "/api/v1/cart/clear", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cart cleared successfully", body["message"])

	// Stock fully restored
	var chair models.Product
	assert.NoError(t, db.First(&chair, "name = ?", "Chair").Error)
	assert.Equal(t, 10, chair.Quantity)

	// Cart is gone now
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/cart/clear", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProductEndpointsAdminOnly(t *testing.T) {
	app, _ := setupApp(t)
	adminToken := registerAndLogin(t, app, "Admin User", "admin@example.com", "password123", "admin")
	customerToken := registerAndLogin(t, app, "Plain User", "plain@example.com", "password123", "")

	// Customers cannot touch the catalog
	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/products", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Admin creates a product
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/products", adminToken, map[string]interface{}{
		"name":        "Smartphone",
		"description": "Latest model smartphone",
		"price":       799.99,
		"quantity":    50,
		"category_id": 1,
	})
	assert.Equal(t, http.StatusCreated, status)
	productID := fmt.Sprintf("%v", body["product_id"])
	assert.NotEmpty(t, productID)

	// Fetch it back
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/products/"+productID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Smartphone", body["name"])

	// Partial update
	status, body = doJSON(t, app, http.MethodPut, "/api/v1/products/"+productID, adminToken, map[string]interface{}{
		"name":  "Smartphone Pro",
		"price": 899.99,
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Smartphone Pro", body["name"])
	assert.Equal(t, "Latest model smartphone", body["description"])

	// Invalid payloads are rejected
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/products", adminToken, map[string]interface{}{
		"name":        "Bad Product",
		"price":       -1.0,
		"quantity":    1,
		"category_id": 1,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// Delete and verify
	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/products/"+productID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/products/"+productID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestEndpointsWithoutAuth(t *testing.T) {
	app, _ := setupApp(t)

	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/cart", "", map[string]interface{}{
		"products": []map[string]interface{}{{"name": "Chair", "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}
