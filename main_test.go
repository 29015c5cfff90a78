package main_test

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	mainapp "souq"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestNewAppAndHealthCheck(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:mainapp?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}

	// nil RabbitMQ client: the app must run without a broker
	app, authService, err := mainapp.NewApp(db, nil)
	assert.NoError(t, err)
	assert.NotNil(t, authService)

	// --- Health endpoint ---
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), `"status":"healthy"`),
		"health check response body does not contain expected status")

	// --- Protected routes reject unauthenticated access ---
	for _, target := range []string{"/api/v1/products", "/api/v1/cart"} {
		req = httptest.NewRequest(http.MethodGet, target, nil)
		resp, err = app.Test(req, -1)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expected 401 for %s without token", target)
		resp.Body.Close()
	}
}
