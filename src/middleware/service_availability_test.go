package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func availabilityApp(sa *ServiceAvailability) *fiber.App {
	app := fiber.New()
	app.Use(sa.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestMaintenanceModeReturns503(t *testing.T) {
	sa := NewServiceAvailability(0)
	sa.SetMaintenanceMode(true)
	app := availabilityApp(sa)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 in maintenance mode, got %d", resp.StatusCode)
	}

	sa.SetMaintenanceMode(false)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after leaving maintenance mode, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetricsBypassMaintenance(t *testing.T) {
	sa := NewServiceAvailability(0)
	sa.SetMaintenanceMode(true)
	app := availabilityApp(sa)

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s must stay reachable in maintenance mode, got %d", path, resp.StatusCode)
		}
	}
}

func TestInFlightRequestTracking(t *testing.T) {
	sa := NewServiceAvailability(10)
	app := availabilityApp(sa)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	// Counter returns to zero once the request completes.
	if got := sa.InFlightRequests(); got != 0 {
		t.Errorf("expected 0 in-flight requests, got %d", got)
	}
}
