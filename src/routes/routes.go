package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"market-sim/src/handlers"
	"market-sim/src/middleware"
)

func SetupRoutes(app *fiber.App, sessionHandler *handlers.SessionHandler) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	serviceAvailability := middleware.DefaultServiceAvailability()
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/session", sessionHandler.OpenSession)
	api.Post("/logon", sessionHandler.Logon)
	api.Post("/orders", sessionHandler.SubmitOrder)
	api.Put("/orders/:id", sessionHandler.ModifyOrder)
	api.Delete("/orders/:id", sessionHandler.CancelOrder)
	api.Get("/book", sessionHandler.GetOrderBook)
	api.Get("/feed", sessionHandler.GetFeed)

	app.Get("/health", sessionHandler.HealthCheck)
	app.Get("/metrics", sessionHandler.Metrics)
}
