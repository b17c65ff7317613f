package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"market-sim/src/config"
	"market-sim/src/fix"
	"market-sim/src/handlers"
	"market-sim/src/logger"
	"market-sim/src/routes"
	"market-sim/src/session"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()

	log.Info().Msg("Initializing market simulator")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	opts := session.DefaultOptions()
	opts.NumAutoMakers = cfg.NumAutoMakers
	opts.MakerQty = cfg.MakerQty
	opts.MakerWidth = cfg.MakerWidth
	opts.QuoteInterval = cfg.QuoteInterval

	// The outbound send path stays an in-process callback; the gateway's
	// feed subscriber is what surfaces these messages to HTTP clients.
	sess := session.New(opts, nil, func(msg fix.Message) {
		log.Debug().Str("msg_type", msg.MsgType()).Msg("Unrouted message")
	})
	sessionHandler := handlers.NewSessionHandler(sess)

	if cfg.AutoOpen {
		sess.Handle(fix.SecurityDefinition{
			Symbol:    cfg.Symbol,
			TickSize:  cfg.TickSize,
			OpeningPx: cfg.OpeningPx,
			Currency:  cfg.Currency,
		})
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, sessionHandler)

	port := ":" + cfg.Port

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Str("symbol", cfg.Symbol).
			Msg("Market simulator started")

		log.Info().
			Strs("endpoints", []string{
				"POST   /api/v1/session",
				"POST   /api/v1/logon",
				"POST   /api/v1/orders",
				"PUT    /api/v1/orders/:id",
				"DELETE /api/v1/orders/:id",
				"GET    /api/v1/book",
				"GET    /api/v1/feed",
				"GET    /health",
				"GET    /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		log.Info().Msg("Shutdown complete")
	}

	sess.Close()
	logger.CloseLogger()
}
