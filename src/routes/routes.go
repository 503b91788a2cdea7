package routes

import (
	"github.com/gofiber/fiber/v2"

	"clob-venue/src/config"
	"clob-venue/src/handlers"
	"clob-venue/src/middleware"
)

func SetupRoutes(app *fiber.App, venueHandler *handlers.VenueHandler, cfg *config.Config) {
	serviceAvailability := middleware.NewServiceAvailability(cfg.MaxConcurrentRequests)
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !cfg.RateLimit.Disabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window.Std())
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orderbooks", venueHandler.InitOrderbook)
	api.Post("/orderbooks/:pair/deposit", venueHandler.Deposit)
	api.Post("/orderbooks/:pair/withdraw", venueHandler.Withdraw)
	api.Post("/orderbooks/:pair/orders", venueHandler.CreateOrder)
	api.Post("/orderbooks/:pair/orders/:id/match", venueHandler.MatchOrder)
	api.Get("/orderbooks/:pair/orders/:id", venueHandler.GetOrder)
	api.Get("/orderbooks/:pair/depth", venueHandler.GetDepth)
	api.Get("/orderbooks/:pair/balances/:owner", venueHandler.GetBalance)
	api.Put("/orderbooks/:pair/delegation", venueHandler.SetDelegation)

	app.Get("/health", venueHandler.HealthCheck)
	app.Get("/metrics", venueHandler.Metrics)
}
