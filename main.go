package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"clob-venue/src/config"
	"clob-venue/src/custody"
	"clob-venue/src/engine"
	"clob-venue/src/handlers"
	"clob-venue/src/logger"
	"clob-venue/src/routes"
	"clob-venue/src/store"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init(config.Default().Log)
		l := logger.Get()
		l.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Log)
	log := logger.Get()

	log.Info().Msg("Initializing CLOB venue")

	vault := custody.NewVault()
	matcher := engine.NewMatcher(vault)

	snapshots, err := store.Open(filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("Failed to open snapshot store")
	}

	books, err := snapshots.LoadBooks()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to restore orderbooks")
	}
	if len(books) > 0 {
		matcher.Restore(books)
		log.Info().Int("orderbooks", len(books)).Msg("Orderbooks restored from snapshot store")
	}

	for _, pair := range cfg.Pairs {
		ob := matcher.InitOrderBook(
			pair.BaseAsset, pair.QuoteAsset,
			pair.BaseDecimals, pair.QuoteDecimals,
			engine.Principal(pair.Authority),
			cfg.Matching.PreserveTimePriority,
		)
		log.Info().
			Str("pair", engine.PairKey(ob.BaseAsset, ob.QuoteAsset)).
			Str("authority", string(ob.Authority)).
			Msg("Orderbook ready")
	}

	venueHandler := handlers.NewVenueHandler(matcher, snapshots, cfg)

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
	routes.SetupRoutes(app, venueHandler, cfg)

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
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Msg("CLOB venue started")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.ShutdownTimeout.Std()).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}

	for pair, ob := range matcher.Snapshot() {
		if err := snapshots.SaveBook(pair, ob); err != nil {
			log.Error().Err(err).Str("pair", pair).Msg("Failed to snapshot orderbook")
		}
	}
	if err := snapshots.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close snapshot store")
	}

	log.Info().Msg("Shutdown complete")
	logger.Close()
}
