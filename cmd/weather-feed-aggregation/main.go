package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-feed-aggregation/internal/api/http"
	"github.com/i474232898/weather-feed-aggregation/internal/config"
	"github.com/i474232898/weather-feed-aggregation/internal/feed"
	"github.com/i474232898/weather-feed-aggregation/internal/httpclient"
	"github.com/i474232898/weather-feed-aggregation/internal/logging"
	"github.com/i474232898/weather-feed-aggregation/internal/scheduler"
	"github.com/i474232898/weather-feed-aggregation/internal/store"
	"github.com/i474232898/weather-feed-aggregation/internal/weather"
	"github.com/i474232898/weather-feed-aggregation/internal/weather/providers"
)

const appName = "weather-feed-aggregation"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg, os.Stdout, appName)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Snapshot store.
	snapshots, db, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("close db", "error", err)
			}
		}()
	}

	// Shared transport for outbound feed calls; retries live in each feed's executor.
	fetcher := httpclient.New(cfg.HTTPTimeout, log)

	sources, err := buildSources(cfg, fetcher, log)
	if err != nil {
		log.Error("failed to configure feeds", "error", err)
		os.Exit(1)
	}

	// Core service orchestrating feeds and store.
	service := weather.NewService(snapshots, sources, cfg.Locations, log)

	// Scheduler that periodically collects and stores data.
	sched := scheduler.New(cfg.Locations, cfg.FetchInterval, service, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Live feed calls are bounded by the handler below this.
		WriteTimeout: 3 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
			"feeds":   sources.Enabled(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
			stop()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (weather.Store, *sql.DB, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), nil, nil
	}

	db, dialect, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, nil, err
	}
	s := store.NewSQLStore(db, dialect, cfg.StoreMaxHistory, cfg.StoreMaxAge, log)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// buildSources constructs every enabled feed. Disabled feeds stay nil in
// weather.Sources.
func buildSources(cfg *config.AppConfig, fetcher feed.Fetcher, log *slog.Logger) (weather.Sources, error) {
	opts := []providers.Option{
		providers.WithLogger(log),
		providers.WithExecutorOptions(feed.WithBackoff(feed.BackoffConfig{
			MaxRetries:      cfg.RetryMax,
			InitialInterval: cfg.RetryBaseDelay,
			Multiplier:      2.0,
			MaxInterval:     cfg.RetryMaxDelay,
		}), feed.WithBreaker(feed.BreakerConfig{
			Threshold: cfg.CircuitThreshold,
			Cooldown:  cfg.CircuitCooldown,
		})),
	}
	endpoint := func(f weather.Feed) (providers.Endpoint, bool) {
		fc := cfg.Feeds[f]
		return providers.Endpoint{BaseURL: fc.BaseURL, ServiceKey: fc.ServiceKey}, fc.Enabled
	}

	var sources weather.Sources
	var errs []error

	if ep, ok := endpoint(weather.FeedWeather); ok {
		src, err := providers.NewNowcastFeed(ep, fetcher, opts...)
		errs = append(errs, err)
		if err == nil {
			sources.Weather = src
		}
	}
	if ep, ok := endpoint(weather.FeedDust); ok {
		src, err := providers.NewDustFeed(ep, cfg.DustInformCode, fetcher, opts...)
		errs = append(errs, err)
		if err == nil {
			sources.Dust = src
		}
	}
	if ep, ok := endpoint(weather.FeedUV); ok {
		src, err := providers.NewUVFeed(ep, fetcher, opts...)
		errs = append(errs, err)
		if err == nil {
			sources.UV = src
		}
	}
	if ep, ok := endpoint(weather.FeedSensibleTemp); ok {
		src, err := providers.NewSensibleTempFeed(ep, cfg.SensibleTempCode, fetcher, opts...)
		errs = append(errs, err)
		if err == nil {
			sources.SensibleTemp = src
		}
	}
	if ep, ok := endpoint(weather.FeedAirStagnation); ok {
		src, err := providers.NewAirStagnationFeed(ep, fetcher, opts...)
		errs = append(errs, err)
		if err == nil {
			sources.AirStagnation = src
		}
	}

	if err := errors.Join(errs...); err != nil {
		return weather.Sources{}, err
	}
	if len(sources.Enabled()) == 0 {
		return weather.Sources{}, weather.ErrNoSources
	}
	return sources, nil
}
