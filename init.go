package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/threadline/courier-bridge/internal/config"
	"github.com/threadline/courier-bridge/internal/orders"
	"github.com/threadline/courier-bridge/internal/store"
	"github.com/threadline/courier-bridge/internal/telemetry"
	"github.com/threadline/courier-bridge/internal/workers"
	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/threadline/courier-bridge/pkg/courier/cache"
	"github.com/threadline/courier-bridge/pkg/courier/swiftship"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

func loadConfig() (*config.Config, error) {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()
	return config.Load()
}

func initLogger(level, file string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level, file)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

// App bundles the wired bridge components.
type App struct {
	Bridge *swiftship.Client
	Orders orders.Repository
	Sync   *orders.Sync

	db *sql.DB
}

// initApp wires settings, cache store, orders persistence, and the
// carrier client from configuration.
func initApp(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) (*App, error) {
	var (
		settings  courier.Settings
		orderRepo *store.OrderRepository
		db        *sql.DB
	)

	switch {
	case cfg.DatabaseURL != "":
		var err error
		db, err = store.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		settings = store.NewSettingsRepository(db)
		orderRepo = store.NewOrderRepository(db)
	case cfg.SwiftShipUseMock:
		// Mock mode can run without a database.
		settings = courier.NewMemorySettings()
	default:
		return nil, fmt.Errorf("DATABASE_URL is required unless SWIFTSHIP_USE_MOCK is set")
	}

	var cacheStore cache.Store
	if cfg.RedisEnabled {
		cacheStore = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	} else {
		cacheStore = cache.NewMemory()
	}

	bridge := swiftship.New(swiftship.Config{
		BaseURL:      cfg.SwiftShipBaseURL,
		Timeout:      cfg.SwiftShipTimeout,
		CityCacheTTL: cfg.CityCacheTTL,
		UseMock:      cfg.SwiftShipUseMock,
	}, settings, cacheStore, logger, tracer)

	app := &App{Bridge: bridge, db: db}
	if orderRepo != nil {
		app.Orders = orderRepo
		app.Sync = orders.NewSync(orderRepo, orderRepo, logger)
	}
	return app, nil
}

// CacheWarmer builds the scheduled city-cache warmer.
func (a *App) CacheWarmer(logger *otelzap.Logger) *workers.CityCacheWarmer {
	return workers.NewCityCacheWarmer(a.Bridge.Locations(), logger)
}

// Close releases held resources.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
