package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tsubaki/figura/internal"
	"github.com/tsubaki/figura/internal/events"
	"github.com/tsubaki/figura/internal/handler/api"
	"github.com/tsubaki/figura/internal/middleware"
	"github.com/tsubaki/figura/internal/postgres"
	"github.com/tsubaki/figura/internal/service"
	"github.com/tsubaki/figura/internal/shipping"
	"github.com/tsubaki/figura/internal/tax"
	"github.com/tsubaki/figura/internal/telemetry"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// database/sql connection only for goose; the application runs on pgx.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info().Msg("running database migrations")
	if err := internal.RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	sqlDB.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	var bus events.Bus
	if cfg.NATSURL != "" {
		natsBus, err := events.NewNATSBus(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect event bus: %w", err)
		}
		logger.Info().Str("url", cfg.NATSURL).Msg("using NATS event bus")
		bus = natsBus
	} else {
		bus = events.NewMemoryBus(logger)
	}
	defer bus.Close()

	metrics := middleware.NewMetrics("figura")
	business := telemetry.NewBusinessMetrics(metrics.Registry())

	categoryStore := postgres.NewCategoryStore(pool)
	itemStore := postgres.NewItemStore(pool)
	orderStore := postgres.NewOrderStore(pool)
	cartStore := postgres.NewCartStore(pool)

	categories := service.NewCategories(categoryStore, logger)
	catalog := service.NewCatalog(itemStore, categories, bus, business, logger)

	var taxCalc tax.Calculator
	if cfg.TaxRate > 0 {
		taxCalc = tax.NewPercentageCalculator(cfg.TaxRate)
	} else {
		taxCalc = tax.NewNoTaxCalculator()
	}
	shipProvider := shipping.NewFlatRateProvider(cfg.FlatShippingCents, cfg.FreeShippingThreshold)

	orders := service.NewOrderEngine(orderStore, catalog, taxCalc, shipProvider, bus, business,
		strings.ToUpper(cfg.Currency), logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(metrics.Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	handler := api.NewHandler(categories, catalog, cartStore, orders, logger)
	handler.RegisterRoutes(e)

	addr := fmt.Sprintf(":%d", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server started")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
