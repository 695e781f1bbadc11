package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/clinova-emr/clinova/internal/app"
	"github.com/clinova-emr/clinova/internal/billing"
	"github.com/clinova-emr/clinova/internal/catalog"
	"github.com/clinova-emr/clinova/internal/patients"
	"github.com/clinova-emr/clinova/internal/pharmacy"
	"github.com/clinova-emr/clinova/internal/pharmacy/export"
	"github.com/clinova-emr/clinova/internal/platform/db"
	"github.com/clinova-emr/clinova/internal/shared"
	"github.com/clinova-emr/clinova/internal/stock"
)

func main() {
	// A local .env overrides nothing already set in the environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger, redisClient, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, logger)
	stockHandler := stock.NewHandler(logger, stockService)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, auditLogger, logger)
	billingHandler := billing.NewHandler(logger, billingService)

	patientDir := patients.NewDirectory(pool)

	receiptExporter, err := export.NewReceiptExporter(cfg.GotenbergURL, http.DefaultClient)
	if err != nil {
		logger.Error("init receipt exporter", slog.Any("error", err))
		os.Exit(1)
	}

	pharmacyRepo := pharmacy.NewRepository(pool)
	pharmacyService := pharmacy.NewService(pharmacyRepo, patientDir, catalogRepo, receiptExporter, auditLogger, logger)
	pharmacyHandler := pharmacy.NewHandler(logger, pharmacyService, patientDir)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Pool:            pool,
		CatalogHandler:  catalogHandler,
		StockHandler:    stockHandler,
		BillingHandler:  billingHandler,
		PharmacyHandler: pharmacyHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
