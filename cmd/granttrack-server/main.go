package main

import (
	"context"
	"os"
	"time"

	"granttrack/internal/cache"
	"granttrack/internal/cli"
	"granttrack/internal/core"
	apphttp "granttrack/internal/http"
	applog "granttrack/internal/log"
	"granttrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentHTTP)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	amqpClient, events, err := cli.OpenEvents(logger, cfg)
	if err != nil {
		// Ledger writes do not depend on the broker.
		logger.Error("AMQP unavailable, continuing without events", "error", err)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	exporter, err := cli.OpenSheets(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	codeCache := cache.NewLRUCache[[]core.Code](64, 5*time.Minute)
	caches := cache.NewManager()
	caches.Register(codeCache)

	reconciler := services.NewReconciler(store)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Grants:     services.NewGrantService(store, reconciler, events),
		Chart:      services.NewChartService(store, codeCache),
		Forecast:   services.NewForecastService(store, events),
		Expenses:   services.NewExpenseService(store, events),
		Reconciler: reconciler,
		Store:      store,
		Sheets:     exporter,
		SheetName:  cfg.GoogleSummarySheetName,
		Currency:   cfg.Currency,
		Logger:     logger,
		Caches:     caches,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Starting granttrack server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.Run(runCtx, 25*time.Second); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}
