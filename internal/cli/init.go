// Package cli provides common CLI initialization utilities.
// This package consolidates the bootstrap shared by cmd/granttrack,
// cmd/granttrack-server and cmd/forecast-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"granttrack/internal/amqp"
	"granttrack/internal/config"
	"granttrack/internal/core"
	applog "granttrack/internal/log"
	"granttrack/internal/services"
	"granttrack/internal/sheets"
	gsheet "granttrack/internal/sheets/google"
	"granttrack/internal/storage"
)

// SetupLogger builds a text logger at the given LOG_LEVEL and installs it as the
// slog default.
func SetupLogger(level, component string) *applog.Logger {
	logger := applog.NewText(applog.ParseLevel(level), component)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development.
// A missing file is not an error; production reads the real environment.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// StorageConfig maps the environment configuration onto the store settings.
func StorageConfig(cfg *config.Config) storage.Config {
	dialect := storage.DialectSQLite
	if cfg.DataBackend == "postgres" {
		dialect = storage.DialectPostgres
	}
	return storage.Config{
		Dialect:     dialect,
		SQLitePath:  cfg.SQLiteDBPath,
		DatabaseURL: cfg.DatabaseURL,
		Normalizer:  core.Normalizer{TitleCase: cfg.TitleCaseNames},
	}
}

// OpenStore connects to the configured backend and applies migrations.
// Returns the store or exits the process on failure.
func OpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *storage.Store {
	store, err := storage.Open(ctx, StorageConfig(cfg))
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Store ready", "backend", cfg.DataBackend)
	return store
}

// OpenEvents connects to the broker when AMQP_URL is set. With no URL both
// results are nil and services skip publishing.
func OpenEvents(logger *applog.Logger, cfg *config.Config) (*amqp.Client, services.EventPublisher, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("connect AMQP: %w", err)
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, client, nil
}

// OpenSheets returns the Google Sheets export target, or nil when no
// spreadsheet is configured.
func OpenSheets(ctx context.Context, logger *applog.Logger, cfg *config.Config) (sheets.TableWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init Google Sheets: %w", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run or timed out.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}
