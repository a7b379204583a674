package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"granttrack/internal/cli"
	applog "granttrack/internal/log"
	"granttrack/internal/services"
	"granttrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting forecast-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	amqpClient, events, err := cli.OpenEvents(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	exporter, err := cli.OpenSheets(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	forecast := services.NewForecastService(store, events)
	processor := services.NewForecastProcessor(store, forecast, services.ForecastProcessorConfig{
		PollInterval: cfg.ForecastSyncInterval,
		BatchSize:    cfg.ForecastBatchSize,
	})

	handlers := []worker.Handler{processor.HandleEvent}
	var summarySync *worker.SummarySync
	if exporter != nil {
		summarySync = worker.NewSummarySync(services.NewReconciler(store), store, exporter, cfg.GoogleSummarySheetName)
		handlers = append(handlers, summarySync.HandleEvent)
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		logger.Info("Shutting down worker...")
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Error("Forecast processor stop failed", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(runCtx)

	if summarySync != nil {
		// On startup, export every grant in case events were missed
		g.Go(func() error {
			if _, _, err := summarySync.StartupSync(gctx); err != nil {
				logger.Error("Startup summary sync failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeEvents(gctx, worker.Fanout(handlers...))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP event consumption - polling only")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = processor.Stop(stopCtx)
		cancel()
		os.Exit(1)
	}
	<-done
	logger.Info("Worker shutdown complete")
}
