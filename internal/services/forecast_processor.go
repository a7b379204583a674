package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"granttrack/internal/amqp"
	"granttrack/internal/core"
)

// ForecastProcessorConfig holds configuration for the forecast processor
type ForecastProcessorConfig struct {
	// PollInterval is how often to look for line items without a forecast (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of line items initialized per poll cycle (default: 50)
	BatchSize int
}

// DefaultForecastProcessorConfig returns sensible defaults
func DefaultForecastProcessorConfig() ForecastProcessorConfig {
	return ForecastProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    50,
	}
}

// lineItemSource lists line items that have no anticipated rows yet.
type lineItemSource interface {
	LineItemsWithoutForecast(ctx context.Context, limit int) ([]core.LineItem, error)
}

// ForecastProcessor fills in missing forecasts in the background: on a poll loop and in
// response to ledger events.
type ForecastProcessor struct {
	source   lineItemSource
	forecast *ForecastService
	config   ForecastProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewForecastProcessor creates a new forecast processor. source is usually the *storage.Store.
func NewForecastProcessor(source lineItemSource, forecast *ForecastService, config ForecastProcessorConfig) *ForecastProcessor {
	defaults := DefaultForecastProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &ForecastProcessor{
		source:   source,
		forecast: forecast,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ForecastProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("forecast processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Forecast processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ForecastProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Forecast processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Forecast processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ForecastProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ForecastProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch initializes the forecast of up to BatchSize line items that have none and
// returns how many line items were initialized. Failures are logged and retried on the
// next cycle.
func (p *ForecastProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.source.LineItemsWithoutForecast(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list line items without forecast", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing forecast batch", "count", len(items))

	done := 0
	for _, li := range items {
		if ctx.Err() != nil {
			return done
		}
		if _, err := p.forecast.InitializeAnticipatedExpenses(ctx, li.GrantID, li.ID); err != nil {
			slog.WarnContext(ctx, "Forecast initialization failed",
				"grant_id", li.GrantID,
				"line_item_id", li.ID,
				"error", err)
			continue
		}
		done++
	}
	return done
}

// HandleEvent reacts to ledger events from the broker. New line items get their forecast
// right away and a reset grant is regenerated from current allocations. Other events are
// acknowledged without action.
func (p *ForecastProcessor) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	var err error
	switch ev.Type {
	case amqp.EventLineItemCreated:
		_, err = p.forecast.InitializeAnticipatedExpenses(ctx, ev.GrantID, ev.LineItemID)
	case amqp.EventForecastReset:
		_, err = p.forecast.InitializeGrantForecast(ctx, ev.GrantID)
	default:
		slog.DebugContext(ctx, "Ignoring ledger event", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	// The target was deleted or never matched; redelivery cannot help.
	if errors.Is(err, core.ErrNotFound) || core.IsValidation(err) {
		slog.WarnContext(ctx, "Dropping ledger event", "event_id", ev.ID, "type", ev.Type, "error", err)
		return nil
	}
	return err
}
