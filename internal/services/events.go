package services

import (
	"context"
	"log/slog"

	"granttrack/internal/amqp"
)

// EventPublisher publishes ledger events. *amqp.Client satisfies it; a nil publisher
// disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// publish is fire-and-forget: the ledger write has already committed, so a broker
// failure is logged and never returned.
func publish(ctx context.Context, p EventPublisher, ev *amqp.LedgerEvent) {
	if p == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", ev.Type)
		return
	}
	if err := p.PublishEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"grant_id", ev.GrantID,
			"line_item_id", ev.LineItemID,
			"error", err)
	}
}
