// Package worker hosts the background consumers run by cmd/forecast-worker.
package worker

import (
	"context"
	"errors"

	"granttrack/internal/amqp"
)

// Handler processes one ledger event. A returned error requeues the event.
type Handler func(ctx context.Context, ev *amqp.LedgerEvent) error

// Fanout delivers every event to each handler in order. All handlers run even
// when one fails; their errors are joined.
func Fanout(handlers ...Handler) Handler {
	return func(ctx context.Context, ev *amqp.LedgerEvent) error {
		var errs []error
		for _, h := range handlers {
			if h == nil {
				continue
			}
			if err := h(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
