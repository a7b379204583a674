package services

import (
	"context"
	"fmt"
	"time"

	"granttrack/internal/amqp"
	"granttrack/internal/core"
	applog "granttrack/internal/log"
	"granttrack/internal/storage"
)

// ExpenseService records actual spend, one row per (grant, month, code, line item).
type ExpenseService struct {
	store  *storage.Store
	events EventPublisher
}

func NewExpenseService(store *storage.Store, events EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:  store,
		events: events,
	}
}

// SaveActualExpense inserts the expense or, when its natural key already exists, overwrites
// amount, notes and submission date. Resubmitting replaces the value, it never accumulates.
// It reports whether a new row was created.
func (s *ExpenseService) SaveActualExpense(ctx context.Context, e core.ActualExpense) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}

	li, err := s.store.GetLineItem(ctx, e.LineItemID)
	if err != nil {
		return false, fmt.Errorf("save actual expense: %w", err)
	}
	if li.GrantID != e.GrantID {
		return false, &core.ValidationError{
			Field:  "line_item_id",
			Reason: fmt.Sprintf("line item %d does not belong to grant %d", e.LineItemID, e.GrantID),
		}
	}
	code, err := s.store.GetCode(ctx, e.QBCode)
	if err != nil {
		return false, fmt.Errorf("save actual expense: %w", err)
	}

	submitted := e.DateSubmitted
	if submitted.IsZero() {
		now := time.Now().UTC()
		submitted = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	cents := core.Cents(e.Amount)

	created, err := s.store.Save(ctx, storage.ActualExpenses, storage.Values{
		"grant_id":       e.GrantID,
		"month":          e.Month,
		"qb_code":        code.Code,
		"line_item_id":   e.LineItemID,
		"amount_cents":   cents,
		"notes":          e.Notes,
		"date_submitted": submitted.String(),
	})
	if err != nil {
		return false, fmt.Errorf("save actual expense: %w", err)
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogActualSaved(ctx, e.GrantID, e.LineItemID, e.Month, code.Code, cents, created)

	ev := amqp.NewLedgerEvent(amqp.EventActualSaved, e.GrantID, e.LineItemID)
	ev.Month = e.Month
	ev.QBCode = code.Code
	ev.AmountCents = cents
	publish(ctx, s.events, ev)

	return created, nil
}

// ListActualExpenses lists a grant's actual expenses; an empty month means all months.
func (s *ExpenseService) ListActualExpenses(ctx context.Context, grantID int64, month string) ([]core.ActualExpense, error) {
	if month != "" {
		if err := core.ValidateMonth(month); err != nil {
			return nil, err
		}
	}
	return s.store.ListActuals(ctx, grantID, month)
}
