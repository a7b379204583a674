package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"granttrack/internal/amqp"
	"granttrack/internal/core"
	applog "granttrack/internal/log"
	"granttrack/internal/storage"
)

// ForecastService keeps one anticipated expense row per line item per grant month.
type ForecastService struct {
	store  *storage.Store
	events EventPublisher
}

// NewForecastService wires the service; events may be nil.
func NewForecastService(store *storage.Store, events EventPublisher) *ForecastService {
	return &ForecastService{store: store, events: events}
}

// lineItemOf loads the line item and its grant, checking they belong together.
func (s *ForecastService) lineItemOf(ctx context.Context, grantID, lineItemID int64) (core.Grant, core.LineItem, error) {
	li, err := s.store.GetLineItem(ctx, lineItemID)
	if err != nil {
		return core.Grant{}, core.LineItem{}, err
	}
	if li.GrantID != grantID {
		return core.Grant{}, core.LineItem{}, &core.ValidationError{
			Field:  "line_item_id",
			Reason: fmt.Sprintf("line item %d does not belong to grant %d", lineItemID, grantID),
		}
	}
	g, err := s.store.GetGrant(ctx, grantID)
	if err != nil {
		return core.Grant{}, core.LineItem{}, err
	}
	return g, li, nil
}

// InitializeAnticipatedExpenses spreads the line item's allocation evenly over the grant's
// months, creating only the rows that are missing. Rows that exist keep their value, so
// repeated calls are no-ops. It returns the number of rows created.
func (s *ForecastService) InitializeAnticipatedExpenses(ctx context.Context, grantID, lineItemID int64) (int, error) {
	g, li, err := s.lineItemOf(ctx, grantID, lineItemID)
	if err != nil {
		return 0, fmt.Errorf("initialize forecast: %w", err)
	}
	months, err := core.MonthRange(g.StartDate, g.EndDate)
	if err != nil {
		return 0, fmt.Errorf("initialize forecast: %w", err)
	}
	dist, err := core.DistributeEvenly(li.AllocatedAmount, months)
	if err != nil {
		return 0, fmt.Errorf("initialize forecast: %w", err)
	}

	rows := make([]storage.Values, len(dist))
	for i, m := range dist {
		rows[i] = storage.Values{
			"grant_id":       grantID,
			"line_item_id":   lineItemID,
			"month":          m.Month,
			"expected_cents": core.Cents(m.Amount),
		}
	}
	n, err := s.store.InsertManyIfNotExists(ctx, storage.AnticipatedExpenses, rows)
	if err != nil {
		return 0, fmt.Errorf("initialize forecast: %w", err)
	}

	if n > 0 {
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogForecastChange(ctx, applog.OpInitialize, grantID, lineItemID, int64(n))
	}
	return n, nil
}

// InitializeGrantForecast initializes every line item of the grant.
func (s *ForecastService) InitializeGrantForecast(ctx context.Context, grantID int64) (int, error) {
	items, err := s.store.ListLineItems(ctx, grantID)
	if err != nil {
		return 0, fmt.Errorf("initialize grant forecast: %w", err)
	}
	total := 0
	for _, li := range items {
		n, err := s.InitializeAnticipatedExpenses(ctx, grantID, li.ID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// UpdateAnticipatedExpense overwrites one month of a line item's forecast. The month must
// fall inside the grant's date range. It reports whether the row was newly created.
func (s *ForecastService) UpdateAnticipatedExpense(ctx context.Context, grantID, lineItemID int64, month string, amount decimal.Decimal) (bool, error) {
	if err := core.ValidateMonth(month); err != nil {
		return false, err
	}
	if amount.IsNegative() {
		return false, &core.ValidationError{Field: "expected_amount", Reason: "amount must not be negative", Err: core.ErrInvalidAmount}
	}
	g, _, err := s.lineItemOf(ctx, grantID, lineItemID)
	if err != nil {
		return false, fmt.Errorf("update forecast: %w", err)
	}
	months, err := core.MonthRange(g.StartDate, g.EndDate)
	if err != nil {
		return false, fmt.Errorf("update forecast: %w", err)
	}
	if !slices.Contains(months, month) {
		return false, &core.ValidationError{
			Field:  "month",
			Reason: fmt.Sprintf("%s is outside the grant period %s to %s", month, months[0], months[len(months)-1]),
			Err:    core.ErrInvalidMonth,
		}
	}

	created, err := s.store.Save(ctx, storage.AnticipatedExpenses, storage.Values{
		"grant_id":       grantID,
		"line_item_id":   lineItemID,
		"month":          month,
		"expected_cents": core.Cents(amount),
	})
	if err != nil {
		return false, fmt.Errorf("update forecast: %w", err)
	}
	return created, nil
}

// ResetForecast deletes every anticipated row of the grant so it can be regenerated from
// current allocations.
func (s *ForecastService) ResetForecast(ctx context.Context, grantID int64) (int64, error) {
	if _, err := s.store.GetGrant(ctx, grantID); err != nil {
		return 0, fmt.Errorf("reset forecast: %w", err)
	}
	n, err := s.store.DeleteAnticipatedByGrant(ctx, grantID)
	if err != nil {
		return 0, fmt.Errorf("reset forecast: %w", err)
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogForecastChange(ctx, applog.OpReset, grantID, 0, n)
	publish(ctx, s.events, amqp.NewLedgerEvent(amqp.EventForecastReset, grantID, 0))
	return n, nil
}

// ForecastPlan pivots the grant's anticipated rows into one row per line item with a
// column per grant month.
func (s *ForecastService) ForecastPlan(ctx context.Context, grantID int64) (core.ForecastPlan, error) {
	g, err := s.store.GetGrant(ctx, grantID)
	if err != nil {
		return core.ForecastPlan{}, fmt.Errorf("forecast plan: %w", err)
	}
	months, err := core.MonthRange(g.StartDate, g.EndDate)
	if err != nil {
		return core.ForecastPlan{}, fmt.Errorf("forecast plan: %w", err)
	}
	items, err := s.store.ListLineItems(ctx, grantID)
	if err != nil {
		return core.ForecastPlan{}, fmt.Errorf("forecast plan: %w", err)
	}
	anticipated, err := s.store.ListAnticipated(ctx, grantID)
	if err != nil {
		return core.ForecastPlan{}, fmt.Errorf("forecast plan: %w", err)
	}

	byItem := make(map[int64]map[string]decimal.Decimal, len(items))
	for _, a := range anticipated {
		if byItem[a.LineItemID] == nil {
			byItem[a.LineItemID] = make(map[string]decimal.Decimal)
		}
		byItem[a.LineItemID][a.Month] = a.ExpectedAmount
	}

	plan := core.ForecastPlan{GrantID: grantID, Months: months}
	for _, li := range items {
		row := core.ForecastRow{
			LineItemID:   li.ID,
			LineItem:     li.Name,
			Allocated:    li.AllocatedAmount,
			Months:       byItem[li.ID],
			TotalPlanned: decimal.Zero,
		}
		if row.Months == nil {
			row.Months = map[string]decimal.Decimal{}
		}
		for _, amt := range row.Months {
			row.TotalPlanned = row.TotalPlanned.Add(amt)
		}
		row.Remaining = row.Allocated.Sub(row.TotalPlanned)
		plan.Rows = append(plan.Rows, row)
	}
	return plan, nil
}
