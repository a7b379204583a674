package services

import (
	"context"
	"fmt"
	"log/slog"

	"granttrack/internal/core"
	applog "granttrack/internal/log"
	"granttrack/internal/storage"
)

// TotalsLabel names the grant-level row of a spend summary.
const TotalsLabel = "Total"

// Reconciler compares allocations with the award and actual spend with allocations.
type Reconciler struct {
	store *storage.Store
}

func NewReconciler(store *storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// CheckAllocation reports whether the line item allocations of a grant exceed its award.
// The result is advisory; nothing is blocked on it.
func (r *Reconciler) CheckAllocation(ctx context.Context, grantID int64) (core.AllocationCheck, error) {
	allocated, award, err := r.store.AllocationTotals(ctx, grantID)
	if err != nil {
		return core.AllocationCheck{}, fmt.Errorf("check allocation: %w", err)
	}

	check := core.AllocationCheck{
		GrantID:        grantID,
		Exceeds:        allocated.GreaterThan(award),
		TotalAllocated: allocated,
		TotalAward:     award,
	}
	if check.Exceeds {
		slog.WarnContext(ctx, "Grant is over-allocated",
			applog.FieldComponent, applog.ComponentReconcile,
			"grant_id", grantID,
			"allocated", allocated.StringFixed(2),
			"award", award.StringFixed(2))
	}
	return check, nil
}

// GrantSummary builds one spend row per line item, whether or not it has actual expenses,
// plus the grant-level totals.
func (r *Reconciler) GrantSummary(ctx context.Context, grantID int64) (core.GrantSummary, error) {
	grant, err := r.store.GetGrant(ctx, grantID)
	if err != nil {
		return core.GrantSummary{}, fmt.Errorf("grant summary: %w", err)
	}
	items, err := r.store.ListLineItems(ctx, grantID)
	if err != nil {
		return core.GrantSummary{}, fmt.Errorf("grant summary: %w", err)
	}
	spent, err := r.store.SpentByLineItem(ctx, grantID)
	if err != nil {
		return core.GrantSummary{}, fmt.Errorf("grant summary: %w", err)
	}
	check, err := r.CheckAllocation(ctx, grantID)
	if err != nil {
		return core.GrantSummary{}, err
	}

	rows := make([]core.LineItemSpend, 0, len(items))
	for _, li := range items {
		// missing map entries are the zero Decimal
		rows = append(rows, core.NewLineItemSpend(li.ID, li.Name, li.AllocatedAmount, spent[li.ID]))
	}

	return core.GrantSummary{
		Grant:      grant,
		Allocation: check,
		LineItems:  rows,
		Totals:     core.SumSpend(TotalsLabel, rows),
	}, nil
}
