package core

import "github.com/shopspring/decimal"

// AllocationCheck compares the sum of line item allocations with the grant award.
type AllocationCheck struct {
	GrantID        int64
	Exceeds        bool
	TotalAllocated decimal.Decimal
	TotalAward     decimal.Decimal
}

// Unallocated is the part of the award not yet assigned to line items (negative when over-allocated).
func (a AllocationCheck) Unallocated() decimal.Decimal {
	return a.TotalAward.Sub(a.TotalAllocated)
}

// LineItemSpend is one row of the grant spend summary.
type LineItemSpend struct {
	LineItemID   int64
	LineItem     string
	Allocated    decimal.Decimal
	Spent        decimal.Decimal
	PercentSpent decimal.Decimal // one decimal place
	Remaining    decimal.Decimal
}

// NewLineItemSpend derives percent spent and remaining. A zero allocation reports 0.0%.
func NewLineItemSpend(id int64, name string, allocated, spent decimal.Decimal) LineItemSpend {
	percent := decimal.Zero
	if allocated.IsPositive() {
		percent = spent.Div(allocated).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return LineItemSpend{
		LineItemID:   id,
		LineItem:     name,
		Allocated:    allocated,
		Spent:        spent,
		PercentSpent: percent,
		Remaining:    allocated.Sub(spent),
	}
}

// GrantSummary is the reconciliation view of one grant.
type GrantSummary struct {
	Grant      Grant
	Allocation AllocationCheck
	LineItems  []LineItemSpend
	Totals     LineItemSpend
}

// SumSpend totals a set of summary rows into a single row named name.
func SumSpend(name string, rows []LineItemSpend) LineItemSpend {
	allocated, spent := decimal.Zero, decimal.Zero
	for _, r := range rows {
		allocated = allocated.Add(r.Allocated)
		spent = spent.Add(r.Spent)
	}
	return NewLineItemSpend(0, name, allocated, spent)
}

// ForecastRow is one line item across the grant's months.
type ForecastRow struct {
	LineItemID   int64
	LineItem     string
	Allocated    decimal.Decimal
	Months       map[string]decimal.Decimal
	TotalPlanned decimal.Decimal
	Remaining    decimal.Decimal
}

// ForecastPlan pivots anticipated expenses into line item x month.
type ForecastPlan struct {
	GrantID int64
	Months  []string
	Rows    []ForecastRow
}
