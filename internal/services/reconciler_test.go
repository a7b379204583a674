package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granttrack/internal/core"
)

func TestCheckAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")

	check, err := f.reconciler.CheckAllocation(ctx, grantID)
	require.NoError(t, err)
	assert.False(t, check.Exceeds)
	assert.True(t, check.TotalAllocated.IsZero())

	f.addLineItem(t, grantID, "Salaries", "600")
	f.addLineItem(t, grantID, "Supplies", "500")

	check, err = f.reconciler.CheckAllocation(ctx, grantID)
	require.NoError(t, err)
	assert.True(t, check.Exceeds)
	assert.Equal(t, "1100.00", check.TotalAllocated.StringFixed(2))
	assert.Equal(t, "1000.00", check.TotalAward.StringFixed(2))

	_, err = f.reconciler.CheckAllocation(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGrantSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importChart(t)
	grantID := f.addGrant(t, "Literacy Program", "1000")
	salaries := f.addLineItem(t, grantID, "Salaries", "500")
	f.addLineItem(t, grantID, "Unfunded", "0")

	for _, e := range []core.ActualExpense{
		{Month: "2024-01", QBCode: "5000", Amount: amount("120")},
		{Month: "2024-02", QBCode: "5000", Amount: amount("50")},
		{Month: "2024-02", QBCode: "6100", Amount: amount("30")},
	} {
		e.GrantID, e.LineItemID = grantID, salaries
		_, err := f.expenses.SaveActualExpense(ctx, e)
		require.NoError(t, err)
	}

	summary, err := f.reconciler.GrantSummary(ctx, grantID)
	require.NoError(t, err)
	assert.Equal(t, "Literacy Program", summary.Grant.Name)
	assert.False(t, summary.Allocation.Exceeds)
	require.Len(t, summary.LineItems, 2)

	row := summary.LineItems[0]
	assert.Equal(t, "Salaries", row.LineItem)
	assert.Equal(t, "200.00", row.Spent.StringFixed(2))
	assert.Equal(t, "40.0", row.PercentSpent.StringFixed(1))
	assert.Equal(t, "300.00", row.Remaining.StringFixed(2))

	unfunded := summary.LineItems[1]
	assert.True(t, unfunded.Spent.IsZero())
	assert.Equal(t, "0.0", unfunded.PercentSpent.StringFixed(1))

	assert.Equal(t, TotalsLabel, summary.Totals.LineItem)
	assert.Equal(t, "500.00", summary.Totals.Allocated.StringFixed(2))
	assert.Equal(t, "200.00", summary.Totals.Spent.StringFixed(2))
	assert.Equal(t, "40.0", summary.Totals.PercentSpent.StringFixed(1))

	_, err = f.reconciler.GrantSummary(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
