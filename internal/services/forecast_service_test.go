package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granttrack/internal/amqp"
	"granttrack/internal/core"
)

func forecastByMonth(t *testing.T, f *fixture, grantID, lineItemID int64) map[string]string {
	t.Helper()
	rows, err := f.store.ListAnticipated(context.Background(), grantID)
	require.NoError(t, err)
	out := map[string]string{}
	for _, r := range rows {
		if r.LineItemID == lineItemID {
			out[r.Month] = r.ExpectedAmount.StringFixed(2)
		}
	}
	return out
}

func TestInitializeAnticipatedExpenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")
	liID := f.addLineItem(t, grantID, "Supplies", "100")

	n, err := f.forecast.InitializeAnticipatedExpenses(ctx, grantID, liID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := map[string]string{"2024-01": "33.33", "2024-02": "33.33", "2024-03": "33.34"}
	assert.Equal(t, want, forecastByMonth(t, f, grantID, liID))

	n, err = f.forecast.InitializeAnticipatedExpenses(ctx, grantID, liID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, want, forecastByMonth(t, f, grantID, liID))
}

func TestInitializeKeepsManualEditsAndSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")
	liID := f.addLineItem(t, grantID, "Supplies", "300")

	_, err := f.forecast.InitializeAnticipatedExpenses(ctx, grantID, liID)
	require.NoError(t, err)

	created, err := f.forecast.UpdateAnticipatedExpense(ctx, grantID, liID, "2024-02", amount("250"))
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.grants.UpdateLineItemAllocation(ctx, liID, amount("900"))
	require.NoError(t, err)

	n, err := f.forecast.InitializeAnticipatedExpenses(ctx, grantID, liID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, map[string]string{"2024-01": "100.00", "2024-02": "250.00", "2024-03": "100.00"},
		forecastByMonth(t, f, grantID, liID))
}

func TestUpdateAnticipatedExpenseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")
	otherGrant := f.addGrant(t, "Summer Camp", "1000")
	liID := f.addLineItem(t, grantID, "Supplies", "300")

	_, err := f.forecast.UpdateAnticipatedExpense(ctx, grantID, liID, "2024-04", amount("1"))
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	_, err = f.forecast.UpdateAnticipatedExpense(ctx, grantID, liID, "2024/01", amount("1"))
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	_, err = f.forecast.UpdateAnticipatedExpense(ctx, grantID, liID, "2024-01", amount("-1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = f.forecast.UpdateAnticipatedExpense(ctx, otherGrant, liID, "2024-01", amount("1"))
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	created, err := f.forecast.UpdateAnticipatedExpense(ctx, grantID, liID, "2024-01", amount("42.5"))
	require.NoError(t, err)
	assert.True(t, created, "manual edit may create a missing month")
	assert.Equal(t, map[string]string{"2024-01": "42.50"}, forecastByMonth(t, f, grantID, liID))
}

func TestResetForecastRegeneratesFromCurrentAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")
	a := f.addLineItem(t, grantID, "Supplies", "300")
	b := f.addLineItem(t, grantID, "Travel", "0.02")

	n, err := f.forecast.InitializeGrantForecast(ctx, grantID)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, map[string]string{"2024-01": "0.01", "2024-02": "0.01", "2024-03": "0.00"},
		forecastByMonth(t, f, grantID, b))

	_, err = f.grants.UpdateLineItemAllocation(ctx, a, amount("600"))
	require.NoError(t, err)

	deleted, err := f.forecast.ResetForecast(ctx, grantID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), deleted)
	assert.Equal(t, amqp.EventForecastReset, f.events.last().Type)
	assert.Empty(t, forecastByMonth(t, f, grantID, a))

	_, err = f.forecast.InitializeGrantForecast(ctx, grantID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2024-01": "200.00", "2024-02": "200.00", "2024-03": "200.00"},
		forecastByMonth(t, f, grantID, a))

	_, err = f.forecast.ResetForecast(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestForecastPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")
	a := f.addLineItem(t, grantID, "Supplies", "100")
	f.addLineItem(t, grantID, "Travel", "50")

	_, err := f.forecast.InitializeAnticipatedExpenses(ctx, grantID, a)
	require.NoError(t, err)
	_, err = f.forecast.UpdateAnticipatedExpense(ctx, grantID, a, "2024-03", amount("10"))
	require.NoError(t, err)

	plan, err := f.forecast.ForecastPlan(ctx, grantID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, plan.Months)
	require.Len(t, plan.Rows, 2)

	supplies := plan.Rows[0]
	assert.Equal(t, "Supplies", supplies.LineItem)
	assert.Equal(t, "76.66", supplies.TotalPlanned.StringFixed(2))
	assert.Equal(t, "23.34", supplies.Remaining.StringFixed(2))

	travel := plan.Rows[1]
	assert.Empty(t, travel.Months)
	assert.True(t, travel.TotalPlanned.IsZero())
	assert.Equal(t, "50.00", travel.Remaining.StringFixed(2))
}
