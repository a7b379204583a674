package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granttrack/internal/amqp"
	"granttrack/internal/core"
)

func TestAddGrantCreatesFunderOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addGrant(t, "Literacy Program", "1000")

	in := grantInput("Summer Camp", "500")
	in.FunderName = "  ACME foundation "
	inserted, err := f.grants.AddGrant(ctx, in)
	require.NoError(t, err)
	assert.True(t, inserted)

	funders, err := f.grants.ListFunders(ctx)
	require.NoError(t, err)
	require.Len(t, funders, 1)
	assert.Equal(t, "Acme Foundation", funders[0].Name)

	grants, err := f.grants.ListGrants(ctx)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	for _, g := range grants {
		assert.Equal(t, "Acme Foundation", g.FunderName)
	}
}

func TestAddGrantIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.addGrant(t, "Literacy Program", "1000")

	inserted, err := f.grants.AddGrant(context.Background(), grantInput("LITERACY program", "2000"))
	require.NoError(t, err)
	assert.False(t, inserted)

	g, err := f.grants.GrantByName(context.Background(), "literacy program")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", g.TotalAward.StringFixed(2))
}

func TestAddGrantValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := grantInput("Backwards", "100")
	in.StartDate, in.EndDate = core.NewDate(2024, 3, 1), core.NewDate(2024, 1, 1)
	_, err := f.grants.AddGrant(ctx, in)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	in = grantInput("Negative", "-1")
	_, err = f.grants.AddGrant(ctx, in)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	in = grantInput("  ", "1")
	_, err = f.grants.AddGrant(ctx, in)
	assert.ErrorIs(t, err, core.ErrEmptyName)

	funders, err := f.grants.ListFunders(ctx)
	require.NoError(t, err)
	assert.Empty(t, funders)
}

func TestUpdateGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addGrant(t, "Literacy Program", "1000")
	f.addGrant(t, "Summer Camp", "500")

	in := grantInput("summer camp", "1000")
	ok, err := f.grants.UpdateGrant(ctx, id, in)
	require.NoError(t, err)
	assert.False(t, ok, "name collides with another grant")

	in = grantInput("Literacy Program 2024", "1500")
	in.Status = core.StatusClosed
	in.FunderName = "City Council"
	in.Notes = "renewed"
	ok, err = f.grants.UpdateGrant(ctx, id, in)
	require.NoError(t, err)
	assert.True(t, ok)

	g, err := f.grants.GetGrant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Literacy Program 2024", g.Name)
	assert.Equal(t, "1500.00", g.TotalAward.StringFixed(2))
	assert.Equal(t, core.StatusClosed, g.Status)
	assert.Equal(t, "City Council", g.FunderName)
	assert.Equal(t, "renewed", g.Notes)

	_, err = f.grants.UpdateGrant(ctx, 9999, grantInput("Ghost", "1"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRejectedGrantWritesLeaveFundersUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addGrant(t, "Alpha", "1000")
	betaID := f.addGrant(t, "Beta", "500")

	in := grantInput("alpha", "700")
	in.FunderName = "Brand New Funder"
	ok, err := f.grants.UpdateGrant(ctx, betaID, in)
	require.NoError(t, err)
	assert.False(t, ok)

	in = grantInput("Alpha", "900")
	in.FunderName = "Another Funder"
	inserted, err := f.grants.AddGrant(ctx, in)
	require.NoError(t, err)
	assert.False(t, inserted)

	funders, err := f.grants.ListFunders(ctx)
	require.NoError(t, err)
	require.Len(t, funders, 1)
	assert.Equal(t, "Acme Foundation", funders[0].Name)

	beta, err := f.grants.GetGrant(ctx, betaID)
	require.NoError(t, err)
	assert.Equal(t, "Beta", beta.Name)
	assert.Equal(t, "500.00", beta.TotalAward.StringFixed(2))
	assert.Equal(t, "Acme Foundation", beta.FunderName)

	_, err = f.grants.UpdateGrant(ctx, 9999, in)
	assert.ErrorIs(t, err, core.ErrNotFound)
	funders, err = f.grants.ListFunders(ctx)
	require.NoError(t, err)
	assert.Len(t, funders, 1, "a missing grant creates no funder")
}

func TestDeleteFunderBlockedWhileGrantsExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")

	funders, err := f.grants.ListFunders(ctx)
	require.NoError(t, err)
	funderID := funders[0].ID

	ok, err := f.grants.DeleteFunder(ctx, funderID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.grants.DeleteGrant(ctx, grantID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.grants.DeleteFunder(ctx, funderID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRenameFunder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.grants.AddFunder(ctx, "Acme Foundation", "Private")
	require.NoError(t, err)
	_, err = f.grants.AddFunder(ctx, "City Council", "Government")
	require.NoError(t, err)
	funders, err := f.grants.ListFunders(ctx)
	require.NoError(t, err)
	require.Len(t, funders, 2)

	ok, err := f.grants.RenameFunder(ctx, funders[0].ID, "city council")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.grants.RenameFunder(ctx, funders[0].ID, "acme trust")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteGrantCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importChart(t)
	grantID := f.addGrant(t, "Literacy Program", "1000")
	liID := f.addLineItem(t, grantID, "Travel", "300")

	_, err := f.chart.AddMapping(ctx, grantID, liID, "6100")
	require.NoError(t, err)
	_, err = f.forecast.InitializeAnticipatedExpenses(ctx, grantID, liID)
	require.NoError(t, err)
	_, err = f.expenses.SaveActualExpense(ctx, core.ActualExpense{
		GrantID: grantID, LineItemID: liID, Month: "2024-01", QBCode: "6100", Amount: amount("50"),
	})
	require.NoError(t, err)

	ok, err := f.grants.DeleteGrant(ctx, grantID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.grants.GetLineItem(ctx, liID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	actuals, err := f.expenses.ListActualExpenses(ctx, grantID, "")
	require.NoError(t, err)
	assert.Empty(t, actuals)

	// the code is free again once the grant's mappings and expenses are gone
	ok, err = f.chart.DeleteCode(ctx, "6100")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.grants.DeleteGrant(ctx, grantID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddLineItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")

	liID := f.addLineItem(t, grantID, "staff salaries", "600")
	ev := f.events.last()
	require.NotNil(t, ev)
	assert.Equal(t, amqp.EventLineItemCreated, ev.Type)
	assert.Equal(t, grantID, ev.GrantID)
	assert.Equal(t, liID, ev.LineItemID)
	assert.Equal(t, int64(60000), ev.AmountCents)

	inserted, err := f.grants.AddLineItem(ctx, core.LineItem{GrantID: grantID, Name: "STAFF Salaries", AllocatedAmount: amount("1")})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Len(t, f.events.types(), 1)

	_, err = f.grants.AddLineItem(ctx, core.LineItem{GrantID: 9999, Name: "Orphan"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.grants.AddLineItem(ctx, core.LineItem{GrantID: grantID, Name: "Bad", AllocatedAmount: amount("-5")})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestLineItemRenameAndDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")
	otherGrant := f.addGrant(t, "Summer Camp", "1000")
	a := f.addLineItem(t, grantID, "Salaries", "100")
	f.addLineItem(t, grantID, "Supplies", "100")
	f.addLineItem(t, otherGrant, "Books", "100")

	ok, err := f.grants.RenameLineItem(ctx, a, "supplies")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.grants.RenameLineItem(ctx, a, "books")
	require.NoError(t, err)
	assert.True(t, ok, "names are unique per grant only")

	require.NoError(t, f.grants.UpdateLineItemDetails(ctx, a, "  Children's books  "))
	li, err := f.grants.GetLineItem(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "Books", li.Name)
	assert.Equal(t, "Children's books", li.Description)

	ok, err = f.grants.DeleteLineItem(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	items, err := f.grants.ListLineItems(ctx, grantID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestUpdateLineItemAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	grantID := f.addGrant(t, "Literacy Program", "1000")
	a := f.addLineItem(t, grantID, "Salaries", "600")
	f.addLineItem(t, grantID, "Supplies", "300")

	check, err := f.grants.UpdateLineItemAllocation(ctx, a, amount("700"))
	require.NoError(t, err)
	assert.False(t, check.Exceeds, "allocating exactly the award is fine")
	assert.Equal(t, "0.00", check.Unallocated().StringFixed(2))

	check, err = f.grants.UpdateLineItemAllocation(ctx, a, amount("800"))
	require.NoError(t, err)
	assert.True(t, check.Exceeds)
	assert.Equal(t, "1100.00", check.TotalAllocated.StringFixed(2))
	assert.Equal(t, "-100.00", check.Unallocated().StringFixed(2))

	ev := f.events.last()
	require.NotNil(t, ev)
	assert.Equal(t, amqp.EventLineItemAllocated, ev.Type)
	assert.Equal(t, int64(80000), ev.AmountCents)

	_, err = f.grants.UpdateLineItemAllocation(ctx, a, amount("-1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = f.grants.UpdateLineItemAllocation(ctx, 9999, amount("1"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}
