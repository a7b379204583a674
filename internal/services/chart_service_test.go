package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granttrack/internal/core"
	"granttrack/internal/storage"
)

func TestImportChartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.chart.ImportChart(ctx, strings.NewReader(testChart))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Inserted: 7}, res)

	res, err = f.chart.ImportChart(ctx, strings.NewReader(testChart))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 7}, res)

	codes, err := f.chart.ListCodes(ctx, storage.CodeFilter{Parent: "EXPENSES"})
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "6100", codes[0].Code)
	assert.Equal(t, "Airfare", codes[0].Name)
	assert.Equal(t, "Travel", codes[0].Subcategory)
	assert.Equal(t, "Expenses", codes[0].ParentCategory)
}

func TestImportChartRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.chart.ImportChart(context.Background(), strings.NewReader("categories:\n  - nom: x\n"))
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestDeleteParentCategoryGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chart.AddParentCategory(ctx, "Expenses", "")
	require.NoError(t, err)
	_, err = f.chart.AddParentCategory(ctx, "Empty", "")
	require.NoError(t, err)
	parents, err := f.chart.ListParentCategories(ctx)
	require.NoError(t, err)
	require.Len(t, parents, 2)
	empty, expenses := parents[0], parents[1]

	inserted, err := f.chart.AddSubcategory(ctx, expenses.ID, "Travel")
	require.NoError(t, err)
	assert.True(t, inserted)

	ok, err := f.chart.DeleteParentCategory(ctx, expenses.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	subs, err := f.chart.ListSubcategories(ctx, expenses.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	ok, err = f.chart.DeleteParentCategory(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.chart.AddSubcategory(ctx, empty.ID, "Orphan")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSubcategoryAndCodeGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importChart(t)
	grantID := f.addGrant(t, "Literacy Program", "1000")
	liID := f.addLineItem(t, grantID, "Travel", "100")

	subs, err := f.chart.ListSubcategories(ctx, 0)
	require.NoError(t, err)
	var travel core.Subcategory
	for _, s := range subs {
		if s.Name == "Travel" {
			travel = s
		}
	}
	require.NotZero(t, travel.ID)

	ok, err := f.chart.DeleteSubcategory(ctx, travel.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	inserted, err := f.chart.AddMapping(ctx, grantID, liID, "6110")
	require.NoError(t, err)
	assert.True(t, inserted)

	ok, err = f.chart.DeleteCode(ctx, "6110")
	require.NoError(t, err)
	assert.False(t, ok, "mapped codes cannot be deleted")

	ok, err = f.chart.DeleteCode(ctx, "6100")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.chart.DeleteCode(ctx, "0000")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAddMapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importChart(t)
	grantID := f.addGrant(t, "Literacy Program", "1000")
	otherGrant := f.addGrant(t, "Summer Camp", "1000")
	liID := f.addLineItem(t, grantID, "Travel", "100")

	inserted, err := f.chart.AddMapping(ctx, grantID, liID, "6100")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = f.chart.AddMapping(ctx, grantID, liID, "6100")
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = f.chart.AddMapping(ctx, otherGrant, liID, "6100")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	_, err = f.chart.AddMapping(ctx, grantID, liID, "9999")
	assert.ErrorIs(t, err, core.ErrNotFound)

	mappings, err := f.chart.ListMappings(ctx, grantID, 0)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "Airfare", mappings[0].CodeName)
	assert.Equal(t, "Travel", mappings[0].LineItemName)

	ok, err := f.chart.DeleteMapping(ctx, mappings[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	mappings, err = f.chart.ListMappings(ctx, grantID, liID)
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestListCodesCacheIsInvalidatedOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importChart(t)

	all, err := f.chart.ListCodes(ctx, storage.CodeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	_, err = f.chart.ListCodes(ctx, storage.CodeFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.codeCache.Stats().Hits)

	require.NoError(t, f.chart.RenameCode(ctx, "5000", "salaries and wages"))
	assert.Zero(t, f.codeCache.Size())

	all, err = f.chart.ListCodes(ctx, storage.CodeFilter{Subcategory: "salaries"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Salaries And Wages", all[0].Name)

	err = f.chart.RenameCode(ctx, "5000", " ")
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestRenameCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importChart(t)
	parents, err := f.chart.ListParentCategories(ctx)
	require.NoError(t, err)
	require.Len(t, parents, 2)

	ok, err := f.chart.RenameParentCategory(ctx, parents[0].ID, "personnel")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.chart.RenameParentCategory(ctx, parents[0].ID, "operations")
	require.NoError(t, err)
	assert.True(t, ok)

	subs, err := f.chart.ListSubcategories(ctx, parents[0].ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	ok, err = f.chart.RenameSubcategory(ctx, subs[0].ID, "transport")
	require.NoError(t, err)
	assert.True(t, ok)

	codes, err := f.chart.ListCodes(ctx, storage.CodeFilter{Parent: "Operations", Subcategory: "Transport"})
	require.NoError(t, err)
	assert.Len(t, codes, 2)
}

func TestAddCodeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chart.AddCode(ctx, core.Code{Code: "7000", Name: "Rent"})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	_, err = f.chart.AddCode(ctx, core.Code{Code: "7000", Name: "Rent", CategoryID: 42})
	assert.ErrorIs(t, err, core.ErrNotFound)
}
