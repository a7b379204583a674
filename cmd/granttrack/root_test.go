package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granttrack/internal/core"
)

const testChart = `
categories:
  - name: expenses
    subcategories:
      - name: travel
        codes:
          - code: "6100"
            name: airfare
          - code: "6110"
            name: lodging
`

type harness struct {
	db string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("CURRENCY", "USD")
	t.Setenv("TITLE_CASE_NAMES", "true")
	return &harness{db: filepath.Join(t.TempDir(), "granttrack.db")}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"--db", h.db, "--log-level", "error"}, args...), &stdout, &stderr)
	return stdout.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, "granttrack %v", args)
	return out
}

func (h *harness) seedGrant(t *testing.T) {
	t.Helper()
	h.mustRun(t, "grant", "add", "youth program",
		"--funder", "acme foundation", "--funder-type", "Private",
		"--start", "2024-01-15", "--end", "2024-03-01", "--award", "1200")
}

func TestFunderCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "funder", "add", "acme foundation", "--type", "Private")
	assert.Contains(t, out, `Added funder "acme foundation"`)

	out = h.mustRun(t, "funder", "add", "ACME Foundation")
	assert.Contains(t, out, "already exists")

	out = h.mustRun(t, "funder", "list")
	assert.Contains(t, out, "Acme Foundation")
	assert.Contains(t, out, "Private")

	out = h.mustRun(t, "funder", "rename", "1", "acme trust")
	assert.Contains(t, out, "Funder renamed")

	out = h.mustRun(t, "funder", "delete", "1")
	assert.Contains(t, out, "Funder deleted")
}

func TestGrantCommands(t *testing.T) {
	h := newHarness(t)
	h.seedGrant(t)

	out := h.mustRun(t, "grant", "list")
	assert.Contains(t, out, "Youth Program")
	assert.Contains(t, out, "$1,200.00")
	assert.Contains(t, out, "Pending")

	out = h.mustRun(t, "grant", "show", "1")
	assert.Contains(t, out, "Youth Program (#1)")
	assert.Contains(t, out, "Period: 2024-01-15 to 2024-03-01")

	out = h.mustRun(t, "grant", "update", "1", "youth program",
		"--funder", "acme foundation", "--start", "2024-01-01", "--end", "2024-06-30",
		"--award", "1500", "--status", "active")
	assert.Contains(t, out, "Grant updated")

	out = h.mustRun(t, "grant", "show", "1")
	assert.Contains(t, out, "$1,500.00")
	assert.Contains(t, out, "Active")

	out = h.mustRun(t, "funder", "delete", "1")
	assert.Contains(t, out, "still has grants")

	out = h.mustRun(t, "grant", "delete", "1")
	assert.Contains(t, out, "Grant deleted")

	_, err := h.run(t, "grant", "show", "1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGrantAddRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "grant", "add", "youth program",
		"--funder", "acme", "--start", "2024-03-01", "--end", "2024-01-01", "--award", "100")
	assert.True(t, core.IsValidation(err), "got %v", err)

	_, err = h.run(t, "grant", "add", "youth program",
		"--funder", "acme", "--start", "2024-01-01", "--end", "2024-03-01", "--award", "lots")
	assert.True(t, core.IsValidation(err), "got %v", err)

	_, err = h.run(t, "grant", "add", "youth program", "--funder", "acme")
	assert.Error(t, err, "required flags are enforced")

	_, err = h.run(t, "grant", "show", "abc")
	assert.True(t, core.IsValidation(err), "got %v", err)
}

func TestLineItemAllocationWarnings(t *testing.T) {
	h := newHarness(t)
	h.seedGrant(t)

	out := h.mustRun(t, "lineitem", "add", "1", "staff", "--amount", "1000", "--description", "salaries")
	assert.Contains(t, out, "Allocated: $1,000.00 of $1,200.00")
	assert.Contains(t, out, "Unallocated: $200.00")

	out = h.mustRun(t, "lineitem", "allocate", "1", "1500")
	assert.Contains(t, out, "WARNING: allocations exceed the award by $300.00")

	out = h.mustRun(t, "lineitem", "describe", "1", "part-time staff")
	assert.Contains(t, out, "Line item updated")

	out = h.mustRun(t, "lineitem", "list", "1")
	assert.Contains(t, out, "Staff")
	assert.Contains(t, out, "$1,500.00")
	assert.Contains(t, out, "part-time staff")

	out = h.mustRun(t, "grant", "check", "1")
	assert.Contains(t, out, "WARNING")

	out = h.mustRun(t, "lineitem", "delete", "1")
	assert.Contains(t, out, "Line item deleted")

	_, err := h.run(t, "lineitem", "delete", "1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestChartCommands(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "chart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testChart), 0o600))

	out := h.mustRun(t, "chart", "import", path)
	assert.Contains(t, out, "Imported 4 entries, skipped 0 existing")

	out = h.mustRun(t, "chart", "import", path)
	assert.Contains(t, out, "Imported 0 entries, skipped 4 existing")

	out = h.mustRun(t, "code", "list", "--subcategory", "travel")
	assert.Contains(t, out, "6100")
	assert.Contains(t, out, "Airfare")

	out = h.mustRun(t, "code", "add", "6120", "meals", "--subcategory", "1")
	assert.Contains(t, out, "Added code 6120")

	out = h.mustRun(t, "code", "rename", "6120", "per diem")
	assert.Contains(t, out, "Code renamed")

	out = h.mustRun(t, "subcategory", "list", "1")
	assert.Contains(t, out, "Travel")

	out = h.mustRun(t, "category", "delete", "1")
	assert.Contains(t, out, "still has subcategories")

	out = h.mustRun(t, "code", "delete", "6120")
	assert.Contains(t, out, "Code deleted")
}

func TestForecastExpenseAndSummary(t *testing.T) {
	h := newHarness(t)
	h.seedGrant(t)
	path := filepath.Join(t.TempDir(), "chart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testChart), 0o600))
	h.mustRun(t, "chart", "import", path)
	h.mustRun(t, "lineitem", "add", "1", "staff", "--amount", "100")

	out := h.mustRun(t, "forecast", "init", "1")
	assert.Contains(t, out, "Created 3 forecast rows")

	out = h.mustRun(t, "forecast", "init", "1")
	assert.Contains(t, out, "Created 0 forecast rows")

	out = h.mustRun(t, "forecast", "plan", "1", "--format", "csv")
	assert.Contains(t, out, "line_item_id,line_item,month,expected_amount")
	assert.Contains(t, out, "1,Staff,2024-01,33.33")
	assert.Contains(t, out, "1,Staff,2024-03,33.34")

	out = h.mustRun(t, "forecast", "edit", "1", "2024-02", "50")
	assert.Contains(t, out, "Staff Feb 2024 set to $50.00")

	_, err := h.run(t, "forecast", "edit", "1", "2024-07", "50")
	assert.True(t, core.IsValidation(err), "month outside the grant is rejected, got %v", err)

	out = h.mustRun(t, "map", "add", "1", "1", "6100")
	assert.Contains(t, out, "Added mapping to 6100")

	out = h.mustRun(t, "map", "list", "1")
	assert.Contains(t, out, "6100")

	out = h.mustRun(t, "expense", "add", "1", "1", "2024-02", "6100", "25", "--notes", "flight")
	assert.Contains(t, out, "Expense recorded")

	out = h.mustRun(t, "expense", "add", "1", "1", "2024-02", "6100", "40")
	assert.Contains(t, out, "Expense updated")

	out = h.mustRun(t, "expense", "list", "1", "--month", "2024-02")
	assert.Contains(t, out, "$40.00")

	out = h.mustRun(t, "summary", "1", "--format", "csv")
	assert.Contains(t, out, "Staff,100.00,40.00,40.0,60.00")

	out = h.mustRun(t, "summary", "1")
	assert.Contains(t, out, "$60.00")

	_, err = h.run(t, "summary", "1", "--format", "sheets")
	assert.ErrorIs(t, err, errSheetsNotConfigured)

	out = h.mustRun(t, "forecast", "reset", "1")
	assert.Contains(t, out, "Removed 3 forecast rows")
}
