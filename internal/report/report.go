// Package report renders grant summaries and forecast plans as CSV, plain-text tables
// and spreadsheet tables.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gocarina/gocsv"

	"granttrack/internal/core"
	"granttrack/internal/sheets"
)

// SummaryRow is one CSV line of a spend summary. Amounts are plain decimals so the file
// stays machine-readable.
type SummaryRow struct {
	LineItem     string `csv:"line_item"`
	Allocated    string `csv:"allocated"`
	Spent        string `csv:"spent"`
	PercentSpent string `csv:"percent_spent"`
	Remaining    string `csv:"remaining"`
}

// ForecastRow is one (line item, month) cell of a forecast plan in long format.
type ForecastRow struct {
	LineItemID int64  `csv:"line_item_id"`
	LineItem   string `csv:"line_item"`
	Month      string `csv:"month"`
	Expected   string `csv:"expected_amount"`
}

func summaryRow(r core.LineItemSpend) SummaryRow {
	return SummaryRow{
		LineItem:     r.LineItem,
		Allocated:    r.Allocated.StringFixed(2),
		Spent:        r.Spent.StringFixed(2),
		PercentSpent: r.PercentSpent.StringFixed(1),
		Remaining:    r.Remaining.StringFixed(2),
	}
}

// SummaryRows flattens a summary into one row per line item followed by the totals row.
func SummaryRows(s core.GrantSummary) []SummaryRow {
	rows := make([]SummaryRow, 0, len(s.LineItems)+1)
	for _, r := range s.LineItems {
		rows = append(rows, summaryRow(r))
	}
	return append(rows, summaryRow(s.Totals))
}

// ForecastRows lists every planned month of every line item. Months without a row are
// omitted rather than reported as zero.
func ForecastRows(p core.ForecastPlan) []ForecastRow {
	var rows []ForecastRow
	for _, r := range p.Rows {
		for _, m := range p.Months {
			amt, ok := r.Months[m]
			if !ok {
				continue
			}
			rows = append(rows, ForecastRow{
				LineItemID: r.LineItemID,
				LineItem:   r.LineItem,
				Month:      m,
				Expected:   amt.StringFixed(2),
			})
		}
	}
	return rows
}

func WriteSummaryCSV(w io.Writer, s core.GrantSummary) error {
	rows := SummaryRows(s)
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csv.NewWriter(w))); err != nil {
		return fmt.Errorf("write summary CSV: %w", err)
	}
	return nil
}

func WriteForecastCSV(w io.Writer, p core.ForecastPlan) error {
	rows := ForecastRows(p)
	if rows == nil {
		rows = []ForecastRow{}
	}
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csv.NewWriter(w))); err != nil {
		return fmt.Errorf("write forecast CSV: %w", err)
	}
	return nil
}

// WriteSummaryTable prints an aligned, currency-formatted summary for terminals.
func WriteSummaryTable(w io.Writer, s core.GrantSummary, currency string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", "LINE ITEM", "ALLOCATED", "SPENT", "% SPENT", "REMAINING")
	line := func(r core.LineItemSpend) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\t%s\t\n",
			r.LineItem,
			core.FormatAmount(r.Allocated, currency),
			core.FormatAmount(r.Spent, currency),
			r.PercentSpent.StringFixed(1),
			core.FormatAmount(r.Remaining, currency))
	}
	for _, r := range s.LineItems {
		line(r)
	}
	line(s.Totals)
	if err := tw.Flush(); err != nil {
		return err
	}

	if s.Allocation.Exceeds {
		_, err := fmt.Fprintf(w, "\nWARNING: allocations %s exceed the award %s by %s\n",
			core.FormatAmount(s.Allocation.TotalAllocated, currency),
			core.FormatAmount(s.Allocation.TotalAward, currency),
			core.FormatAmount(s.Allocation.Unallocated().Neg(), currency))
		return err
	}
	return nil
}

// WriteForecastTable prints the plan with one column per month.
func WriteForecastTable(w io.Writer, p core.ForecastPlan, currency string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "LINE ITEM\t")
	for _, m := range p.Months {
		fmt.Fprintf(tw, "%s\t", core.MonthLabel(m))
	}
	fmt.Fprint(tw, "PLANNED\tREMAINING\t\n")

	for _, r := range p.Rows {
		fmt.Fprintf(tw, "%s\t", r.LineItem)
		for _, m := range p.Months {
			amt, ok := r.Months[m]
			if !ok {
				fmt.Fprint(tw, "-\t")
				continue
			}
			fmt.Fprintf(tw, "%s\t", core.FormatAmount(amt, currency))
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", core.FormatAmount(r.TotalPlanned, currency), core.FormatAmount(r.Remaining, currency))
	}
	return tw.Flush()
}

// SummarySheet is the summary as spreadsheet cells: a title row, a header, the line
// items and the totals.
func SummarySheet(s core.GrantSummary) [][]string {
	rows := [][]string{
		{s.Grant.Name, s.Grant.FunderName, s.Grant.StartDate.String(), s.Grant.EndDate.String(), s.Allocation.TotalAward.StringFixed(2)},
		{"Line Item", "Allocated", "Spent", "% Spent", "Remaining"},
	}
	for _, r := range SummaryRows(s) {
		rows = append(rows, []string{r.LineItem, r.Allocated, r.Spent, r.PercentSpent, r.Remaining})
	}
	return rows
}

// ExportSummary writes the summary to the named tab, replacing its previous contents.
func ExportSummary(ctx context.Context, w sheets.TableWriter, sheet string, s core.GrantSummary) (string, error) {
	ref, err := w.WriteTable(ctx, sheet, SummarySheet(s))
	if err != nil {
		return "", fmt.Errorf("export summary for grant %d: %w", s.Grant.ID, err)
	}
	return ref, nil
}
