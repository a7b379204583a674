package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"granttrack/internal/cli"
	"granttrack/internal/core"
	"granttrack/internal/report"
)

func newForecastCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "forecast", Short: "Plan anticipated monthly spend"}

	var lineItem int64
	initCmd := &cobra.Command{
		Use:   "init GRANT_ID",
		Short: "Spread allocations evenly over the grant's months",
		Long: `Creates the missing monthly rows for every line item of the grant, or only
for --line-item. Existing rows keep their value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			var n int
			if lineItem > 0 {
				n, err = a.forecast.InitializeAnticipatedExpenses(cmd.Context(), grantID, lineItem)
			} else {
				n, err = a.forecast.InitializeGrantForecast(cmd.Context(), grantID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d forecast rows\n", n)
			return nil
		},
	}
	initCmd.Flags().Int64Var(&lineItem, "line-item", 0, "only initialize this line item id")

	edit := &cobra.Command{
		Use:   "edit LINE_ITEM_ID MONTH AMOUNT",
		Short: "Set the anticipated amount of one month",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			liID, err := parseID(args[0], "line item id")
			if err != nil {
				return err
			}
			amt, err := core.ParseAmount(args[2])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			li, err := a.grants.GetLineItem(ctx, liID)
			if err != nil {
				return err
			}
			if _, err := a.forecast.UpdateAnticipatedExpense(ctx, li.GrantID, liID, args[1], amt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s set to %s\n", li.Name, core.MonthLabel(args[1]), core.FormatAmount(amt, a.cfg.Currency))
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset GRANT_ID",
		Short: "Delete the grant's forecast so it is rebuilt from current allocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			n, err := a.forecast.ResetForecast(cmd.Context(), grantID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d forecast rows\n", n)
			return nil
		},
	}

	var format string
	plan := &cobra.Command{
		Use:   "plan GRANT_ID",
		Short: "Show the forecast as line items by month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			p, err := a.forecast.ForecastPlan(cmd.Context(), grantID)
			if err != nil {
				return err
			}
			switch format {
			case "csv":
				return report.WriteForecastCSV(cmd.OutOrStdout(), p)
			case "text", "":
				return report.WriteForecastTable(cmd.OutOrStdout(), p, a.cfg.Currency)
			default:
				return &core.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q", format)}
			}
		},
	}
	plan.Flags().StringVarP(&format, "format", "f", "text", "output format: text or csv")

	cmd.AddCommand(initCmd, edit, reset, plan)
	return cmd
}

func newExpenseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "expense", Short: "Record and list actual expenses"}

	var notes, submitted string
	add := &cobra.Command{
		Use:   "add GRANT_ID LINE_ITEM_ID MONTH CODE AMOUNT",
		Short: "Record the actual spend of a line item for a month and code",
		Long: `Records an actual expense. Submitting the same grant, month, code and line
item again replaces the amount instead of adding to it.`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			liID, err := parseID(args[1], "line item id")
			if err != nil {
				return err
			}
			amt, err := core.ParseAmount(args[4])
			if err != nil {
				return err
			}
			e := core.ActualExpense{
				GrantID:    grantID,
				LineItemID: liID,
				Month:      args[2],
				QBCode:     args[3],
				Amount:     amt,
				Notes:      notes,
			}
			if submitted != "" {
				if e.DateSubmitted, err = core.ParseDate(submitted); err != nil {
					return err
				}
			}

			created, err := a.expenses.SaveActualExpense(cmd.Context(), e)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintln(cmd.OutOrStdout(), "Expense recorded")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Expense updated")
			}
			return nil
		},
	}
	add.Flags().StringVar(&notes, "notes", "", "notes")
	add.Flags().StringVar(&submitted, "submitted", "", "submission date YYYY-MM-DD (default today)")

	var month string
	list := &cobra.Command{
		Use:   "list GRANT_ID",
		Short: "List a grant's actual expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			rows, err := a.expenses.ListActualExpenses(cmd.Context(), grantID, month)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tMONTH\tCODE\tLINE ITEM\tAMOUNT\tSUBMITTED\tNOTES")
			for _, e := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n", e.ID, e.Month, e.QBCode, e.LineItemID,
					core.FormatAmount(e.Amount, a.cfg.Currency), e.DateSubmitted, e.Notes)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&month, "month", "", "only this month (YYYY-MM)")

	cmd.AddCommand(add, list)
	return cmd
}

var errSheetsNotConfigured = errors.New("google sheets export is not configured, set GOOGLE_SPREADSHEET_ID")

func newSummaryCmd(a *app) *cobra.Command {
	var format, sheet string
	cmd := &cobra.Command{
		Use:   "summary GRANT_ID",
		Short: "Compare allocations with actual spend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.reconciler.GrantSummary(ctx, grantID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "csv":
				return report.WriteSummaryCSV(out, s)
			case "text", "":
				return report.WriteSummaryTable(out, s, a.cfg.Currency)
			case "sheets":
				w, err := cli.OpenSheets(ctx, a.logger, a.cfg)
				if err != nil {
					return err
				}
				if w == nil {
					return errSheetsNotConfigured
				}
				if sheet == "" {
					sheet = a.cfg.GoogleSummarySheetName
				}
				ref, err := report.ExportSummary(ctx, w, sheet, s)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Exported summary to %s\n", ref)
				return nil
			default:
				return &core.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q", format)}
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, csv or sheets")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet tab for --format sheets (default GOOGLE_SUMMARY_SHEET_NAME)")
	return cmd
}
