package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"granttrack/internal/core"
	"granttrack/internal/services"
)

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: what, Reason: fmt.Sprintf("%q is not a valid id", arg)}
	}
	return id, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// reportInsert prints the outcome of an idempotent insert.
func reportInsert(cmd *cobra.Command, inserted bool, what string) {
	if inserted {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", what)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, nothing added\n", what)
}

// reportChange prints the outcome of a rename or guarded delete.
func reportChange(cmd *cobra.Command, ok bool, done, refused string) {
	if ok {
		fmt.Fprintln(cmd.OutOrStdout(), done)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), refused)
}

func newFunderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "funder", Short: "Manage funders"}

	var funderType string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a funder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inserted, err := a.grants.AddFunder(cmd.Context(), args[0], funderType)
			if err != nil {
				return err
			}
			reportInsert(cmd, inserted, fmt.Sprintf("funder %q", args[0]))
			return nil
		},
	}
	add.Flags().StringVar(&funderType, "type", "", "funder type, e.g. Federal or Private")

	list := &cobra.Command{
		Use:   "list",
		Short: "List funders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			funders, err := a.grants.ListFunders(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tTYPE")
			for _, f := range funders {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", f.ID, f.Name, f.Type)
			}
			return tw.Flush()
		},
	}

	rename := &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a funder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "funder id")
			if err != nil {
				return err
			}
			ok, err := a.grants.RenameFunder(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Funder renamed", fmt.Sprintf("A funder named %q already exists", args[1]))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a funder that has no grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "funder id")
			if err != nil {
				return err
			}
			ok, err := a.grants.DeleteFunder(cmd.Context(), id)
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Funder deleted", "Funder still has grants, not deleted")
			return nil
		},
	}

	cmd.AddCommand(add, list, rename, del)
	return cmd
}

// grantFlags binds the flags shared by grant add and grant update.
type grantFlags struct {
	funder, funderType string
	start, end         string
	award              string
	status, notes      string
}

func (f *grantFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.funder, "funder", "", "funder name, created if missing (required)")
	cmd.Flags().StringVar(&f.funderType, "funder-type", "", "funder type used when the funder is created")
	cmd.Flags().StringVar(&f.start, "start", "", "start date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.end, "end", "", "end date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.award, "award", "", "total award amount (required)")
	cmd.Flags().StringVar(&f.status, "status", "", "Pending, Active or Closed (default Pending)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("funder")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("award")
}

func (f *grantFlags) input(name string) (services.GrantInput, error) {
	in := services.GrantInput{Name: name, FunderName: f.funder, FunderType: f.funderType, Notes: f.notes}
	var err error
	if in.StartDate, err = core.ParseDate(f.start); err != nil {
		return in, err
	}
	if in.EndDate, err = core.ParseDate(f.end); err != nil {
		return in, err
	}
	if in.TotalAward, err = core.ParseAmount(f.award); err != nil {
		return in, err
	}
	if f.status != "" {
		if in.Status, err = core.ParseGrantStatus(f.status); err != nil {
			return in, err
		}
	}
	return in, nil
}

func newGrantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "grant", Short: "Manage grants"}

	var addFlags grantFlags
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a grant, creating its funder if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := addFlags.input(args[0])
			if err != nil {
				return err
			}
			inserted, err := a.grants.AddGrant(cmd.Context(), in)
			if err != nil {
				return err
			}
			reportInsert(cmd, inserted, fmt.Sprintf("grant %q", args[0]))
			return nil
		},
	}
	addFlags.bind(add)

	var updateFlags grantFlags
	update := &cobra.Command{
		Use:   "update ID NAME",
		Short: "Replace every field of a grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			in, err := updateFlags.input(args[1])
			if err != nil {
				return err
			}
			ok, err := a.grants.UpdateGrant(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Grant updated", fmt.Sprintf("A grant named %q already exists", args[1]))
			return nil
		},
	}
	updateFlags.bind(update)

	list := &cobra.Command{
		Use:   "list",
		Short: "List grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			grants, err := a.grants.ListGrants(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tFUNDER\tSTART\tEND\tAWARD\tSTATUS")
			for _, g := range grants {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, g.FunderName,
					g.StartDate, g.EndDate, core.FormatAmount(g.TotalAward, a.cfg.Currency), g.Status)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one grant with its line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			g, err := a.grants.GetGrant(ctx, id)
			if err != nil {
				return err
			}
			items, err := a.grants.ListLineItems(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (#%d)\n", g.Name, g.ID)
			fmt.Fprintf(out, "Funder: %s\nPeriod: %s to %s\nAward:  %s\nStatus: %s\n",
				g.FunderName, g.StartDate, g.EndDate, core.FormatAmount(g.TotalAward, a.cfg.Currency), g.Status)
			if g.Notes != "" {
				fmt.Fprintf(out, "Notes:  %s\n", g.Notes)
			}
			fmt.Fprintln(out)
			return printLineItems(out, items, a.cfg.Currency)
		},
	}

	check := &cobra.Command{
		Use:   "check ID",
		Short: "Compare total line item allocations with the award",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			check, err := a.reconciler.CheckAllocation(cmd.Context(), id)
			if err != nil {
				return err
			}
			printAllocation(cmd.OutOrStdout(), check, a.cfg.Currency)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a grant with its line items, mappings and expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			ok, err := a.grants.DeleteGrant(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("grant %d: %w", id, core.ErrNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Grant deleted")
			return nil
		},
	}

	cmd.AddCommand(add, update, list, show, check, del)
	return cmd
}

func printLineItems(w io.Writer, items []core.LineItem, currency string) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tLINE ITEM\tALLOCATED\tDESCRIPTION")
	for _, li := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", li.ID, li.Name, core.FormatAmount(li.AllocatedAmount, currency), li.Description)
	}
	return tw.Flush()
}

func printAllocation(w io.Writer, check core.AllocationCheck, currency string) {
	fmt.Fprintf(w, "Allocated: %s of %s\n",
		core.FormatAmount(check.TotalAllocated, currency), core.FormatAmount(check.TotalAward, currency))
	if check.Exceeds {
		fmt.Fprintf(w, "WARNING: allocations exceed the award by %s\n",
			core.FormatAmount(check.TotalAllocated.Sub(check.TotalAward), currency))
		return
	}
	fmt.Fprintf(w, "Unallocated: %s\n", core.FormatAmount(check.Unallocated(), currency))
}

func newLineItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "lineitem", Aliases: []string{"line-item"}, Short: "Manage budget line items"}

	var amount, description string
	add := &cobra.Command{
		Use:   "add GRANT_ID NAME",
		Short: "Add a line item to a grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			allocated, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			inserted, err := a.grants.AddLineItem(ctx, core.LineItem{
				GrantID:         grantID,
				Name:            args[1],
				Description:     description,
				AllocatedAmount: allocated,
			})
			if err != nil {
				return err
			}
			reportInsert(cmd, inserted, fmt.Sprintf("line item %q", args[1]))
			if !inserted {
				return nil
			}
			check, err := a.reconciler.CheckAllocation(ctx, grantID)
			if err != nil {
				return err
			}
			printAllocation(cmd.OutOrStdout(), check, a.cfg.Currency)
			return nil
		},
	}
	add.Flags().StringVar(&amount, "amount", "0", "allocated amount")
	add.Flags().StringVar(&description, "description", "", "description")

	list := &cobra.Command{
		Use:   "list GRANT_ID",
		Short: "List a grant's line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			items, err := a.grants.ListLineItems(cmd.Context(), grantID)
			if err != nil {
				return err
			}
			return printLineItems(cmd.OutOrStdout(), items, a.cfg.Currency)
		},
	}

	rename := &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a line item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "line item id")
			if err != nil {
				return err
			}
			ok, err := a.grants.RenameLineItem(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Line item renamed", fmt.Sprintf("The grant already has a line item named %q", args[1]))
			return nil
		},
	}

	describe := &cobra.Command{
		Use:   "describe ID DESCRIPTION",
		Short: "Replace a line item's description",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "line item id")
			if err != nil {
				return err
			}
			if err := a.grants.UpdateLineItemDetails(cmd.Context(), id, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Line item updated")
			return nil
		},
	}

	allocate := &cobra.Command{
		Use:   "allocate ID AMOUNT",
		Short: "Change a line item's allocated amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "line item id")
			if err != nil {
				return err
			}
			amt, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			check, err := a.grants.UpdateLineItemAllocation(cmd.Context(), id, amt)
			if err != nil {
				return err
			}
			printAllocation(cmd.OutOrStdout(), check, a.cfg.Currency)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a line item with its mappings and expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "line item id")
			if err != nil {
				return err
			}
			ok, err := a.grants.DeleteLineItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("line item %d: %w", id, core.ErrNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Line item deleted")
			return nil
		},
	}

	cmd.AddCommand(add, list, rename, describe, allocate, del)
	return cmd
}
