package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"granttrack/internal/core"
	"granttrack/internal/storage"
)

func newCategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "category", Short: "Manage parent categories of the chart of accounts"}

	var description string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a parent category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inserted, err := a.chart.AddParentCategory(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			reportInsert(cmd, inserted, fmt.Sprintf("category %q", args[0]))
			return nil
		},
	}
	add.Flags().StringVar(&description, "description", "", "description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List parent categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := a.chart.ListParentCategories(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, c := range cats {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.Description)
			}
			return tw.Flush()
		},
	}

	rename := &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a parent category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category id")
			if err != nil {
				return err
			}
			ok, err := a.chart.RenameParentCategory(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Category renamed", fmt.Sprintf("A category named %q already exists", args[1]))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a parent category that has no subcategories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category id")
			if err != nil {
				return err
			}
			ok, err := a.chart.DeleteParentCategory(cmd.Context(), id)
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Category deleted", "Category still has subcategories, not deleted")
			return nil
		},
	}

	cmd.AddCommand(add, list, rename, del)
	return cmd
}

func newSubcategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "subcategory", Short: "Manage subcategories of the chart of accounts"}

	add := &cobra.Command{
		Use:   "add PARENT_ID NAME",
		Short: "Add a subcategory under a parent category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0], "parent id")
			if err != nil {
				return err
			}
			inserted, err := a.chart.AddSubcategory(cmd.Context(), parentID, args[1])
			if err != nil {
				return err
			}
			reportInsert(cmd, inserted, fmt.Sprintf("subcategory %q", args[1]))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list [PARENT_ID]",
		Short: "List subcategories, optionally of one parent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parentID int64
			if len(args) == 1 {
				id, err := parseID(args[0], "parent id")
				if err != nil {
					return err
				}
				parentID = id
			}
			subs, err := a.chart.ListSubcategories(cmd.Context(), parentID)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tPARENT")
			for _, s := range subs {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", s.ID, s.Name, s.ParentID)
			}
			return tw.Flush()
		},
	}

	rename := &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a subcategory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "subcategory id")
			if err != nil {
				return err
			}
			ok, err := a.chart.RenameSubcategory(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Subcategory renamed", fmt.Sprintf("The parent already has a subcategory named %q", args[1]))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a subcategory that has no codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "subcategory id")
			if err != nil {
				return err
			}
			ok, err := a.chart.DeleteSubcategory(cmd.Context(), id)
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Subcategory deleted", "Subcategory still has codes, not deleted")
			return nil
		},
	}

	cmd.AddCommand(add, list, rename, del)
	return cmd
}

func newCodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "code", Short: "Manage QuickBooks account codes"}

	var subcategory string
	add := &cobra.Command{
		Use:   "add CODE NAME",
		Short: "Add an account code under a subcategory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subID, err := parseID(subcategory, "subcategory id")
			if err != nil {
				return err
			}
			inserted, err := a.chart.AddCode(cmd.Context(), core.Code{Code: args[0], Name: args[1], CategoryID: subID})
			if err != nil {
				return err
			}
			reportInsert(cmd, inserted, fmt.Sprintf("code %s", args[0]))
			return nil
		},
	}
	add.Flags().StringVarP(&subcategory, "subcategory", "s", "", "subcategory id (required)")
	_ = add.MarkFlagRequired("subcategory")

	var filter storage.CodeFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List account codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codes, err := a.chart.ListCodes(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CODE\tNAME\tSUBCATEGORY\tCATEGORY")
			for _, c := range codes {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Code, c.Name, c.Subcategory, c.ParentCategory)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&filter.Parent, "parent", "", "only codes under this parent category name")
	list.Flags().StringVar(&filter.Subcategory, "subcategory", "", "only codes under this subcategory name")

	rename := &cobra.Command{
		Use:   "rename CODE NAME",
		Short: "Change the display name of a code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.chart.RenameCode(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Code renamed")
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete CODE",
		Short: "Delete a code that no mapping or expense references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.chart.DeleteCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reportChange(cmd, ok, "Code deleted", "Code is still referenced by mappings or expenses, not deleted")
			return nil
		},
	}

	cmd.AddCommand(add, list, rename, del)
	return cmd
}

func newChartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "chart", Short: "Bulk operations on the chart of accounts"}

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Import categories, subcategories and codes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.chart.ImportChart(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries, skipped %d existing\n", res.Inserted, res.Skipped)
			return nil
		},
	}

	cmd.AddCommand(imp)
	return cmd
}

func newMapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "map", Short: "Link line items to account codes"}

	add := &cobra.Command{
		Use:   "add GRANT_ID LINE_ITEM_ID CODE",
		Short: "Map a line item to a code",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			liID, err := parseID(args[1], "line item id")
			if err != nil {
				return err
			}
			inserted, err := a.chart.AddMapping(cmd.Context(), grantID, liID, args[2])
			if err != nil {
				return err
			}
			reportInsert(cmd, inserted, fmt.Sprintf("mapping to %s", args[2]))
			return nil
		},
	}

	var lineItem int64
	list := &cobra.Command{
		Use:   "list GRANT_ID",
		Short: "List a grant's code mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantID, err := parseID(args[0], "grant id")
			if err != nil {
				return err
			}
			maps, err := a.chart.ListMappings(cmd.Context(), grantID, lineItem)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tLINE ITEM\tCODE\tNAME")
			for _, m := range maps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, m.LineItemName, m.QBCode, m.CodeName)
			}
			return tw.Flush()
		},
	}
	list.Flags().Int64Var(&lineItem, "line-item", 0, "only mappings of this line item id")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "mapping id")
			if err != nil {
				return err
			}
			ok, err := a.chart.DeleteMapping(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("mapping %d: %w", id, core.ErrNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Mapping deleted")
			return nil
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}
