package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hirosato/finance-assistant/internal/platform/spreadsheet"
)

func newBudgetCmd(c *cli) *cobra.Command {
	var tab, row, column string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Look up a cell in the budget workbook, or list its tabs",
		Example: `  finctl budget
  finctl budget --row payroll --column "march 2025"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := c.app.Config.BudgetWorkbookPath
			if path == "" {
				return errors.New("BUDGET_WORKBOOK_PATH is not set")
			}
			workbook, err := spreadsheet.NewWorkbook(path)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if row == "" && column == "" {
				tabs, err := workbook.Tabs()
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(w, map[string][]string{"tabs": tabs})
				}
				_, err = fmt.Fprintln(w, strings.Join(tabs, "\n"))
				return err
			}

			cell, err := workbook.Lookup(tab, row, column)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(w, cell)
			}
			_, err = fmt.Fprintf(w, "%s / %s / %s (%s): %s\n", cell.Tab, cell.RowLabel, cell.ColumnHeader, cell.Address, cell.Value)
			return err
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "tab name (defaults to the first tab)")
	cmd.Flags().StringVar(&row, "row", "", "row label, matched against the first column")
	cmd.Flags().StringVar(&column, "column", "", "column header, matched against the first row")
	return cmd
}
