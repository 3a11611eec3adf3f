package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hirosato/finance-assistant/internal/domain/account"
	"github.com/hirosato/finance-assistant/internal/domain/balance"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

func newBalanceCmd(c *cli) *cobra.Command {
	var q balance.Query

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show balances for accounts matching a filter",
		Example: `  finctl balance --search cash
  finctl balance --type liability --subtype "credit card"
  finctl balance --code 1000 --code 1010 --as-of 2025-06-30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Balances.AccountBalance(cmd.Context(), q)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&q.Filter.Search, "search", "", "free-text search such as cash, bank or payroll")
	cmd.Flags().StringVar(&q.Filter.Type, "type", "", "account type (asset, liability, equity, income, expense)")
	cmd.Flags().StringVar(&q.Filter.Subtype, "subtype", "", "account subtype such as bank or accounts payable")
	cmd.Flags().StringSliceVar(&q.Filter.Codes, "code", nil, "account code, repeatable")
	cmd.Flags().StringVar(&q.AsOf, "as-of", "", "historical cutoff date (YYYY-MM-DD)")
	return cmd
}

func writeReport(w io.Writer, report *balance.BalanceReport) error {
	if report.NoMatch() {
		_, err := fmt.Fprintf(w, "%s\n%s\n", report.Message, report.Hint)
		return err
	}

	if err := writeBalances(w, report.Accounts); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal: %s across %d accounts\n", report.TotalBalance.StringFixed(2), report.AccountCount)
	switch {
	case report.AsOf != "":
		fmt.Fprintf(w, "As of %s\n", report.AsOf)
	case report.ComputedAt != nil:
		fmt.Fprintf(w, "Computed %s (%s)\n", report.ComputedAt.Format("2006-01-02 15:04 MST"), report.Source)
	}
	if report.Caveat != "" {
		fmt.Fprintf(w, "Note: %s\n", report.Caveat)
	}
	return nil
}

func writeBalances(w io.Writer, balances []ledger.AccountBalance) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tSUBTYPE\tBALANCE\t")
	for _, b := range balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", b.Code, b.Name, b.Type, b.Subtype, b.Balance.StringFixed(2))
	}
	return tw.Flush()
}

func newCategoriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List account types, subtypes and known search terms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := c.app.Balances.ListAccountCategories(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), categories)
			}
			return writeCategories(cmd.OutOrStdout(), categories)
		},
	}
}

func writeCategories(w io.Writer, categories account.Categories) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tSUBTYPE\tACCOUNTS\tEXAMPLES")
	for _, t := range categories.Types {
		for _, st := range t.Subtypes {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.Type, st.Subtype, st.Count, strings.Join(st.Examples, ", "))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d active accounts. Search terms: %s\n", categories.TotalActive, strings.Join(categories.SearchTerms, ", "))
	return err
}
