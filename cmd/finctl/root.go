package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hirosato/finance-assistant/internal/app"
)

type cli struct {
	app      *app.App
	asJSON   bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "finctl",
		Short:         "Query ledger balances and the budget workbook from the terminal",
		Long:          "finctl runs the same balance, budget and assistant operations the Slack bot uses, against the configured ERP and snapshot store.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.wire(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of a table")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newBalanceCmd(c),
		newCategoriesCmd(c),
		newCacheCmd(c),
		newBudgetCmd(c),
		newAskCmd(c),
	)
	return rootCmd
}

func (c *cli) wire(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := app.LoadConfig(cmd.Context(), logger)
	if err != nil {
		return err
	}
	c.app, err = app.New(cmd.Context(), cfg, logger)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
