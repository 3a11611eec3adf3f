package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hirosato/finance-assistant/internal/domain/agent"
)

func newAskCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "ask <question>",
		Short:   "Ask the assistant a question, the same way the Slack bot does",
		Example: `  finctl ask "how much cash do we have?"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loop, err := c.app.Agent()
			if err != nil {
				return err
			}

			result, err := loop.Run(cmd.Context(), nil, strings.Join(args, " "))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), agent.UserMessage(err))
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"answer":     result.Text,
					"iterations": result.Iterations,
					"tool_calls": result.ToolCalls,
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return err
		},
	}
}
