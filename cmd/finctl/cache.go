package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirosato/finance-assistant/internal/domain/balance"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or refresh the balance snapshot cache",
	}
	cmd.AddCommand(newCacheStatusCmd(c), newCacheRefreshCmd(c))
	return cmd
}

func newCacheStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the in-memory and persistent tiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := c.app.Balances.GetCacheStatus(cmd.Context())
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			return writeStatus(cmd.OutOrStdout(), status)
		},
	}
}

func writeStatus(w io.Writer, status balance.CacheStatus) error {
	m := status.Memory
	if m.Populated {
		fmt.Fprintf(w, "memory:     %s, %d accounts, age %s (ttl %s, expired=%t)\n",
			m.SnapshotID, m.AccountCount, seconds(m.AgeSeconds), seconds(m.TTLSeconds), m.Expired)
	} else {
		fmt.Fprintf(w, "memory:     empty (ttl %s)\n", seconds(m.TTLSeconds))
	}

	p := status.Persistent
	switch {
	case !p.Configured:
		fmt.Fprintln(w, "persistent: not configured")
	case p.Error != "":
		fmt.Fprintf(w, "persistent: unavailable: %s\n", p.Error)
	case p.SnapshotID == "":
		fmt.Fprintln(w, "persistent: no snapshot stored")
	default:
		fmt.Fprintf(w, "persistent: %s, %d accounts, age %s (stale after %s, stale=%t)\n",
			p.SnapshotID, p.AccountCount, seconds(p.AgeSeconds), seconds(p.StalenessSeconds), p.Stale)
	}
	return nil
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

func newCacheRefreshCmd(c *cli) *cobra.Command {
	var (
		force bool
		top   int
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Load the balance snapshot, recomputing it from the ledger with --force",
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := c.app.Balances.RefreshBalanceCache(cmd.Context(), force)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "snapshot %s from %s: %d accounts, %d with a balance, computed %s\n",
				summary.SnapshotID, summary.Source, summary.AccountCount, summary.NonZeroAccounts,
				summary.ComputedAt.Format(time.RFC3339))
			if summary.Truncated {
				fmt.Fprintln(w, "warning: the ledger scan stopped at its page limit")
			}
			if top <= 0 {
				return nil
			}

			// Served from memory after the refresh above
			snap, err := c.app.Cache.GetAllBalances(cmd.Context(), false)
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
			return writeBalances(w, balance.TopBalances(snap.Balances, top))
		},
	}
	cmd.Flags().BoolVar(&force, "force", true, "recompute from the ledger even when a cached snapshot is fresh")
	cmd.Flags().IntVar(&top, "top", 10, "print the largest balances after refreshing (0 to skip)")
	return cmd
}
