package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hirosato/finance-assistant/internal/app"
	"github.com/hirosato/finance-assistant/internal/domain/balance"
	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

type refresher struct {
	balances *balance.Service
	logger   *slog.Logger
}

// handle recomputes the balance snapshot on a schedule so chat requests hit a warm cache
func (r *refresher) handle(ctx context.Context, event events.CloudWatchEvent) (*balance.RefreshSummary, error) {
	r.logger.Info("Scheduled refresh started", "event_id", event.ID, "time", event.Time)

	summary, err := r.balances.RefreshBalanceCache(ctx, true)
	if err != nil {
		r.logger.Error("Scheduled refresh failed", "error", err)
		return nil, err
	}

	r.logger.Info("Scheduled refresh finished",
		"snapshot_id", summary.SnapshotID,
		"accounts", summary.AccountCount,
		"non_zero", summary.NonZeroAccounts,
		"truncated", summary.Truncated,
	)
	return summary, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	metrics.Init()

	ctx := context.Background()

	cfg, err := app.LoadConfig(ctx, logger)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	r := &refresher{balances: application.Balances, logger: logger}
	lambda.Start(r.handle)
}
