package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hirosato/finance-assistant/internal/api/handlers"
	"github.com/hirosato/finance-assistant/internal/api/middleware"
	"github.com/hirosato/finance-assistant/internal/app"
	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

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

	handler := handlers.NewMCPHandler(application.MCPService())

	lambda.Start(middleware.Lambda(logger, middleware.Chain(
		handler.Handle,
		middleware.NewLoggingMiddleware(!cfg.IsProd()),
		middleware.NewRecoveryMiddleware(),
	)))
}
