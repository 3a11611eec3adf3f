package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	slackgo "github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/hirosato/finance-assistant/internal/api/response"
	"github.com/hirosato/finance-assistant/internal/api/slack"
	"github.com/hirosato/finance-assistant/internal/app"
	"github.com/hirosato/finance-assistant/internal/domain/conversation"
	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

const sweepInterval = time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("Assistant stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := app.LoadConfig(ctx, logger)
	if err != nil {
		return err
	}
	if cfg.SlackBotToken == "" || cfg.SlackAppToken == "" {
		return errors.New("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	loop, err := application.Agent()
	if err != nil {
		return err
	}

	api := slackgo.New(cfg.SlackBotToken, slackgo.OptionAppLevelToken(cfg.SlackAppToken))
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return err
	}
	logger.Info("Authenticated with Slack", "bot_user_id", auth.UserID, "team", auth.Team)

	store := conversation.NewStore(cfg.ConversationMaxMessages, cfg.ConversationTTL, nil)
	handler := slack.NewHandler(api, loop, store, logger, slack.WithBotUserID(auth.UserID))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"conversations": store.Len(),
			"cache":         application.Balances.GetCacheStatus(r.Context()),
		})
	})
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return slack.NewListener(api, handler, logger).Run(ctx)
	})
	g.Go(func() error {
		logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if application.Cache.Sweep() {
					logger.Debug("Expired in-memory balance snapshot")
				}
				if n := store.Sweep(); n > 0 {
					logger.Debug("Evicted idle conversations", "count", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
