package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// acker acknowledges Socket Mode envelopes
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Listener connects a Handler to Slack over Socket Mode
type Listener struct {
	client  *socketmode.Client
	acker   acker
	handler *Handler
	logger  *slog.Logger
}

// NewListener creates a Socket Mode listener. The API client must carry an app-level token.
func NewListener(api *slackgo.Client, handler *Handler, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	client := socketmode.New(api)
	return &Listener{
		client:  client,
		acker:   client,
		handler: handler,
		logger:  logger,
	}
}

// Run dispatches events until ctx is cancelled
func (l *Listener) Run(ctx context.Context) error {
	go l.dispatch(ctx)
	return l.client.RunContext(ctx)
}

func (l *Listener) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-l.client.Events:
			if !ok {
				return
			}
			l.handle(ctx, evt)
		}
	}
}

func (l *Listener) handle(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		l.logger.Info("Connecting to Slack")
	case socketmode.EventTypeConnected:
		l.logger.Info("Connected to Slack")
	case socketmode.EventTypeConnectionError:
		l.logger.Warn("Slack connection failed", "data", evt.Data)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slackgo.SlashCommand)
		if !ok {
			l.logger.Warn("Unexpected slash command payload", "data_type", fmt.Sprintf("%T", evt.Data))
			l.ack(evt)
			return
		}
		if !strings.EqualFold(cmd.Command, l.handler.command) {
			l.ack(evt)
			return
		}
		if payload := l.handler.SlashCommandAck(cmd); payload != nil {
			l.ack(evt, payload)
			return
		}
		l.ack(evt)
		go l.run("slash_command", func() error { return l.handler.HandleSlashCommand(ctx, cmd) })

	case socketmode.EventTypeEventsAPI:
		event, ok := evt.Data.(slackevents.EventsAPIEvent)
		l.ack(evt)
		if !ok {
			l.logger.Warn("Unexpected events API payload", "data_type", fmt.Sprintf("%T", evt.Data))
			return
		}
		if event.Type != slackevents.CallbackEvent {
			return
		}
		switch inner := event.InnerEvent.Data.(type) {
		case *slackevents.AppMentionEvent:
			go l.run("app_mention", func() error { return l.handler.HandleAppMention(ctx, inner) })
		case *slackevents.MessageEvent:
			go l.run("message", func() error { return l.handler.HandleMessage(ctx, inner) })
		}

	default:
		l.ack(evt)
	}
}

// ack acknowledges the envelope so Slack does not redeliver it
func (l *Listener) ack(evt socketmode.Event, payload ...interface{}) {
	if evt.Request != nil {
		l.acker.Ack(*evt.Request, payload...)
	}
}

func (l *Listener) run(kind string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Slack handler panicked", "event", kind, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		l.logger.Error("Slack handler failed", "event", kind, "error", err)
	}
}
