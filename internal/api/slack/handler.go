package slack

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/hirosato/finance-assistant/internal/domain/agent"
	"github.com/hirosato/finance-assistant/internal/domain/conversation"
)

const (
	DefaultCommand       = "/finance"
	DefaultAnswerTimeout = 3 * time.Minute

	emptyAnswer = "I wasn't able to put an answer together. Try rephrasing the question."
)

// Poster posts chat messages. *slack.Client satisfies it.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackgo.MsgOption) (string, string, error)
}

// Answerer runs one question through the tool-call loop. *agent.Loop satisfies it.
type Answerer interface {
	Run(ctx context.Context, history []agent.Message, question string) (*agent.Result, error)
}

// Handler answers finance questions asked in Slack
type Handler struct {
	poster        Poster
	answerer      Answerer
	conversations *conversation.Store
	logger        *slog.Logger

	command       string
	botUserID     string
	answerTimeout time.Duration
}

// Option configures a Handler
type Option func(*Handler)

// WithCommand overrides the slash command name
func WithCommand(command string) Option {
	return func(h *Handler) { h.command = command }
}

// WithBotUserID sets the bot's own user id so its mentions are stripped and its messages ignored
func WithBotUserID(id string) Option {
	return func(h *Handler) { h.botUserID = id }
}

// WithAnswerTimeout bounds a single answer
func WithAnswerTimeout(d time.Duration) Option {
	return func(h *Handler) { h.answerTimeout = d }
}

// NewHandler creates a new Slack handler
func NewHandler(poster Poster, answerer Answerer, conversations *conversation.Store, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		poster:        poster,
		answerer:      answerer,
		conversations: conversations,
		logger:        logger,
		command:       DefaultCommand,
		answerTimeout: DefaultAnswerTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Usage is the help text for a blank command
func (h *Handler) Usage() string {
	return fmt.Sprintf("Ask me about account balances or the budget, for example:\n"+
		"• `%[1]s what is our cash balance?`\n"+
		"• `%[1]s how much do we owe on credit cards?`\n"+
		"• `%[1]s what was budgeted for payroll in March?`\n"+
		"Reply in the thread to ask follow-up questions.", h.command)
}

// SlashCommandAck returns the immediate acknowledgement payload for a command.
// It is non-nil only for blank commands, which are answered with usage help.
func (h *Handler) SlashCommandAck(cmd slackgo.SlashCommand) map[string]interface{} {
	if strings.TrimSpace(cmd.Text) != "" {
		return nil
	}
	return map[string]interface{}{
		"response_type": "ephemeral",
		"text":          h.Usage(),
	}
}

// HandleSlashCommand posts the question to the channel and answers it in the new thread
func (h *Handler) HandleSlashCommand(ctx context.Context, cmd slackgo.SlashCommand) error {
	question := strings.TrimSpace(cmd.Text)
	if question == "" {
		return nil
	}

	_, ts, err := h.poster.PostMessageContext(ctx, cmd.ChannelID,
		slackgo.MsgOptionText(fmt.Sprintf("<@%s> asked: %s", cmd.UserID, question), false))
	if err != nil {
		return fmt.Errorf("post question: %w", err)
	}
	return h.answer(ctx, cmd.ChannelID, ts, question)
}

// HandleAppMention answers a mention, continuing the thread it was posted in
func (h *Handler) HandleAppMention(ctx context.Context, ev *slackevents.AppMentionEvent) error {
	if ev.BotID != "" {
		return nil
	}
	question := h.stripMentions(ev.Text)
	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	if question == "" {
		return h.post(ctx, ev.Channel, threadTS, h.Usage())
	}
	return h.answer(ctx, ev.Channel, threadTS, question)
}

// HandleMessage answers thread replies in conversations the bot already
// takes part in, and direct messages.
func (h *Handler) HandleMessage(ctx context.Context, ev *slackevents.MessageEvent) error {
	if ev.BotID != "" || ev.SubType != "" || (h.botUserID != "" && ev.User == h.botUserID) {
		return nil
	}
	// Mentions arrive separately as app_mention events
	if h.botUserID != "" && strings.Contains(ev.Text, "<@"+h.botUserID+">") {
		return nil
	}

	question := strings.TrimSpace(ev.Text)
	if question == "" {
		return nil
	}

	switch {
	case ev.ThreadTimeStamp != "" && h.conversations.History(threadKey(ev.Channel, ev.ThreadTimeStamp)) != nil:
		return h.answer(ctx, ev.Channel, ev.ThreadTimeStamp, question)
	case ev.ChannelType == "im":
		threadTS := ev.ThreadTimeStamp
		if threadTS == "" {
			threadTS = ev.TimeStamp
		}
		return h.answer(ctx, ev.Channel, threadTS, question)
	}
	return nil
}

func (h *Handler) answer(ctx context.Context, channel, threadTS, question string) error {
	runCtx, cancel := context.WithTimeout(ctx, h.answerTimeout)
	defer cancel()

	key := threadKey(channel, threadTS)
	logger := h.logger.With("request_id", uuid.NewString(), "thread", key)
	start := time.Now()

	result, err := h.answerer.Run(runCtx, h.conversations.History(key), question)
	if err != nil {
		logger.Error("Answer failed", "error", err, "duration", time.Since(start))
		return h.post(ctx, channel, threadTS, agent.UserMessage(err))
	}

	h.conversations.Replace(key, result.Messages)
	logger.Info("Answered question",
		"iterations", result.Iterations,
		"tool_calls", result.ToolCalls,
		"duration", time.Since(start),
	)

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = emptyAnswer
	}
	return h.post(ctx, channel, threadTS, text)
}

func (h *Handler) post(ctx context.Context, channel, threadTS, text string) error {
	_, _, err := h.poster.PostMessageContext(ctx, channel,
		slackgo.MsgOptionText(text, false),
		slackgo.MsgOptionTS(threadTS),
	)
	if err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	return nil
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

func (h *Handler) stripMentions(text string) string {
	if h.botUserID != "" {
		text = strings.ReplaceAll(text, "<@"+h.botUserID+">", "")
	} else {
		text = mentionPattern.ReplaceAllString(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

func threadKey(channel, threadTS string) string {
	return channel + ":" + threadTS
}
