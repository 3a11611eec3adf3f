package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lestrrat-go/backoff/v2"

	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

const (
	DefaultMaxIterations = 10
	DefaultMaxTokens     = 4096
	DefaultMaxAttempts   = 3
)

// DefaultSystemPrompt frames the assistant for finance questions
const DefaultSystemPrompt = `You are a finance assistant for the company's accounting team.
Answer questions about account balances using the tools provided. Always call a tool before
stating a balance; never guess numbers. When a tool reports that no accounts matched, say so
and suggest list_account_categories. When results carry a caveat, repeat it. Format amounts
with thousands separators and two decimals. Keep answers short.`

// Interval yields the wait before each retry
type Interval interface {
	Next() time.Duration
}

// Options configures a Loop. Zero values use the defaults.
type Options struct {
	System        string
	MaxTokens     int
	MaxIterations int
	// MaxAttempts bounds model calls per turn, counting the first one
	MaxAttempts int
	// Backoff returns a fresh interval sequence for each model call
	Backoff func() Interval
}

// DefaultBackoff waits exponentially between retries, starting at one second
func DefaultBackoff() Interval {
	return backoff.NewExponentialInterval(
		backoff.WithMinInterval(time.Second),
		backoff.WithMaxInterval(20*time.Second),
		backoff.WithJitterFactor(0.1),
	)
}

// Result is the outcome of a completed loop
type Result struct {
	Text       string
	Messages   []Message // full transcript including the new turns
	Iterations int
	ToolCalls  int
}

// Loop drives the model through tool calls until it produces a final answer
type Loop struct {
	model  Model
	tools  ToolExecutor
	opts   Options
	logger *slog.Logger
}

// NewLoop creates a new tool-call loop
func NewLoop(model Model, tools ToolExecutor, opts Options, logger *slog.Logger) *Loop {
	if opts.System == "" {
		opts.System = DefaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{model: model, tools: tools, opts: opts, logger: logger}
}

// Run answers question in the context of history. Tool calls of one turn run sequentially.
func (l *Loop) Run(ctx context.Context, history []Message, question string) (*Result, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, history...)
	messages = append(messages, UserText(question))

	var defs []ToolDefinition
	if l.tools != nil {
		defs = l.tools.Definitions()
	}

	result := &Result{}
	for result.Iterations < l.opts.MaxIterations {
		result.Iterations++

		resp, err := l.createMessage(ctx, MessageRequest{
			System:    l.opts.System,
			Messages:  messages,
			Tools:     defs,
			MaxTokens: l.opts.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		messages = append(messages, Message{Role: RoleAssistant, Content: resp.Content})

		uses := resp.ToolUses()
		if resp.StopReason != StopToolUse || len(uses) == 0 {
			result.Text = joinText(resp.Content)
			result.Messages = messages
			return result, nil
		}

		results := make([]ContentBlock, 0, len(uses))
		for _, use := range uses {
			results = append(results, l.executeTool(ctx, use))
			result.ToolCalls++
		}
		messages = append(messages, Message{Role: RoleUser, Content: results})
	}

	l.logger.Warn("Tool loop hit iteration limit",
		"iterations", result.Iterations,
		"tool_calls", result.ToolCalls,
	)
	return nil, ErrTookTooLong
}

func (l *Loop) executeTool(ctx context.Context, use ContentBlock) ContentBlock {
	var out ToolOutput
	if l.tools == nil {
		out = ToolOutput{Content: `{"error":"no tools are available","is_error":true}`, IsError: true}
	} else {
		start := time.Now()
		out = l.tools.Execute(ctx, use.Name, use.Input)
		l.logger.Info("Executed tool",
			"tool", use.Name,
			"tool_use_id", use.ID,
			"is_error", out.IsError,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	metrics.IncToolCall(use.Name, out.IsError)

	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: use.ID,
		Content:   out.Content,
		IsError:   out.IsError,
	}
}

// createMessage calls the model, retrying rate-limit and overload failures.
// The wait is measured from each failure, not from the first attempt.
func (l *Loop) createMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	interval := l.opts.Backoff()
	for attempt := 1; ; attempt++ {
		resp, err := l.model.CreateMessage(ctx, req)
		if err == nil {
			metrics.IncModelRequest("success")
			return resp, nil
		}

		class := ClassOf(err)
		metrics.IncModelRequest(string(class))

		var modelErr *ModelError
		if !errors.As(err, &modelErr) || !modelErr.Retryable() || attempt >= l.opts.MaxAttempts {
			return nil, err
		}

		wait := interval.Next()
		l.logger.Warn("Model call failed, backing off",
			"class", class,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
	}
}
