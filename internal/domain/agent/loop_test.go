package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

// scriptedModel replays fixed responses or errors in order
type scriptedModel struct {
	steps    []func(req MessageRequest) (*MessageResponse, error)
	requests []MessageRequest
}

func (m *scriptedModel) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	m.requests = append(m.requests, req)
	idx := len(m.requests) - 1
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	return m.steps[idx](req)
}

func respond(resp *MessageResponse) func(MessageRequest) (*MessageResponse, error) {
	return func(MessageRequest) (*MessageResponse, error) { return resp, nil }
}

func fail(err error) func(MessageRequest) (*MessageResponse, error) {
	return func(MessageRequest) (*MessageResponse, error) { return nil, err }
}

func toolUse(id, name, input string) *MessageResponse {
	return &MessageResponse{
		StopReason: StopToolUse,
		Content: []ContentBlock{
			{Type: BlockText, Text: "Let me check."},
			{Type: BlockToolUse, ID: id, Name: name, Input: json.RawMessage(input)},
		},
	}
}

func finalText(text ...string) *MessageResponse {
	resp := &MessageResponse{StopReason: "end_turn"}
	for _, t := range text {
		resp.Content = append(resp.Content, ContentBlock{Type: BlockText, Text: t})
	}
	return resp
}

type recordingTools struct {
	calls []string
	fail  bool
}

func (r *recordingTools) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: "account_balance", Description: "balances", InputSchema: json.RawMessage(`{"type":"object"}`)}}
}

func (r *recordingTools) Execute(ctx context.Context, name string, input json.RawMessage) ToolOutput {
	r.calls = append(r.calls, name+string(input))
	if r.fail {
		return ToolOutput{Content: `{"error":"ledger down","is_error":true}`, IsError: true}
	}
	return ToolOutput{Content: fmt.Sprintf(`{"tool":%q,"total_balance":"60"}`, name)}
}

type fixedInterval time.Duration

func (d fixedInterval) Next() time.Duration { return time.Duration(d) }

func fastBackoff() Interval { return fixedInterval(time.Millisecond) }

func TestLoop_FinalAnswerWithoutTools(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		respond(finalText("Hello", "", "there")),
	}}
	loop := NewLoop(model, &recordingTools{}, Options{Backoff: fastBackoff}, nil)

	result, err := loop.Run(context.Background(), nil, "hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello\n\nthere", result.Text)
	assert.Equal(t, 1, result.Iterations)
	assert.Len(t, result.Messages, 2)

	req := model.requests[0]
	assert.Equal(t, DefaultSystemPrompt, req.System)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Tools, 1)
}

func TestLoop_FeedsToolResultsBack(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		respond(toolUse("tu_1", "account_balance", `{"search":"cash"}`)),
		respond(finalText("Cash is $60.00.")),
	}}
	tools := &recordingTools{}
	loop := NewLoop(model, tools, Options{Backoff: fastBackoff}, nil)

	history := []Message{UserText("earlier question"), AssistantText("earlier answer")}
	result, err := loop.Run(context.Background(), history, "what is our cash balance?")
	require.NoError(t, err)

	assert.Equal(t, "Cash is $60.00.", result.Text)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 1, result.ToolCalls)
	assert.Equal(t, []string{`account_balance{"search":"cash"}`}, tools.calls)

	second := model.requests[1].Messages
	require.Len(t, second, 5)
	last := second[4]
	assert.Equal(t, RoleUser, last.Role)
	require.Len(t, last.Content, 1)
	assert.Equal(t, BlockToolResult, last.Content[0].Type)
	assert.Equal(t, "tu_1", last.Content[0].ToolUseID)
	assert.JSONEq(t, `{"tool":"account_balance","total_balance":"60"}`, last.Content[0].Content)
	assert.Len(t, result.Messages, 6)
}

func TestLoop_ExecutesEverySiblingToolCall(t *testing.T) {
	multi := &MessageResponse{
		StopReason: StopToolUse,
		Content: []ContentBlock{
			{Type: BlockToolUse, ID: "a", Name: "account_balance", Input: json.RawMessage(`{"search":"cash"}`)},
			{Type: BlockToolUse, ID: "b", Name: "get_cache_status", Input: json.RawMessage(`{}`)},
		},
	}
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		respond(multi),
		respond(finalText("done")),
	}}
	tools := &recordingTools{fail: true}
	loop := NewLoop(model, tools, Options{Backoff: fastBackoff}, nil)

	result, err := loop.Run(context.Background(), nil, "status?")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ToolCalls)

	results := model.requests[1].Messages[2].Content
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ToolUseID)
	assert.Equal(t, "b", results[1].ToolUseID)
	assert.True(t, results[0].IsError)
}

func TestLoop_IterationCeiling(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		respond(toolUse("again", "account_balance", `{}`)),
	}}
	tools := &recordingTools{}
	loop := NewLoop(model, tools, Options{MaxIterations: 4, Backoff: fastBackoff}, nil)

	result, err := loop.Run(context.Background(), nil, "loop forever")

	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrTookTooLong)
	assert.Len(t, model.requests, 4)
	assert.Len(t, tools.calls, 4)
	assert.Equal(t, MessageTookTooLong, UserMessage(err))
}

func TestLoop_RetriesRateLimit(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		fail(&ModelError{Class: ClassRateLimit, StatusCode: 429, Message: "slow down"}),
		respond(finalText("ok")),
	}}
	loop := NewLoop(model, nil, Options{Backoff: fastBackoff}, nil)

	result, err := loop.Run(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Len(t, model.requests, 2)
}

func TestLoop_GivesUpOnPersistentOverload(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		fail(&ModelError{Class: ClassOverload, StatusCode: 529, Message: "overloaded"}),
	}}
	loop := NewLoop(model, nil, Options{Backoff: fastBackoff}, nil)

	_, err := loop.Run(context.Background(), nil, "hi")
	require.Error(t, err)

	assert.Equal(t, ClassOverload, ClassOf(err))
	assert.Equal(t, MessageOverload, UserMessage(err))
	assert.Len(t, model.requests, DefaultMaxAttempts)
}

func TestLoop_SlowFailuresStillGetEveryAttempt(t *testing.T) {
	for i := 0; i < 5; i++ {
		model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
			func(MessageRequest) (*MessageResponse, error) {
				time.Sleep(20 * time.Millisecond)
				return nil, &ModelError{Class: ClassRateLimit, StatusCode: 429, Message: "slow down"}
			},
		}}
		loop := NewLoop(model, nil, Options{Backoff: fastBackoff}, nil)

		_, err := loop.Run(context.Background(), nil, "hi")
		require.Error(t, err)
		assert.Len(t, model.requests, DefaultMaxAttempts)
	}
}

func TestLoop_WaitsBetweenAttempts(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		fail(&ModelError{Class: ClassOverload, StatusCode: 529, Message: "overloaded"}),
	}}
	loop := NewLoop(model, nil, Options{
		MaxAttempts: 2,
		Backoff:     func() Interval { return fixedInterval(30 * time.Millisecond) },
	}, nil)

	start := time.Now()
	_, err := loop.Run(context.Background(), nil, "hi")
	require.Error(t, err)
	assert.Len(t, model.requests, 2)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLoop_CancelDuringBackoff(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		fail(&ModelError{Class: ClassRateLimit, StatusCode: 429, Message: "slow down"}),
	}}
	loop := NewLoop(model, nil, Options{
		Backoff: func() Interval { return fixedInterval(time.Hour) },
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := loop.Run(ctx, nil, "hi")
	require.Error(t, err)
	assert.Equal(t, ClassRateLimit, ClassOf(err))
	assert.Len(t, model.requests, 1)
}

func TestLoop_DoesNotRetryAuthentication(t *testing.T) {
	model := &scriptedModel{steps: []func(MessageRequest) (*MessageResponse, error){
		fail(&ModelError{Class: ClassAuthentication, StatusCode: 401, Message: "invalid x-api-key"}),
	}}
	loop := NewLoop(model, nil, Options{Backoff: fastBackoff}, nil)

	_, err := loop.Run(context.Background(), nil, "hi")
	require.Error(t, err)
	assert.Len(t, model.requests, 1)
	assert.Equal(t, MessageAuthentication, UserMessage(err))
}

func TestUserMessage_DistinctPerClass(t *testing.T) {
	errs := []error{
		&ModelError{Class: ClassAuthentication},
		&ModelError{Class: ClassRateLimit},
		&ModelError{Class: ClassOverload},
		&ModelError{Class: ClassGeneric},
		ErrTookTooLong,
		appErrors.NewConfigurationError("ANTHROPIC_API_KEY is not set"),
		fmt.Errorf("tool: %w", appErrors.NewDataUnavailableError("ledger", errors.New("502"))),
	}

	seen := map[string]bool{}
	for _, err := range errs {
		msg := UserMessage(err)
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message for %v", err)
		seen[msg] = true
	}

	assert.Equal(t, MessageGeneric, UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}
