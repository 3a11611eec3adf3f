package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hirosato/finance-assistant/internal/domain/agent"
	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-20250514"

	// statusOverloaded is returned by the Messages API when it sheds load
	statusOverloaded = 529
)

// Client calls the Messages API through the SDK. Retries belong to agent.Loop,
// so the SDK's own retry loop is disabled.
type Client struct {
	sdk   sdk.Client
	model string
}

var _ agent.Model = (*Client)(nil)

// NewClient constructs a Messages API client. An empty key is a configuration error.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, appErrors.NewConfigurationError("ANTHROPIC_API_KEY is not set")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		sdk: sdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(timeout),
		),
		model: model,
	}, nil
}

// CreateMessage sends one request and classifies failures into agent.ModelError
func (c *Client) CreateMessage(ctx context.Context, req agent.MessageRequest) (*agent.MessageResponse, error) {
	tools, err := toToolParams(req.Tools)
	if err != nil {
		return nil, &agent.ModelError{Class: agent.ClassGeneric, Message: "encode tools", Err: err}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toMessageParams(req.Messages),
		Tools:     tools,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			modelErr := classify(apiErr.StatusCode, []byte(apiErr.RawJSON()))
			modelErr.Err = err
			return nil, modelErr
		}
		return nil, &agent.ModelError{Class: agent.ClassGeneric, Message: "request failed", Err: err}
	}

	var out agent.MessageResponse
	if err := json.Unmarshal([]byte(msg.RawJSON()), &out); err != nil {
		return nil, &agent.ModelError{Class: agent.ClassGeneric, Message: "decode response", Err: err}
	}
	return &out, nil
}

func toMessageParams(messages []agent.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case agent.BlockText:
				blocks = append(blocks, sdk.NewTextBlock(b.Text))
			case agent.BlockToolUse:
				input := b.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, sdk.NewToolUseBlock(b.ID, input, b.Name))
			case agent.BlockToolResult:
				blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}
		if m.Role == agent.RoleAssistant {
			out = append(out, sdk.NewAssistantMessage(blocks...))
		} else {
			out = append(out, sdk.NewUserMessage(blocks...))
		}
	}
	return out
}

type inputSchema struct {
	Properties any      `json:"properties"`
	Required   []string `json:"required"`
}

func toToolParams(defs []agent.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var schema inputSchema
		if len(def.InputSchema) > 0 {
			if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
				return nil, err
			}
		}
		tool := sdk.ToolParam{
			Name: def.Name,
			InputSchema: sdk.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}
		if def.Description != "" {
			tool.Description = sdk.String(def.Description)
		}
		out = append(out, sdk.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func classify(status int, body []byte) *agent.ModelError {
	message := http.StatusText(status)
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	if len(message) > 300 {
		message = message[:300]
	}

	class := agent.ClassGeneric
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		class = agent.ClassAuthentication
	case status == http.StatusTooManyRequests:
		class = agent.ClassRateLimit
	case status == statusOverloaded || status == http.StatusServiceUnavailable || parsed.Error.Type == "overloaded_error":
		class = agent.ClassOverload
	}
	return &agent.ModelError{Class: class, StatusCode: status, Message: message}
}
