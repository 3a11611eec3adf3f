package agent

import (
	"context"
	"encoding/json"
	"strings"
)

// Role tags a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content block types
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// StopToolUse is the stop reason of a response that requests tools
const StopToolUse = "tool_use"

// ContentBlock is one element of a message body
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message is a role-tagged list of content blocks
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserText builds a plain user message
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// AssistantText builds a plain assistant message
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// Text concatenates the text blocks of the message
func (m Message) Text() string {
	return joinText(m.Content)
}

// ToolDefinition describes a tool offered to the model
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// MessageRequest is one call to the model
type MessageRequest struct {
	System    string           `json:"system,omitempty"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens"`
}

// MessageResponse is the model's reply
type MessageResponse struct {
	ID         string         `json:"id"`
	StopReason string         `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
}

// ToolUses returns the tool_use blocks of the response
func (r *MessageResponse) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, block := range r.Content {
		if block.Type == BlockToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}

// Model is a hosted language model
type Model interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// ToolOutput is the serialized result of one tool execution
type ToolOutput struct {
	Content string
	IsError bool
}

// ToolExecutor runs the tools offered to the model.
// Execute must convert every failure into an error output.
type ToolExecutor interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, input json.RawMessage) ToolOutput
}

func joinText(blocks []ContentBlock) string {
	var parts []string
	for _, block := range blocks {
		if block.Type == BlockText && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
