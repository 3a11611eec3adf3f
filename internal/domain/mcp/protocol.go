package mcp

import (
	"encoding/json"
	"errors"
	"strings"

	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

// JSON-RPC types
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP Protocol types
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string           `json:"protocolVersion"`
	Capabilities    ServerCapability `json:"capabilities"`
	ServerInfo      ServerInfo       `json:"serverInfo"`
	Instructions    string           `json:"instructions,omitempty"`
}

type ServerCapability struct {
	Resources ListChangedCapability `json:"resources"`
	Tools     ListChangedCapability `json:"tools"`
}

type ListChangedCapability struct {
	ListChanged bool `json:"listChanged"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Version string `json:"version"`
}

// Resources
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Tools
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	InputSchema JSONSchema `json:"inputSchema"`
}

type JSONSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type CallToolResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

type ToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text joins the text parts of the result
func (r *CallToolResult) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// JSONResult wraps v as a single JSON text part
func JSONResult(v interface{}) (*CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, appErrors.NewInternalError("encode tool result", err)
	}
	return &CallToolResult{
		Content: []ToolResultContent{{Type: "text", Text: string(payload)}},
	}, nil
}

type toolError struct {
	Error   string `json:"error"`
	IsError bool   `json:"is_error"`
}

// ErrorResult renders any failure as {"error": ..., "is_error": true}
func ErrorResult(err error) *CallToolResult {
	msg := "unknown error"
	var appErr appErrors.AppError
	switch {
	case errors.As(err, &appErr):
		msg = appErr.Message
		if appErr.Err != nil {
			msg += ": " + appErr.Err.Error()
		}
	case err != nil:
		msg = err.Error()
	}

	payload, _ := json.Marshal(toolError{Error: msg, IsError: true})
	return &CallToolResult{
		Content: []ToolResultContent{{Type: "text", Text: string(payload)}},
		IsError: true,
	}
}

// Error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)
