package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	protocolVersion = "2024-11-05"
)

// HTTPResponse encapsulates both JSON-RPC response and HTTP status code
type HTTPResponse struct {
	JSONRPCResponse JSONRPCResponse
	StatusCode      int
}

// NewSuccessHTTPResponse creates a successful HTTP response with JSON-RPC result
func NewSuccessHTTPResponse(id json.RawMessage, result interface{}, statusCode int) HTTPResponse {
	return HTTPResponse{
		JSONRPCResponse: JSONRPCResponse{
			JSONRPC: jsonRPCVersion,
			ID:      id,
			Result:  result,
		},
		StatusCode: statusCode,
	}
}

// NewErrorHTTPResponse creates an error HTTP response with JSON-RPC error
func NewErrorHTTPResponse(id json.RawMessage, code int, message string, data interface{}, statusCode int) HTTPResponse {
	return HTTPResponse{
		JSONRPCResponse: JSONRPCResponse{
			JSONRPC: jsonRPCVersion,
			ID:      id,
			Error: &JSONRPCError{
				Code:    code,
				Message: message,
				Data:    data,
			},
		},
		StatusCode: statusCode,
	}
}

// Service handles MCP protocol operations
type Service struct {
	logger     *slog.Logger
	serverInfo ServerInfo
	registry   *HandlerRegistry
}

// NewService creates a new MCP service
func NewService(logger *slog.Logger, registry *HandlerRegistry, version string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Service{
		logger: logger,
		serverInfo: ServerInfo{
			Name:    "finance-assistant",
			Title:   "Ledger balances and budget lookups",
			Version: version,
		},
		registry: registry,
	}
}

// HandleRequest processes a JSON-RPC request
func (s *Service) HandleRequest(ctx context.Context, request JSONRPCRequest) HTTPResponse {
	s.logger.Info("MCP request received", "method", request.Method)

	switch request.Method {
	case "initialize":
		return s.handleInitialize(ctx, request)
	case "initialized", "ping":
		return NewSuccessHTTPResponse(request.ID, map[string]any{}, http.StatusOK)
	case "notifications/initialized":
		return NewSuccessHTTPResponse(request.ID, map[string]any{}, http.StatusAccepted)
	case "resources/list":
		return NewSuccessHTTPResponse(request.ID, ListResourcesResult{Resources: s.registry.ListResources()}, http.StatusOK)
	case "resources/read":
		return s.handleReadResource(ctx, request)
	case "tools/list":
		return NewSuccessHTTPResponse(request.ID, ListToolsResult{Tools: s.registry.ListTools()}, http.StatusOK)
	case "tools/call":
		return s.handleCallTool(ctx, request)
	default:
		return NewErrorHTTPResponse(request.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", request.Method), nil, http.StatusOK)
	}
}

func (s *Service) handleInitialize(ctx context.Context, request JSONRPCRequest) HTTPResponse {
	var params InitializeParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return NewErrorHTTPResponse(request.ID, InvalidParams, "Invalid initialize params", err.Error(), http.StatusOK)
	}
	s.logger.Info("MCP client initialized", "client", params.ClientInfo.Name, "client_version", params.ClientInfo.Version)

	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: ServerCapability{
			Resources: ListChangedCapability{ListChanged: false},
			Tools:     ListChangedCapability{ListChanged: false},
		},
		Instructions: "Answers questions about ledger account balances, the chart of accounts, the balance cache, and the budget workbook.",
		ServerInfo:   s.serverInfo,
	}

	return NewSuccessHTTPResponse(request.ID, result, http.StatusOK)
}

func (s *Service) handleReadResource(ctx context.Context, request JSONRPCRequest) HTTPResponse {
	var params ReadResourceParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return NewErrorHTTPResponse(request.ID, InvalidParams, "Invalid read resource params", err.Error(), http.StatusOK)
	}

	handler, ok := s.registry.GetResource(params.URI)
	if !ok {
		return NewErrorHTTPResponse(request.ID, InvalidParams, fmt.Sprintf("Resource not found: %s", params.URI), nil, http.StatusOK)
	}

	result, err := handler.Read(ctx)
	if err != nil {
		s.logger.Error("Failed to read resource", "uri", params.URI, "error", err)
		return NewErrorHTTPResponse(request.ID, InternalError, "Failed to read resource", err.Error(), http.StatusOK)
	}

	return NewSuccessHTTPResponse(request.ID, result, http.StatusOK)
}

func (s *Service) handleCallTool(ctx context.Context, request JSONRPCRequest) HTTPResponse {
	var params CallToolParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return NewErrorHTTPResponse(request.ID, InvalidParams, "Invalid call tool params", err.Error(), http.StatusOK)
	}

	result := Call(ctx, s.registry, s.logger, params.Name, params.Arguments)
	metrics.IncToolCall(params.Name, result.IsError)
	return NewSuccessHTTPResponse(request.ID, result, http.StatusOK)
}
