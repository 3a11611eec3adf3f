package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/hirosato/finance-assistant/internal/api/middleware"
	"github.com/hirosato/finance-assistant/internal/api/response"
	"github.com/hirosato/finance-assistant/internal/domain/mcp"
)

// MCPHandler serves JSON-RPC MCP requests on the root path
type MCPHandler struct {
	service *mcp.Service
}

// NewMCPHandler creates a new MCP request handler
func NewMCPHandler(service *mcp.Service) *MCPHandler {
	return &MCPHandler{service: service}
}

// Handle processes one API Gateway request
func (h *MCPHandler) Handle(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    response.DefaultHeaders(),
		}, nil
	}

	if request.Path != "/" && request.Path != "" {
		return response.NotFound("Endpoint not found", middleware.RequestID(ctx, request)), nil
	}
	if request.HTTPMethod != http.MethodPost {
		resp := jsonRPCError(http.StatusMethodNotAllowed, mcp.InvalidRequest, "Method Not Allowed", "")
		resp.Headers["Allow"] = http.MethodPost
		return resp, nil
	}

	var rpcRequest mcp.JSONRPCRequest
	if err := json.Unmarshal([]byte(request.Body), &rpcRequest); err != nil {
		logger.Error("Failed to parse JSON-RPC request", "error", err)
		return jsonRPCError(http.StatusOK, mcp.ParseError, "Parse error", err.Error()), nil
	}

	result := h.service.HandleRequest(ctx, rpcRequest)
	if result.StatusCode == http.StatusAccepted {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusAccepted, Headers: response.DefaultHeaders()}, nil
	}
	return response.JSON(result.StatusCode, result.JSONRPCResponse), nil
}

// JSON-RPC errors still return 200 unless the transport itself is wrong
func jsonRPCError(status, code int, message, data string) events.APIGatewayProxyResponse {
	rpcErr := &mcp.JSONRPCError{Code: code, Message: message}
	if data != "" {
		rpcErr.Data = data
	}
	return response.JSON(status, mcp.JSONRPCResponse{JSONRPC: "2.0", Error: rpcErr})
}
