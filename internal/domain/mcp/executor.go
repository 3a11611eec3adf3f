package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hirosato/finance-assistant/internal/domain/agent"
	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

// Call runs a registered tool. Unknown tools, handler errors and panics all
// come back as an error result, never as a Go error.
func Call(ctx context.Context, registry *HandlerRegistry, logger *slog.Logger, name string, arguments json.RawMessage) (result *CallToolResult) {
	handler, ok := registry.GetTool(name)
	if !ok {
		return ErrorResult(appErrors.NewNotFoundError(fmt.Sprintf("unknown tool %q", name)))
	}
	if len(arguments) == 0 || string(arguments) == "null" {
		arguments = json.RawMessage(`{}`)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Tool panicked", "tool", name, "panic", rec)
			result = ErrorResult(appErrors.NewInternalError(fmt.Sprintf("tool %s failed", name), fmt.Errorf("%v", rec)))
		}
	}()

	res, err := handler.Execute(ctx, arguments)
	if err != nil {
		logger.Warn("Tool failed", "tool", name, "error", err)
		return ErrorResult(err)
	}
	if res == nil {
		return ErrorResult(appErrors.NewInternalError(fmt.Sprintf("tool %s returned no result", name), nil))
	}
	return res
}

// Executor exposes a registry to the agent loop
type Executor struct {
	registry *HandlerRegistry
	logger   *slog.Logger
}

var _ agent.ToolExecutor = (*Executor)(nil)

// NewExecutor creates a new executor
func NewExecutor(registry *HandlerRegistry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, logger: logger}
}

// Definitions converts registered tools to model tool definitions
func (e *Executor) Definitions() []agent.ToolDefinition {
	tools := e.registry.ListTools()
	defs := make([]agent.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			e.logger.Error("Skipping tool with invalid schema", "tool", t.Name, "error", err)
			continue
		}
		defs = append(defs, agent.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return defs
}

// Execute runs the named tool for the agent loop
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage) agent.ToolOutput {
	result := Call(ctx, e.registry, e.logger, name, input)
	return agent.ToolOutput{Content: result.Text(), IsError: result.IsError}
}
