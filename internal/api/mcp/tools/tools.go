package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hirosato/finance-assistant/internal/domain/account"
	"github.com/hirosato/finance-assistant/internal/domain/balance"
	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
	"github.com/hirosato/finance-assistant/internal/domain/mcp"
	"github.com/hirosato/finance-assistant/internal/platform/spreadsheet"
)

// BalanceService is the subset of balance.Service the tools call
type BalanceService interface {
	AccountBalance(ctx context.Context, q balance.Query) (*balance.BalanceReport, error)
	ListAccountCategories(ctx context.Context) (account.Categories, error)
	RefreshBalanceCache(ctx context.Context, force bool) (*balance.RefreshSummary, error)
	GetCacheStatus(ctx context.Context) balance.CacheStatus
}

// BudgetReader is the subset of spreadsheet.Workbook the budget tool calls
type BudgetReader interface {
	Tabs() ([]string, error)
	Lookup(tab, row, column string) (*spreadsheet.Cell, error)
}

// All returns every tool backed by the given services. A nil budget reader
// leaves lookup_budget out.
func All(balances BalanceService, budget BudgetReader) []mcp.ToolHandler {
	handlers := []mcp.ToolHandler{
		NewAccountBalanceTool(balances),
		NewListAccountCategoriesTool(balances),
		NewRefreshBalanceCacheTool(balances),
		NewGetCacheStatusTool(balances),
	}
	if budget != nil {
		handlers = append(handlers, NewLookupBudgetTool(budget))
	}
	return handlers
}

func decodeArgs(arguments json.RawMessage, v interface{}) error {
	if len(arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(arguments, v); err != nil {
		return appErrors.NewValidationError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}
