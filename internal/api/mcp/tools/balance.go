package tools

import (
	"context"
	"encoding/json"

	"github.com/hirosato/finance-assistant/internal/domain/account"
	"github.com/hirosato/finance-assistant/internal/domain/balance"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
	"github.com/hirosato/finance-assistant/internal/domain/mcp"
)

// AccountBalanceTool reports balances for accounts matching a filter
type AccountBalanceTool struct {
	service BalanceService
}

func NewAccountBalanceTool(service BalanceService) *AccountBalanceTool {
	return &AccountBalanceTool{service: service}
}

func (t *AccountBalanceTool) GetName() string {
	return "account_balance"
}

func (t *AccountBalanceTool) GetDescription() string {
	return "Returns current balances for ledger accounts. Filter by a free-text search such as \"cash\", " +
		"\"credit card\" or \"payroll liabilities\", by account type or subtype, or by exact account codes. " +
		"Pass as_of (YYYY-MM-DD) for a balance at a past date."
}

func (t *AccountBalanceTool) GetInputSchema() mcp.JSONSchema {
	return mcp.JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"search":  stringProp("Free-text account search, matched against names, subtypes and known finance terms"),
			"subtype": stringProp("Account subtype such as Bank or AccountsReceivable"),
			"type": map[string]interface{}{
				"type":        "string",
				"description": "Account type",
				"enum":        []ledger.AccountType{ledger.Asset, ledger.Liability, ledger.Equity, ledger.Revenue, ledger.Expense, ledger.Income},
			},
			"codes": map[string]interface{}{
				"type":        "array",
				"description": "Exact account codes",
				"items":       map[string]string{"type": "string"},
			},
			"as_of": map[string]interface{}{
				"type":        "string",
				"description": "Balance date in YYYY-MM-DD format",
				"pattern":     "^[0-9]{4}-[0-9]{2}-[0-9]{2}$",
			},
		},
	}
}

func (t *AccountBalanceTool) Execute(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	var args struct {
		account.Filter
		AsOf string `json:"as_of"`
	}
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}

	report, err := t.service.AccountBalance(ctx, balance.Query{Filter: args.Filter, AsOf: args.AsOf})
	if err != nil {
		return nil, err
	}
	return mcp.JSONResult(report)
}

// ListAccountCategoriesTool describes the chart of accounts
type ListAccountCategoriesTool struct {
	service BalanceService
}

func NewListAccountCategoriesTool(service BalanceService) *ListAccountCategoriesTool {
	return &ListAccountCategoriesTool{service: service}
}

func (t *ListAccountCategoriesTool) GetName() string {
	return "list_account_categories"
}

func (t *ListAccountCategoriesTool) GetDescription() string {
	return "Lists account types and subtypes of the active chart of accounts with example account names, " +
		"plus the search terms account_balance understands."
}

func (t *ListAccountCategoriesTool) GetInputSchema() mcp.JSONSchema {
	return mcp.JSONSchema{Type: "object"}
}

func (t *ListAccountCategoriesTool) Execute(ctx context.Context, _ json.RawMessage) (*mcp.CallToolResult, error) {
	categories, err := t.service.ListAccountCategories(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.JSONResult(categories)
}

// RefreshBalanceCacheTool reloads cached balances
type RefreshBalanceCacheTool struct {
	service BalanceService
}

func NewRefreshBalanceCacheTool(service BalanceService) *RefreshBalanceCacheTool {
	return &RefreshBalanceCacheTool{service: service}
}

func (t *RefreshBalanceCacheTool) GetName() string {
	return "refresh_balance_cache"
}

func (t *RefreshBalanceCacheTool) GetDescription() string {
	return "Reloads account balances. With force=true the full ledger is re-read and the saved snapshot replaced; " +
		"only use it when the user says balances look out of date."
}

func (t *RefreshBalanceCacheTool) GetInputSchema() mcp.JSONSchema {
	return mcp.JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"force": map[string]interface{}{
				"type":        "boolean",
				"description": "Recompute from the ledger even when cached balances are fresh",
				"default":     false,
			},
		},
	}
}

func (t *RefreshBalanceCacheTool) Execute(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	var args struct {
		Force bool `json:"force"`
	}
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}

	summary, err := t.service.RefreshBalanceCache(ctx, args.Force)
	if err != nil {
		return nil, err
	}
	return mcp.JSONResult(summary)
}

// GetCacheStatusTool reports cache freshness
type GetCacheStatusTool struct {
	service BalanceService
}

func NewGetCacheStatusTool(service BalanceService) *GetCacheStatusTool {
	return &GetCacheStatusTool{service: service}
}

func (t *GetCacheStatusTool) GetName() string {
	return "get_cache_status"
}

func (t *GetCacheStatusTool) GetDescription() string {
	return "Shows when balances were last computed and whether the in-memory and saved caches are fresh."
}

func (t *GetCacheStatusTool) GetInputSchema() mcp.JSONSchema {
	return mcp.JSONSchema{Type: "object"}
}

func (t *GetCacheStatusTool) Execute(ctx context.Context, _ json.RawMessage) (*mcp.CallToolResult, error) {
	return mcp.JSONResult(t.service.GetCacheStatus(ctx))
}
