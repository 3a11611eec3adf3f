package tools

import (
	"context"
	"encoding/json"
	"strings"

	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
	"github.com/hirosato/finance-assistant/internal/domain/mcp"
)

// LookupBudgetTool reads planned figures from the budget workbook
type LookupBudgetTool struct {
	budget BudgetReader
}

func NewLookupBudgetTool(budget BudgetReader) *LookupBudgetTool {
	return &LookupBudgetTool{budget: budget}
}

func (t *LookupBudgetTool) GetName() string {
	return "lookup_budget"
}

func (t *LookupBudgetTool) GetDescription() string {
	return "Looks up a budgeted amount in the finance team's budget workbook by line item (row) and period " +
		"or column header such as \"March 2025\" or \"Q1 Total\". Call without row and column to list the tabs."
}

func (t *LookupBudgetTool) GetInputSchema() mcp.JSONSchema {
	return mcp.JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"tab":    stringProp("Workbook tab; defaults to the first tab"),
			"row":    stringProp("Line item label from the first column, for example Payroll"),
			"column": stringProp("Column header, for example Jan 2025"),
		},
	}
}

type tabsResult struct {
	Tabs []string `json:"tabs"`
}

func (t *LookupBudgetTool) Execute(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	var args struct {
		Tab    string `json:"tab"`
		Row    string `json:"row"`
		Column string `json:"column"`
	}
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}

	row, column := strings.TrimSpace(args.Row), strings.TrimSpace(args.Column)
	if row == "" && column == "" {
		tabs, err := t.budget.Tabs()
		if err != nil {
			return nil, err
		}
		return mcp.JSONResult(tabsResult{Tabs: tabs})
	}
	if row == "" || column == "" {
		return nil, appErrors.NewValidationError("row and column are both required for a budget lookup")
	}

	cell, err := t.budget.Lookup(args.Tab, row, column)
	if err != nil {
		return nil, err
	}
	return mcp.JSONResult(cell)
}
