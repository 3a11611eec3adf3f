package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hirosato/finance-assistant/internal/common/config"
	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		ERPBaseURL:    "https://erp.test/api",
		ERPAPIToken:   "token",
		ERPPageSize:   100,
		ERPMaxPages:   10,
		SnapshotStore: config.StoreNone,
		CacheScope:    "default",
	}
}

func toolNames(a *App) []string {
	var names []string
	for _, tool := range a.Registry.ListTools() {
		names = append(names, tool.Name)
	}
	return names
}

func TestNew_WithoutWorkbook(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"account_balance", "get_cache_status", "list_account_categories", "refresh_balance_cache"}, toolNames(a))
	assert.Len(t, a.Registry.ListResources(), 1)
	assert.False(t, a.Balances.GetCacheStatus(context.Background()).Persistent.Configured)
}

func TestNew_WithWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Line Item"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	cfg := testConfig()
	cfg.BudgetWorkbookPath = path
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Contains(t, toolNames(a), "lookup_budget")
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing ERP token", func(c *config.Config) { c.ERPAPIToken = "" }},
		{"missing workbook", func(c *config.Config) { c.BudgetWorkbookPath = "/nonexistent/budget.xlsx" }},
		{"missing synonyms file", func(c *config.Config) { c.SynonymsPath = "/nonexistent/synonyms.yaml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestNew_CustomSynonyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms:\n  petty cash:\n    codes: [\"1005\"]\n"), 0o600))

	cfg := testConfig()
	cfg.SynonymsPath = path
	_, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
}

func TestAgent_RequiresAPIKey(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)

	_, err = a.Agent()
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeConfiguration))

	a.Config.AnthropicAPIKey = "sk-test"
	loop, err := a.Agent()
	require.NoError(t, err)
	assert.NotNil(t, loop)
}
