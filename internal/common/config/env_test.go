package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("ERP_BASE_URL", "https://erp.example.com/api/")
	t.Setenv("DYNAMODB_TABLE_NAME", "")
	t.Setenv("SNAPSHOT_STORE", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://erp.example.com/api", cfg.ERPBaseURL)
	assert.Equal(t, StoreNone, cfg.SnapshotStore)
	assert.Equal(t, 5*time.Minute, cfg.MemoryTTL)
	assert.Equal(t, 4*time.Hour, cfg.PersistentTTL)
	assert.Equal(t, 30*time.Minute, cfg.AccountsTTL)
	assert.Equal(t, time.Hour, cfg.ConversationTTL)
	assert.Equal(t, 20, cfg.ConversationMaxMessages)
	assert.Equal(t, 5, cfg.KeepSnapshots)
	assert.Equal(t, 100, cfg.ERPPageSize)
	assert.Equal(t, 500, cfg.ERPMaxPages)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "default", cfg.CacheScope)
	assert.NoError(t, cfg.ValidateStore())
}

func TestLoadFromEnv_RequiresERPBaseURL(t *testing.T) {
	t.Setenv("ERP_BASE_URL", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERP_BASE_URL")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("ERP_BASE_URL", "https://erp.example.com")
	t.Setenv("DYNAMODB_TABLE_NAME", "finance")
	t.Setenv("BALANCE_MEMORY_TTL", "90s")
	t.Setenv("BALANCE_KEEP_SNAPSHOTS", "3")
	t.Setenv("SNAPSHOT_STORE", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoreDynamoDB, cfg.SnapshotStore)
	assert.Equal(t, 90*time.Second, cfg.MemoryTTL)
	assert.Equal(t, 3, cfg.KeepSnapshots)
}

func TestLoadFromEnv_CollectsInvalidValues(t *testing.T) {
	t.Setenv("ERP_BASE_URL", "https://erp.example.com")
	t.Setenv("SNAPSHOT_STORE", "redis")
	t.Setenv("BALANCE_MEMORY_TTL", "five minutes")
	t.Setenv("ERP_PAGE_SIZE", "-1")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNAPSHOT_STORE")
	assert.Contains(t, err.Error(), "BALANCE_MEMORY_TTL")
	assert.Contains(t, err.Error(), "ERP_PAGE_SIZE")
}

func TestConfig_ApplySecretsAndValidate(t *testing.T) {
	t.Setenv("ERP_BASE_URL", "https://erp.example.com")
	t.Setenv("SNAPSHOT_STORE", "postgres")
	t.Setenv("ERP_API_TOKEN", "from-env")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateStore())

	cfg.ApplySecrets(map[string]string{
		"ERP_API_TOKEN":     "from-secret",
		"ANTHROPIC_API_KEY": "sk-secret",
		"DATABASE_URL":      "postgres://finance@db/finance",
	})

	assert.Equal(t, "from-env", cfg.ERPAPIToken)
	assert.Equal(t, "sk-secret", cfg.AnthropicAPIKey)
	assert.NoError(t, cfg.ValidateStore())
}
