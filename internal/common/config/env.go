package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Snapshot store kinds
const (
	StoreNone     = "none"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Environment string
	AWSRegion   string
	AppSecretID string

	// ERP ledger API
	ERPBaseURL  string
	ERPAPIToken string
	ERPTimeout  time.Duration
	ERPPageSize int
	ERPMaxPages int

	// Model API
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	MaxIterations    int

	// Slack Socket Mode
	SlackBotToken string
	SlackAppToken string

	// Balance cache
	SnapshotStore     string
	DynamoDBTableName string
	DynamoDBEndpoint  string
	DatabaseURL       string
	CacheScope        string
	MemoryTTL         time.Duration
	PersistentTTL     time.Duration
	AccountsTTL       time.Duration
	KeepSnapshots     int

	// Conversations
	ConversationTTL         time.Duration
	ConversationMaxMessages int

	BudgetWorkbookPath string
	SynonymsPath       string
	MetricsAddr        string

	isLambda bool
}

// LoadFromEnv loads the configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Required environment variables
	cfg.ERPBaseURL = strings.TrimRight(os.Getenv("ERP_BASE_URL"), "/")
	if cfg.ERPBaseURL == "" {
		errs = append(errs, errors.New("ERP_BASE_URL environment variable is required"))
	}

	cfg.Environment = stringVar("ENVIRONMENT", "dev")
	cfg.AWSRegion = stringVar("AWS_REGION", "us-east-1")
	cfg.AppSecretID = os.Getenv("APP_SECRET_ID")

	cfg.ERPAPIToken = os.Getenv("ERP_API_TOKEN")
	cfg.ERPTimeout = durationVar("ERP_TIMEOUT", 30*time.Second, &errs)
	cfg.ERPPageSize = intVar("ERP_PAGE_SIZE", 100, &errs)
	cfg.ERPMaxPages = intVar("ERP_MAX_PAGES", 500, &errs)

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.AnthropicModel = os.Getenv("ANTHROPIC_MODEL")
	cfg.AnthropicBaseURL = os.Getenv("ANTHROPIC_BASE_URL")
	cfg.MaxIterations = intVar("AGENT_MAX_ITERATIONS", 10, &errs)

	cfg.SlackBotToken = os.Getenv("SLACK_BOT_TOKEN")
	cfg.SlackAppToken = os.Getenv("SLACK_APP_TOKEN")

	cfg.DynamoDBTableName = os.Getenv("DYNAMODB_TABLE_NAME")
	cfg.DynamoDBEndpoint = os.Getenv("DYNAMODB_ENDPOINT")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	// Default to DynamoDB when a table is configured
	defaultStore := StoreNone
	if cfg.DynamoDBTableName != "" {
		defaultStore = StoreDynamoDB
	}
	cfg.SnapshotStore = strings.ToLower(stringVar("SNAPSHOT_STORE", defaultStore))
	switch cfg.SnapshotStore {
	case StoreNone, StoreDynamoDB, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("SNAPSHOT_STORE must be one of none, dynamodb, postgres; got %q", cfg.SnapshotStore))
	}

	cfg.CacheScope = stringVar("CACHE_SCOPE", "default")
	cfg.MemoryTTL = durationVar("BALANCE_MEMORY_TTL", 5*time.Minute, &errs)
	cfg.PersistentTTL = durationVar("BALANCE_PERSISTENT_TTL", 4*time.Hour, &errs)
	cfg.AccountsTTL = durationVar("ACCOUNTS_TTL", 30*time.Minute, &errs)
	cfg.KeepSnapshots = intVar("BALANCE_KEEP_SNAPSHOTS", 5, &errs)

	cfg.ConversationTTL = durationVar("CONVERSATION_TTL", time.Hour, &errs)
	cfg.ConversationMaxMessages = intVar("CONVERSATION_MAX_MESSAGES", 20, &errs)

	cfg.BudgetWorkbookPath = os.Getenv("BUDGET_WORKBOOK_PATH")
	cfg.SynonymsPath = os.Getenv("SYNONYMS_PATH")
	cfg.MetricsAddr = stringVar("METRICS_ADDR", ":9090")

	// Check if running in Lambda
	cfg.isLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// ApplySecrets fills credentials that were not set in the environment
func (c *Config) ApplySecrets(values map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = values[key]
		}
	}
	fill(&c.ERPAPIToken, "ERP_API_TOKEN")
	fill(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	fill(&c.SlackBotToken, "SLACK_BOT_TOKEN")
	fill(&c.SlackAppToken, "SLACK_APP_TOKEN")
	fill(&c.DatabaseURL, "DATABASE_URL")
}

// ValidateStore checks that the selected snapshot store has its settings.
// Call it after ApplySecrets, since DATABASE_URL may live in the secret bundle.
func (c *Config) ValidateStore() error {
	switch c.SnapshotStore {
	case StoreDynamoDB:
		if c.DynamoDBTableName == "" {
			return errors.New("DYNAMODB_TABLE_NAME is required when SNAPSHOT_STORE=dynamodb")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when SNAPSHOT_STORE=postgres")
		}
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// IsLambda returns true if the application is running in AWS Lambda
func (c *Config) IsLambda() bool {
	return c.isLambda
}

func stringVar(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationVar(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive duration such as 5m; got %q", key, raw))
		return fallback
	}
	return d
}

func intVar(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive integer; got %q", key, raw))
		return fallback
	}
	return n
}
