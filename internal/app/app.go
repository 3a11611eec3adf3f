package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/hirosato/finance-assistant/internal/api/mcp/resources"
	"github.com/hirosato/finance-assistant/internal/api/mcp/tools"
	"github.com/hirosato/finance-assistant/internal/common/config"
	"github.com/hirosato/finance-assistant/internal/domain/account"
	"github.com/hirosato/finance-assistant/internal/domain/agent"
	"github.com/hirosato/finance-assistant/internal/domain/balance"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
	"github.com/hirosato/finance-assistant/internal/domain/mcp"
	"github.com/hirosato/finance-assistant/internal/platform/anthropic"
	dynamoClient "github.com/hirosato/finance-assistant/internal/platform/dynamodb/client"
	dynamodbRepository "github.com/hirosato/finance-assistant/internal/platform/dynamodb/repository"
	"github.com/hirosato/finance-assistant/internal/platform/erp"
	"github.com/hirosato/finance-assistant/internal/platform/postgres"
	"github.com/hirosato/finance-assistant/internal/platform/secrets"
	"github.com/hirosato/finance-assistant/internal/platform/spreadsheet"
)

// snapshotItemTTL bounds how long DynamoDB keeps a snapshot item; pruning usually removes it first
const snapshotItemTTL = 7 * 24 * time.Hour

// Version is reported by the MCP server
var Version = "dev"

// App holds the wired services shared by every binary
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Cache    *balance.Cache
	Accounts *balance.Directory
	Balances *balance.Service
	Registry *mcp.HandlerRegistry

	closers []func() error
}

// LoadConfig reads the environment, merges the optional secret bundle and
// validates the snapshot store settings
func LoadConfig(ctx context.Context, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.AppSecretID != "" {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		values, err := secrets.NewStoreFromConfig(awsCfg, logger).Bundle(ctx, cfg.AppSecretID)
		if err != nil {
			return nil, err
		}
		cfg.ApplySecrets(values)
	}

	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New wires the ledger reader, caches, balance service and tool registry
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	erpClient, err := erp.NewClient(cfg.ERPBaseURL, cfg.ERPAPIToken, cfg.ERPTimeout, erp.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	reader := ledger.NewReader(erpClient, cfg.ERPPageSize, cfg.ERPMaxPages, logger)

	synonyms := account.DefaultSynonyms()
	if cfg.SynonymsPath != "" {
		if synonyms, err = account.LoadSynonymsYAML(cfg.SynonymsPath); err != nil {
			return nil, err
		}
	}

	repo, err := a.snapshotRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Accounts = balance.NewDirectory(reader, cfg.AccountsTTL, nil, logger)
	a.Cache = balance.NewCache(a.Accounts, reader, repo, balance.Options{
		MemoryTTL:     cfg.MemoryTTL,
		PersistentTTL: cfg.PersistentTTL,
		KeepSnapshots: cfg.KeepSnapshots,
	}, logger)
	a.Balances = balance.NewService(a.Cache, a.Accounts, account.NewMatcher(synonyms), logger)

	var budget tools.BudgetReader
	if cfg.BudgetWorkbookPath != "" {
		workbook, err := spreadsheet.NewWorkbook(cfg.BudgetWorkbookPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		budget = workbook
	}

	a.Registry = mcp.NewHandlerRegistry(tools.All(a.Balances, budget)...)
	a.Registry.RegisterResource(resources.NewAccountCategoriesResource(a.Balances))

	logger.Info("Application wired",
		"snapshot_store", cfg.SnapshotStore,
		"cache_scope", cfg.CacheScope,
		"budget_workbook", cfg.BudgetWorkbookPath != "",
	)
	return a, nil
}

// Agent builds the tool-call loop over the registry
func (a *App) Agent() (*agent.Loop, error) {
	model, err := anthropic.NewClient(a.Config.AnthropicBaseURL, a.Config.AnthropicAPIKey, a.Config.AnthropicModel, 0)
	if err != nil {
		return nil, err
	}
	return agent.NewLoop(model, mcp.NewExecutor(a.Registry, a.Logger), agent.Options{
		MaxIterations: a.Config.MaxIterations,
	}, a.Logger), nil
}

// MCPService wraps the registry in the JSON-RPC protocol service
func (a *App) MCPService() *mcp.Service {
	return mcp.NewService(a.Logger, a.Registry, Version)
}

// Close releases database handles
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) snapshotRepository(ctx context.Context) (balance.SnapshotRepository, error) {
	cfg := a.Config
	switch cfg.SnapshotStore {
	case config.StoreDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client := dynamoClient.NewDynamoDBClient(awsCfg, cfg.DynamoDBEndpoint)
		factory := dynamodbRepository.NewFactory(client, cfg.DynamoDBTableName, a.Logger)
		return factory.SnapshotRepository(cfg.CacheScope, snapshotItemTTL), nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		repo := postgres.NewSnapshotRepository(db, postgres.WithScope(cfg.CacheScope))
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	}
	return nil, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}
