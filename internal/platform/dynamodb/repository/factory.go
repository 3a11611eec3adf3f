package repository

import (
	"log/slog"
	"time"

	"github.com/hirosato/finance-assistant/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client    client.Client
	tableName string
	logger    *slog.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName string, logger *slog.Logger) *Factory {
	return &Factory{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// SnapshotRepository returns the balance snapshot store for a scope
func (f *Factory) SnapshotRepository(scope string, ttl time.Duration) *DynamoDBSnapshotRepository {
	return NewDynamoDBSnapshotRepository(f.client, f.tableName, scope, ttl, f.logger)
}
