package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/hirosato/finance-assistant/internal/domain/balance"
	commonErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
	"github.com/hirosato/finance-assistant/internal/platform/dynamodb/client"
)

const (
	snapshotSKPrefix = "SNAPSHOT#"
	snapshotItemType = "balance_snapshot"

	// defaultChunkSize keeps each item well under the 400 KB DynamoDB item limit
	defaultChunkSize = 500
)

// DynamoDBSnapshotRepository implements the balance.SnapshotRepository interface.
// All snapshots of one scope share a partition. A snapshot is split into numbered
// chunk items under SK SNAPSHOT#<ulid>#<part>, so the ULID orders snapshots by
// creation time and the chunks of one snapshot are contiguous.
type DynamoDBSnapshotRepository struct {
	client    client.Client
	table     string
	scope     string
	ttl       time.Duration
	chunkSize int
	logger    *slog.Logger
}

var _ balance.SnapshotRepository = (*DynamoDBSnapshotRepository)(nil)

// NewDynamoDBSnapshotRepository creates a new DynamoDBSnapshotRepository.
// ttl sets the item expiry attribute; zero disables it.
func NewDynamoDBSnapshotRepository(client client.Client, table, scope string, ttl time.Duration, logger *slog.Logger) *DynamoDBSnapshotRepository {
	if scope == "" {
		scope = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoDBSnapshotRepository{
		client:    client,
		table:     table,
		scope:     scope,
		ttl:       ttl,
		chunkSize: defaultChunkSize,
		logger:    logger,
	}
}

// SnapshotDDB is the stored form of one snapshot chunk. Amounts are decimal strings.
type SnapshotDDB struct {
	PK           string       `dynamodbav:"PK"`
	SK           string       `dynamodbav:"SK"`
	Type         string       `dynamodbav:"Type"`
	SnapshotID   string       `dynamodbav:"SnapshotID"`
	ComputedAt   string       `dynamodbav:"ComputedAt"`
	Truncated    bool         `dynamodbav:"Truncated"`
	AccountCount int          `dynamodbav:"AccountCount"`
	Part         int          `dynamodbav:"Part"`
	Parts        int          `dynamodbav:"Parts"`
	Balances     []BalanceDDB `dynamodbav:"Balances"`
	ExpiresAt    int64        `dynamodbav:"ExpiresAt,omitempty"`
}

// BalanceDDB stores the inputs of one account balance
type BalanceDDB struct {
	Code             string `dynamodbav:"Code"`
	Name             string `dynamodbav:"Name"`
	Type             string `dynamodbav:"Type"`
	Subtype          string `dynamodbav:"Subtype,omitempty"`
	TotalDebits      string `dynamodbav:"TotalDebits"`
	TotalCredits     string `dynamodbav:"TotalCredits"`
	TransactionCount int    `dynamodbav:"TransactionCount"`
}

func (r *DynamoDBSnapshotRepository) partitionKey() string {
	return fmt.Sprintf("BALANCE_CACHE#%s", r.scope)
}

func snapshotPrefix(id string) string {
	return snapshotSKPrefix + id + "#"
}

// SaveSnapshot stores a snapshot as one or more chunk items, in part order
func (r *DynamoDBSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot balance.Snapshot) error {
	codes := make([]string, 0, len(snapshot.Balances))
	for code := range snapshot.Balances {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	size := r.chunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	parts := (len(codes) + size - 1) / size
	if parts == 0 {
		parts = 1
	}

	for part := 1; part <= parts; part++ {
		lo := (part - 1) * size
		hi := min(lo+size, len(codes))

		record := SnapshotDDB{
			PK:           r.partitionKey(),
			SK:           fmt.Sprintf("%s%04d", snapshotPrefix(snapshot.ID), part),
			Type:         snapshotItemType,
			SnapshotID:   snapshot.ID,
			ComputedAt:   snapshot.ComputedAt.UTC().Format(time.RFC3339Nano),
			Truncated:    snapshot.Truncated,
			AccountCount: len(codes),
			Part:         part,
			Parts:        parts,
			Balances:     make([]BalanceDDB, 0, hi-lo),
		}
		if r.ttl > 0 {
			record.ExpiresAt = snapshot.ComputedAt.Add(r.ttl).Unix()
		}
		for _, code := range codes[lo:hi] {
			b := snapshot.Balances[code]
			record.Balances = append(record.Balances, BalanceDDB{
				Code:             b.Code,
				Name:             b.Name,
				Type:             string(b.Type),
				Subtype:          b.Subtype,
				TotalDebits:      b.TotalDebits.String(),
				TotalCredits:     b.TotalCredits.String(),
				TransactionCount: b.TransactionCount,
			})
		}

		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return commonErrors.NewInternalError("failed to marshal balance snapshot", err)
		}

		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.table),
			Item:      item,
		})
		if err != nil {
			return commonErrors.NewInternalError("failed to save balance snapshot", err).
				WithDetail("part", part)
		}
	}

	r.logger.Info("Saved balance snapshot", "snapshot_id", snapshot.ID, "accounts", len(codes), "parts", parts)
	return nil
}

// LatestSnapshot returns the newest snapshot of the scope. A snapshot whose
// chunks are not all present reads as a miss.
func (r *DynamoDBSnapshotRepository) LatestSnapshot(ctx context.Context) (*balance.Snapshot, error) {
	expr, err := r.snapshotKeyCondition(snapshotSKPrefix)
	if err != nil {
		return nil, err
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to query balance snapshots", err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var newest SnapshotDDB
	if err := attributevalue.UnmarshalMap(result.Items[0], &newest); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal balance snapshot", err)
	}

	chunks, err := r.readChunks(ctx, newest.SnapshotID)
	if err != nil {
		return nil, err
	}
	if len(chunks) != newest.Parts {
		r.logger.Warn("Latest balance snapshot is incomplete",
			"snapshot_id", newest.SnapshotID, "parts", newest.Parts, "found", len(chunks))
		return nil, nil
	}
	return toSnapshot(chunks)
}

func (r *DynamoDBSnapshotRepository) readChunks(ctx context.Context, id string) ([]SnapshotDDB, error) {
	expr, err := r.snapshotKeyCondition(snapshotPrefix(id))
	if err != nil {
		return nil, err
	}

	var (
		chunks []SnapshotDDB
		start  map[string]types.AttributeValue
	)
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(true),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, commonErrors.NewInternalError("failed to read balance snapshot", err)
		}

		var page []SnapshotDDB
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal balance snapshot", err)
		}
		chunks = append(chunks, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return chunks, nil
		}
		start = result.LastEvaluatedKey
	}
}

// PruneSnapshots deletes every snapshot older than the keep most recent and
// returns how many snapshots were removed
func (r *DynamoDBSnapshotRepository) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	expr, err := r.snapshotKeyCondition(snapshotSKPrefix)
	if err != nil {
		return 0, err
	}

	var (
		seen    = make(map[string]bool)
		removed int
		start   map[string]types.AttributeValue
	)
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ProjectionExpression:      aws.String("PK, SK, SnapshotID"),
			ScanIndexForward:          aws.Bool(false),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return removed, commonErrors.NewInternalError("failed to list balance snapshots", err)
		}

		for _, item := range result.Items {
			var id string
			if v, ok := item["SnapshotID"].(*types.AttributeValueMemberS); ok {
				id = v.Value
			}
			expired, known := seen[id]
			if !known {
				expired = len(seen) >= keep
				seen[id] = expired
				if expired {
					removed++
				}
			}
			if !expired {
				continue
			}
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.table),
				Key: map[string]types.AttributeValue{
					"PK": item["PK"],
					"SK": item["SK"],
				},
			})
			if err != nil {
				return removed, commonErrors.NewInternalError("failed to delete balance snapshot", err)
			}
		}

		if len(result.LastEvaluatedKey) == 0 {
			return removed, nil
		}
		start = result.LastEvaluatedKey
	}
}

func (r *DynamoDBSnapshotRepository) snapshotKeyCondition(prefix string) (expression.Expression, error) {
	keyCondition := expression.Key("PK").Equal(expression.Value(r.partitionKey())).
		And(expression.Key("SK").BeginsWith(prefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return expression.Expression{}, commonErrors.NewInternalError("failed to build expression", err)
	}
	return expr, nil
}

func toSnapshot(chunks []SnapshotDDB) (*balance.Snapshot, error) {
	head := chunks[0]
	computedAt, err := time.Parse(time.RFC3339Nano, head.ComputedAt)
	if err != nil {
		return nil, commonErrors.NewInternalError("invalid snapshot timestamp", err)
	}

	snapshot := &balance.Snapshot{
		ID:         head.SnapshotID,
		Balances:   make(map[string]ledger.AccountBalance, head.AccountCount),
		ComputedAt: computedAt,
		Truncated:  head.Truncated,
		Source:     balance.SourcePersistent,
	}
	for _, chunk := range chunks {
		for _, b := range chunk.Balances {
			debits, err := decimal.NewFromString(b.TotalDebits)
			if err != nil {
				return nil, commonErrors.NewInternalError("invalid stored debit total", err).WithDetail("code", b.Code)
			}
			credits, err := decimal.NewFromString(b.TotalCredits)
			if err != nil {
				return nil, commonErrors.NewInternalError("invalid stored credit total", err).WithDetail("code", b.Code)
			}
			snapshot.Balances[b.Code] = ledger.AccountBalance{
				Code:             b.Code,
				Name:             b.Name,
				Type:             ledger.AccountType(b.Type),
				Subtype:          b.Subtype,
				TotalDebits:      debits,
				TotalCredits:     credits,
				TransactionCount: b.TransactionCount,
			}.Recompute()
		}
	}
	return snapshot, nil
}
