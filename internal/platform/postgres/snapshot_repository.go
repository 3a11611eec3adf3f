package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hirosato/finance-assistant/internal/domain/balance"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

const defaultSnapshotTable = "balance_snapshots"

// SnapshotRepository is a Postgres implementation of balance.SnapshotRepository.
type SnapshotRepository struct {
	db    *sql.DB
	table string
	scope string
}

var _ balance.SnapshotRepository = (*SnapshotRepository)(nil)

// RepositoryOption configures the repository.
type RepositoryOption func(*SnapshotRepository)

// WithTable overrides the default table.
func WithTable(table string) RepositoryOption {
	return func(repo *SnapshotRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithScope sets the cache scope.
func WithScope(scope string) RepositoryOption {
	return func(repo *SnapshotRepository) {
		if scope != "" {
			repo.scope = scope
		}
	}
}

// NewSnapshotRepository constructs a repository with defaults.
func NewSnapshotRepository(db *sql.DB, opts ...RepositoryOption) *SnapshotRepository {
	repo := &SnapshotRepository{
		db:    db,
		table: defaultSnapshotTable,
		scope: "default",
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

type balanceRow struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype,omitempty"`
	TotalDebits      decimal.Decimal `json:"total_debits"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	TransactionCount int             `json:"transaction_count"`
}

// EnsureSchema creates the snapshot table when it does not exist.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("snapshot repo: nil db")
	}
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	scope TEXT NOT NULL,
	snapshot_id TEXT NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	truncated BOOLEAN NOT NULL DEFAULT FALSE,
	account_count INTEGER NOT NULL,
	balances JSONB NOT NULL,
	PRIMARY KEY (scope, snapshot_id)
)`, r.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_scope_computed_idx ON %[1]s (scope, computed_at DESC)`, r.table),
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot upserts a snapshot.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot balance.Snapshot) error {
	if r == nil || r.db == nil {
		return errors.New("snapshot repo: nil db")
	}

	rows := make([]balanceRow, 0, len(snapshot.Balances))
	for _, b := range snapshot.Balances {
		rows = append(rows, balanceRow{
			Code:             b.Code,
			Name:             b.Name,
			Type:             string(b.Type),
			Subtype:          b.Subtype,
			TotalDebits:      b.TotalDebits,
			TotalCredits:     b.TotalCredits,
			TransactionCount: b.TransactionCount,
		})
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("snapshot repo: marshal balances: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (scope, snapshot_id, computed_at, truncated, account_count, balances)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (scope, snapshot_id) DO UPDATE SET
	computed_at = EXCLUDED.computed_at,
	truncated = EXCLUDED.truncated,
	account_count = EXCLUDED.account_count,
	balances = EXCLUDED.balances`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		r.scope,
		snapshot.ID,
		snapshot.ComputedAt.UTC(),
		snapshot.Truncated,
		len(rows),
		string(payload),
	)
	return err
}

// LatestSnapshot loads the most recent snapshot of the scope.
func (r *SnapshotRepository) LatestSnapshot(ctx context.Context) (*balance.Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT snapshot_id, computed_at, truncated, balances
FROM %s
WHERE scope = $1
ORDER BY computed_at DESC, snapshot_id DESC
LIMIT 1`, r.table)

	var (
		id         string
		computedAt time.Time
		truncated  bool
		payload    []byte
	)
	row := r.db.QueryRowContext(ctx, query, r.scope)
	if err := row.Scan(&id, &computedAt, &truncated, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var rows []balanceRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("snapshot repo: decode balances: %w", err)
	}

	snapshot := &balance.Snapshot{
		ID:         id,
		Balances:   make(map[string]ledger.AccountBalance, len(rows)),
		ComputedAt: computedAt,
		Truncated:  truncated,
		Source:     balance.SourcePersistent,
	}
	for _, row := range rows {
		snapshot.Balances[row.Code] = ledger.AccountBalance{
			Code:             row.Code,
			Name:             row.Name,
			Type:             ledger.AccountType(row.Type),
			Subtype:          row.Subtype,
			TotalDebits:      row.TotalDebits,
			TotalCredits:     row.TotalCredits,
			TransactionCount: row.TransactionCount,
		}.Recompute()
	}
	return snapshot, nil
}

// PruneSnapshots keeps the newest keep snapshots of the scope.
func (r *SnapshotRepository) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("snapshot repo: nil db")
	}
	if keep < 0 {
		keep = 0
	}

	query := fmt.Sprintf(`
DELETE FROM %[1]s
WHERE scope = $1 AND snapshot_id NOT IN (
	SELECT snapshot_id FROM %[1]s
	WHERE scope = $1
	ORDER BY computed_at DESC, snapshot_id DESC
	LIMIT $2
)`, r.table)

	res, err := r.db.ExecContext(ctx, query, r.scope, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
