package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/finance-assistant/internal/domain/balance"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

func TestSnapshotRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	table := fmt.Sprintf("balance_snapshots_it_%d", time.Now().UnixNano())
	repo := NewSnapshotRepository(db, WithTable(table), WithScope("it"))
	require.NoError(t, repo.EnsureSchema(ctx))
	defer db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)

	latest, err := repo.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		snap := balance.Snapshot{
			ID:         fmt.Sprintf("01J%03d", i),
			ComputedAt: base.Add(time.Duration(i) * time.Minute),
			Truncated:  i == 3,
			Balances: map[string]ledger.AccountBalance{
				"20000": ledger.NewAccountBalance(
					ledger.Account{Code: "20000", Name: "Accounts Payable", Type: ledger.Liability},
					ledger.Totals{Debits: decimal.NewFromInt(5), Credits: decimal.NewFromInt(30 + int64(i)), Count: 2},
				),
			},
		}
		require.NoError(t, repo.SaveSnapshot(ctx, snap))
	}

	latest, err = repo.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "01J003", latest.ID)
	assert.True(t, latest.Truncated)
	assert.True(t, latest.Balances["20000"].Balance.Equal(decimal.NewFromInt(28)))

	removed, err := repo.PruneSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestSnapshotRepository_NilDB(t *testing.T) {
	repo := NewSnapshotRepository(nil)

	_, err := repo.LatestSnapshot(context.Background())
	assert.Error(t, err)
	assert.Error(t, repo.SaveSnapshot(context.Background(), balance.Snapshot{}))
	_, err = repo.PruneSnapshots(context.Background(), 5)
	assert.Error(t, err)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
