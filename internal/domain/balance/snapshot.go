package balance

import (
	"context"
	"time"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

// Source identifies the tier that served a snapshot
type Source string

const (
	SourceMemory     Source = "memory"
	SourcePersistent Source = "persistent"
	SourceComputed   Source = "computed"
)

// Snapshot is a full set of per-account balances computed from one ledger scan.
// Snapshots are replaced wholesale and their maps must not be mutated by callers.
type Snapshot struct {
	ID         string                           `json:"id"`
	Balances   map[string]ledger.AccountBalance `json:"balances"`
	ComputedAt time.Time                        `json:"computed_at"`
	Truncated  bool                             `json:"truncated"`
	AsOf       string                           `json:"as_of,omitempty"`
	Source     Source                           `json:"source"`
}

// Project returns a snapshot holding only the requested codes that exist in s
func (s Snapshot) Project(codes []string) Snapshot {
	subset := make(map[string]ledger.AccountBalance, len(codes))
	for _, code := range codes {
		if b, ok := s.Balances[code]; ok {
			subset[code] = b
		}
	}
	s.Balances = subset
	return s
}

// SnapshotRepository persists snapshots between processes
type SnapshotRepository interface {
	// SaveSnapshot stores a snapshot
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error

	// LatestSnapshot returns the most recent snapshot, or nil when none exist
	LatestSnapshot(ctx context.Context) (*Snapshot, error)

	// PruneSnapshots deletes all but the keep most recent snapshots and returns how many were removed
	PruneSnapshots(ctx context.Context, keep int) (int, error)
}
