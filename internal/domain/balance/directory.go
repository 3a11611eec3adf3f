package balance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

// DefaultAccountsTTL is how long the chart of accounts is reused
const DefaultAccountsTTL = 30 * time.Minute

// AccountLister reads the chart of accounts
type AccountLister interface {
	ReadAccounts(ctx context.Context) ([]ledger.Account, error)
}

// Directory memoizes the chart of accounts for a TTL
type Directory struct {
	lister AccountLister
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	accounts  []ledger.Account
	fetchedAt time.Time
}

// NewDirectory creates a new account directory
func NewDirectory(lister AccountLister, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Directory {
	if ttl <= 0 {
		ttl = DefaultAccountsTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{lister: lister, ttl: ttl, now: now, logger: logger}
}

// Accounts returns the chart of accounts, fetching it when the copy is older than the TTL.
// Concurrent callers wait for a single fetch.
func (d *Directory) Accounts(ctx context.Context) ([]ledger.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.accounts != nil && d.now().Sub(d.fetchedAt) < d.ttl {
		return d.accounts, nil
	}

	accounts, err := d.lister.ReadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	d.accounts = accounts
	d.fetchedAt = d.now()
	d.logger.Info("Loaded chart of accounts", "accounts", len(accounts))
	return accounts, nil
}

// Invalidate forces the next Accounts call to refetch
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.accounts = nil
	d.mu.Unlock()
}
