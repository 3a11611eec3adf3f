package balance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

const (
	DefaultMemoryTTL      = 5 * time.Minute
	DefaultPersistentTTL  = 4 * time.Hour
	DefaultKeepSnapshots  = 5
	DefaultScanTimeout    = 5 * time.Minute
	persistentCallTimeout = 10 * time.Second
)

// LedgerScanner reads every journal entry line
type LedgerScanner interface {
	ReadAll(ctx context.Context, opts ledger.ReadOptions) (ledger.ReadResult, error)
}

// Options tunes the cache tiers. Zero values use the defaults.
type Options struct {
	MemoryTTL     time.Duration
	PersistentTTL time.Duration
	KeepSnapshots int
	// ScanTimeout bounds a shared cold load, which outlives any single caller
	ScanTimeout time.Duration
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MemoryTTL <= 0 {
		o.MemoryTTL = DefaultMemoryTTL
	}
	if o.PersistentTTL <= 0 {
		o.PersistentTTL = DefaultPersistentTTL
	}
	if o.KeepSnapshots <= 0 {
		o.KeepSnapshots = DefaultKeepSnapshots
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = DefaultScanTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type memoryEntry struct {
	snapshot Snapshot
	storedAt time.Time
}

// Cache memoizes the full balance map in process memory and a persistent store,
// computing it from the ledger on a miss
type Cache struct {
	accounts *Directory
	scanner  LedgerScanner
	repo     SnapshotRepository
	opts     Options
	logger   *slog.Logger

	mu     sync.RWMutex
	memory *memoryEntry

	group singleflight.Group
}

// NewCache creates a new balance cache. A nil repo disables the persistent tier.
func NewCache(accounts *Directory, scanner LedgerScanner, repo SnapshotRepository, opts Options, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		accounts: accounts,
		scanner:  scanner,
		repo:     repo,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// GetAllBalances returns the balances of every known account.
// force skips both cached tiers and recomputes from the ledger.
func (c *Cache) GetAllBalances(ctx context.Context, force bool) (Snapshot, error) {
	if !force {
		if snap, ok := c.fromMemory(); ok {
			metrics.IncCacheLookup(string(SourceMemory))
			return snap, nil
		}
	}

	key := "load"
	if force {
		key = "refresh"
	}
	// The load is shared, so it must not die with whichever caller started it
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		scanCtx, cancel := context.WithTimeout(loadCtx, c.opts.ScanTimeout)
		defer cancel()

		if !force {
			if snap, ok := c.fromMemory(); ok {
				return snap, nil
			}
			if snap, ok := c.fromPersistent(scanCtx); ok {
				return snap, nil
			}
		}
		return c.compute(scanCtx)
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		snap := res.Val.(Snapshot)
		if res.Shared {
			c.logger.Debug("Joined in-flight balance load", "source", snap.Source)
		}
		metrics.IncCacheLookup(string(snap.Source))
		return snap, nil
	}
}

// CalculateBalances returns the requested accounts projected from the full map
func (c *Cache) CalculateBalances(ctx context.Context, codes []string) (Snapshot, error) {
	snap, err := c.GetAllBalances(ctx, false)
	if err != nil {
		return Snapshot{}, err
	}
	return snap.Project(codes), nil
}

// ComputeAsOf computes balances through endDate without touching either cached tier
func (c *Cache) ComputeAsOf(ctx context.Context, endDate string) (Snapshot, error) {
	snap, err := c.scan(ctx, ledger.ReadOptions{EndDate: endDate})
	if err != nil {
		return Snapshot{}, err
	}
	snap.AsOf = endDate
	return snap, nil
}

// Sweep drops an expired in-memory snapshot and reports whether one was dropped
func (c *Cache) Sweep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memory == nil || c.opts.Now().Sub(c.memory.storedAt) < c.opts.MemoryTTL {
		return false
	}
	c.memory = nil
	return true
}

func (c *Cache) fromMemory() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.memory == nil || c.opts.Now().Sub(c.memory.storedAt) >= c.opts.MemoryTTL {
		return Snapshot{}, false
	}
	snap := c.memory.snapshot
	snap.Source = SourceMemory
	return snap, true
}

func (c *Cache) storeMemory(snap Snapshot) {
	c.mu.Lock()
	c.memory = &memoryEntry{snapshot: snap, storedAt: c.opts.Now()}
	c.mu.Unlock()
}

func (c *Cache) fromPersistent(ctx context.Context) (Snapshot, bool) {
	if c.repo == nil {
		return Snapshot{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, persistentCallTimeout)
	defer cancel()

	latest, err := c.repo.LatestSnapshot(ctx)
	if err != nil {
		c.logger.Warn("Persistent balance cache unavailable", "error", err)
		return Snapshot{}, false
	}
	if latest == nil {
		return Snapshot{}, false
	}

	age := c.opts.Now().Sub(latest.ComputedAt)
	if age > c.opts.PersistentTTL {
		c.logger.Info("Persistent balance snapshot is stale",
			"snapshot_id", latest.ID,
			"age", age.Round(time.Second).String(),
		)
		return Snapshot{}, false
	}

	snap := *latest
	snap.Source = SourcePersistent
	c.storeMemory(snap)
	return snap, true
}

func (c *Cache) compute(ctx context.Context) (Snapshot, error) {
	snap, err := c.scan(ctx, ledger.ReadOptions{})
	if err != nil {
		return Snapshot{}, err
	}
	c.storeMemory(snap)
	c.persist(ctx, snap)
	return snap, nil
}

func (c *Cache) scan(ctx context.Context, opts ledger.ReadOptions) (Snapshot, error) {
	start := c.opts.Now()

	accounts, err := c.accounts.Accounts(ctx)
	if err != nil {
		metrics.ObserveLedgerScan("error", time.Since(start))
		return Snapshot{}, err
	}
	result, err := c.scanner.ReadAll(ctx, opts)
	if err != nil {
		metrics.ObserveLedgerScan("error", time.Since(start))
		return Snapshot{}, err
	}

	now := c.opts.Now()
	snap := Snapshot{
		ID:         ulid.Make().String(),
		Balances:   ledger.BuildBalances(accounts, result.Lines),
		ComputedAt: now,
		Truncated:  result.Truncated,
		Source:     SourceComputed,
	}
	metrics.ObserveLedgerScan("success", time.Since(start))
	c.logger.Info("Computed account balances",
		"snapshot_id", snap.ID,
		"accounts", len(snap.Balances),
		"entries", result.Entries,
		"pages", result.Pages,
		"truncated", result.Truncated,
		"end_date", opts.EndDate,
	)
	return snap, nil
}

func (c *Cache) persist(ctx context.Context, snap Snapshot) {
	if c.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistentCallTimeout)
	defer cancel()

	if err := c.repo.SaveSnapshot(ctx, snap); err != nil {
		c.logger.Warn("Failed to persist balance snapshot", "snapshot_id", snap.ID, "error", err)
		return
	}
	removed, err := c.repo.PruneSnapshots(ctx, c.opts.KeepSnapshots)
	if err != nil {
		c.logger.Warn("Failed to prune balance snapshots", "error", err)
		return
	}
	if removed > 0 {
		c.logger.Debug("Pruned balance snapshots", "removed", removed)
	}
}
