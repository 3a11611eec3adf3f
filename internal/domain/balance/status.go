package balance

import (
	"context"
	"time"
)

// MemoryStatus describes the in-process tier
type MemoryStatus struct {
	Populated    bool       `json:"populated"`
	SnapshotID   string     `json:"snapshot_id,omitempty"`
	ComputedAt   *time.Time `json:"computed_at,omitempty"`
	AgeSeconds   int64      `json:"age_seconds,omitempty"`
	TTLSeconds   int64      `json:"ttl_seconds"`
	Expired      bool       `json:"expired"`
	AccountCount int        `json:"account_count"`
	Truncated    bool       `json:"truncated"`
}

// PersistentStatus describes the persistent tier
type PersistentStatus struct {
	Configured       bool       `json:"configured"`
	Available        bool       `json:"available"`
	SnapshotID       string     `json:"snapshot_id,omitempty"`
	ComputedAt       *time.Time `json:"computed_at,omitempty"`
	AgeSeconds       int64      `json:"age_seconds,omitempty"`
	StalenessSeconds int64      `json:"staleness_seconds"`
	Stale            bool       `json:"stale"`
	AccountCount     int        `json:"account_count"`
	Error            string     `json:"error,omitempty"`
}

// CacheStatus reports both cached tiers
type CacheStatus struct {
	Memory     MemoryStatus     `json:"memory_cache"`
	Persistent PersistentStatus `json:"persistent_cache"`
}

// Status inspects both tiers without loading or computing anything
func (c *Cache) Status(ctx context.Context) CacheStatus {
	now := c.opts.Now()
	status := CacheStatus{
		Memory: MemoryStatus{TTLSeconds: int64(c.opts.MemoryTTL / time.Second)},
		Persistent: PersistentStatus{
			Configured:       c.repo != nil,
			StalenessSeconds: int64(c.opts.PersistentTTL / time.Second),
		},
	}

	c.mu.RLock()
	if c.memory != nil {
		snap := c.memory.snapshot
		computedAt := snap.ComputedAt
		status.Memory.Populated = true
		status.Memory.SnapshotID = snap.ID
		status.Memory.ComputedAt = &computedAt
		status.Memory.AgeSeconds = int64(now.Sub(c.memory.storedAt) / time.Second)
		status.Memory.Expired = now.Sub(c.memory.storedAt) >= c.opts.MemoryTTL
		status.Memory.AccountCount = len(snap.Balances)
		status.Memory.Truncated = snap.Truncated
	}
	c.mu.RUnlock()

	if c.repo == nil {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, persistentCallTimeout)
	defer cancel()

	latest, err := c.repo.LatestSnapshot(ctx)
	if err != nil {
		status.Persistent.Error = err.Error()
		return status
	}
	status.Persistent.Available = true
	if latest == nil {
		return status
	}
	computedAt := latest.ComputedAt
	age := now.Sub(computedAt)
	status.Persistent.SnapshotID = latest.ID
	status.Persistent.ComputedAt = &computedAt
	status.Persistent.AgeSeconds = int64(age / time.Second)
	status.Persistent.Stale = age > c.opts.PersistentTTL
	status.Persistent.AccountCount = len(latest.Balances)
	return status
}
