package balance

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hirosato/finance-assistant/internal/domain/account"
	"github.com/hirosato/finance-assistant/internal/domain/errors"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

const (
	noMatchMessage  = "No accounts found matching the filter"
	noMatchHint     = "Use list_account_categories to see the available types, subtypes and search terms"
	truncatedCaveat = "The ledger scan stopped at its page limit; totals may be incomplete"
)

// Query selects accounts and, optionally, a historical cutoff date
type Query struct {
	Filter account.Filter `json:"filter"`
	AsOf   string         `json:"as_of,omitempty"` // YYYY-MM-DD
}

// BalanceReport is the answer to an account balance question
type BalanceReport struct {
	Accounts     []ledger.AccountBalance `json:"accounts"`
	AccountCount int                     `json:"account_count"`
	TotalBalance decimal.Decimal         `json:"total_balance"`
	ComputedAt   *time.Time              `json:"computed_at,omitempty"`
	Source       Source                  `json:"-"` // serving tier, for logs only
	AsOf         string                  `json:"as_of,omitempty"`
	Truncated    bool                    `json:"truncated"`
	Caveat       string                  `json:"caveat,omitempty"`
	Message      string                  `json:"message,omitempty"`
	Hint         string                  `json:"hint,omitempty"`
}

// NoMatch reports whether the filter selected nothing
func (r *BalanceReport) NoMatch() bool {
	return r.AccountCount == 0
}

// RefreshSummary describes the snapshot produced or reused by a refresh
type RefreshSummary struct {
	SnapshotID      string    `json:"snapshot_id"`
	AccountCount    int       `json:"account_count"`
	NonZeroAccounts int       `json:"non_zero_accounts"`
	ComputedAt      time.Time `json:"computed_at"`
	Source          Source    `json:"source"`
	Truncated       bool      `json:"truncated"`
}

// Service answers balance questions on top of the cache
type Service struct {
	cache    *Cache
	accounts *Directory
	matcher  *account.Matcher
	logger   *slog.Logger
}

// NewService creates a new balance service
func NewService(cache *Cache, accounts *Directory, matcher *account.Matcher, logger *slog.Logger) *Service {
	if matcher == nil {
		matcher = account.NewMatcher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:    cache,
		accounts: accounts,
		matcher:  matcher,
		logger:   logger,
	}
}

// AccountBalance resolves the filter and reports the balances of the matched accounts.
// An empty match is returned as a report with a hint, not an error.
func (s *Service) AccountBalance(ctx context.Context, q Query) (*BalanceReport, error) {
	if q.AsOf != "" {
		if _, err := time.Parse("2006-01-02", q.AsOf); err != nil {
			return nil, errors.NewValidationError("as_of must be in YYYY-MM-DD format").WithDetail("as_of", q.AsOf)
		}
	}

	accounts, err := s.accounts.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	codes := s.matcher.Codes(accounts, q.Filter)
	if len(codes) == 0 {
		s.logger.Info("No accounts matched filter",
			"search", q.Filter.Search,
			"type", q.Filter.Type,
			"subtype", q.Filter.Subtype,
			"codes", len(q.Filter.Codes),
		)
		return &BalanceReport{
			Accounts: []ledger.AccountBalance{},
			Message:  noMatchMessage,
			Hint:     noMatchHint,
		}, nil
	}

	var snap Snapshot
	if q.AsOf != "" {
		full, err := s.cache.ComputeAsOf(ctx, q.AsOf)
		if err != nil {
			return nil, err
		}
		snap = full.Project(codes)
	} else {
		snap, err = s.cache.CalculateBalances(ctx, codes)
		if err != nil {
			return nil, err
		}
	}

	return newReport(snap, codes), nil
}

func newReport(snap Snapshot, codes []string) *BalanceReport {
	computedAt := snap.ComputedAt
	report := &BalanceReport{
		Accounts:     make([]ledger.AccountBalance, 0, len(snap.Balances)),
		TotalBalance: decimal.Zero,
		ComputedAt:   &computedAt,
		Source:       snap.Source,
		AsOf:         snap.AsOf,
		Truncated:    snap.Truncated,
	}
	for _, code := range codes {
		b, ok := snap.Balances[code]
		if !ok {
			continue
		}
		report.Accounts = append(report.Accounts, b)
		report.TotalBalance = report.TotalBalance.Add(b.Balance)
	}
	report.AccountCount = len(report.Accounts)
	if report.AccountCount == 0 {
		report.Message = noMatchMessage
		report.Hint = noMatchHint
	}
	if snap.Truncated {
		report.Caveat = truncatedCaveat
	}
	return report
}

// ListAccountCategories returns the taxonomy of active accounts
func (s *Service) ListAccountCategories(ctx context.Context) (account.Categories, error) {
	accounts, err := s.accounts.Accounts(ctx)
	if err != nil {
		return account.Categories{}, err
	}
	return account.BuildCategories(accounts, s.matcher.Synonyms()), nil
}

// RefreshBalanceCache loads the balance map, recomputing it from the ledger when force is set
func (s *Service) RefreshBalanceCache(ctx context.Context, force bool) (*RefreshSummary, error) {
	if force {
		s.accounts.Invalidate()
	}
	snap, err := s.cache.GetAllBalances(ctx, force)
	if err != nil {
		return nil, err
	}

	summary := &RefreshSummary{
		SnapshotID:   snap.ID,
		AccountCount: len(snap.Balances),
		ComputedAt:   snap.ComputedAt,
		Source:       snap.Source,
		Truncated:    snap.Truncated,
	}
	for _, b := range snap.Balances {
		if !b.Balance.IsZero() {
			summary.NonZeroAccounts++
		}
	}
	return summary, nil
}

// GetCacheStatus reports the state of both cached tiers
func (s *Service) GetCacheStatus(ctx context.Context) CacheStatus {
	return s.cache.Status(ctx)
}

// TopBalances returns the largest balances by absolute value, used for summaries
func TopBalances(balances map[string]ledger.AccountBalance, n int) []ledger.AccountBalance {
	out := make([]ledger.AccountBalance, 0, len(balances))
	for _, b := range balances {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Balance.Abs(), out[j].Balance.Abs()
		if ai.Equal(aj) {
			return out[i].Code < out[j].Code
		}
		return ai.GreaterThan(aj)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
