package ledger

import (
	"context"
	"log/slog"

	"github.com/hirosato/finance-assistant/internal/domain/errors"
	"github.com/hirosato/finance-assistant/internal/observability/metrics"
)

const (
	// DefaultPageSize is the limit sent with every page request
	DefaultPageSize = 100
	// DefaultMaxPages is the safety ceiling for one scan
	DefaultMaxPages = 500
)

// ReadOptions bounds a journal entry scan. A zero value scans the whole ledger.
type ReadOptions struct {
	EndDate string // YYYY-MM-DD, inclusive
}

// AccountPage is one page of the chart of accounts
type AccountPage struct {
	Accounts   []Account
	NextCursor string
}

// JournalEntryPage is one page of journal entries
type JournalEntryPage struct {
	Entries    []JournalEntry
	NextCursor string
}

// PageSource is the remote ledger API
type PageSource interface {
	ListAccounts(ctx context.Context, cursor string, limit int) (*AccountPage, error)
	ListJournalEntries(ctx context.Context, cursor string, limit int, opts ReadOptions) (*JournalEntryPage, error)
}

// ReadResult is the outcome of a paginated scan.
// Truncated is set when the page ceiling stopped the scan before the cursor ran out.
type ReadResult struct {
	Lines     []JournalEntryLine
	Entries   int
	Pages     int
	Truncated bool
}

// Reader walks the ledger API page by page
type Reader struct {
	source   PageSource
	pageSize int
	maxPages int
	logger   *slog.Logger
}

// NewReader creates a new ledger reader. Non-positive sizes fall back to the defaults.
func NewReader(source PageSource, pageSize, maxPages int, logger *slog.Logger) *Reader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		source:   source,
		pageSize: pageSize,
		maxPages: maxPages,
		logger:   logger,
	}
}

// ReadAll fetches every journal entry line. A page failure aborts the scan.
func (r *Reader) ReadAll(ctx context.Context, opts ReadOptions) (ReadResult, error) {
	var result ReadResult
	cursor := ""
	for {
		if result.Pages >= r.maxPages {
			result.Truncated = true
			metrics.IncLedgerTruncation()
			r.logger.Warn("Ledger scan hit page ceiling, totals may be incomplete",
				"pages", result.Pages,
				"entries", result.Entries,
			)
			return result, nil
		}

		page, err := r.source.ListJournalEntries(ctx, cursor, r.pageSize, opts)
		if err != nil {
			return ReadResult{}, errors.NewDataUnavailableError("failed to read journal entries", err).
				WithDetail("page", result.Pages+1)
		}
		result.Pages++
		metrics.IncLedgerPage("journal_entries")

		for _, entry := range page.Entries {
			result.Entries++
			result.Lines = append(result.Lines, entry.Lines...)
		}

		if page.NextCursor == "" {
			return result, nil
		}
		cursor = page.NextCursor
	}
}

// ReadAccounts fetches the full chart of accounts
func (r *Reader) ReadAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	cursor := ""
	for pages := 0; pages < r.maxPages; pages++ {
		page, err := r.source.ListAccounts(ctx, cursor, r.pageSize)
		if err != nil {
			return nil, errors.NewDataUnavailableError("failed to read accounts", err)
		}
		metrics.IncLedgerPage("accounts")
		accounts = append(accounts, page.Accounts...)
		if page.NextCursor == "" {
			return accounts, nil
		}
		cursor = page.NextCursor
	}
	r.logger.Warn("Account listing hit page ceiling", "accounts", len(accounts))
	return accounts, nil
}
