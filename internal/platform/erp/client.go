package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

// ErrMissingToken is returned when the client is built without credentials
var ErrMissingToken = errors.New("erp: api token is required")

// Client is a minimal REST client for the ERP ledger API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger sets the logger used for data quality warnings
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

var _ ledger.PageSource = (*Client)(nil)

// NewClient constructs an ERP client
func NewClient(baseURL, token string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("erp: empty base url")
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StatusError is a non-2xx response from the ERP
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("erp: http %d", e.StatusCode)
	}
	return fmt.Sprintf("erp: http %d: %s", e.StatusCode, e.Body)
}

// ListAccounts fetches one page of the chart of accounts
func (c *Client) ListAccounts(ctx context.Context, cursor string, limit int) (*ledger.AccountPage, error) {
	var resp accountsResponse
	if err := c.getJSON(ctx, "/accounts", pageQuery(cursor, limit), &resp); err != nil {
		return nil, err
	}

	page := &ledger.AccountPage{
		Accounts:   make([]ledger.Account, 0, len(resp.Accounts)),
		NextCursor: resp.Pagination.NextCursor,
	}
	for _, rec := range resp.Accounts {
		page.Accounts = append(page.Accounts, rec.toAccount())
	}
	return page, nil
}

// ListJournalEntries fetches one page of journal entries
func (c *Client) ListJournalEntries(ctx context.Context, cursor string, limit int, opts ledger.ReadOptions) (*ledger.JournalEntryPage, error) {
	query := pageQuery(cursor, limit)
	if opts.EndDate != "" {
		query.Set("end_date", opts.EndDate)
	}

	var resp journalEntriesResponse
	if err := c.getJSON(ctx, "/journal-entries", query, &resp); err != nil {
		return nil, err
	}

	page := &ledger.JournalEntryPage{
		Entries:    make([]ledger.JournalEntry, 0, len(resp.JournalEntries)),
		NextCursor: resp.Pagination.NextCursor,
	}
	for _, rec := range resp.JournalEntries {
		page.Entries = append(page.Entries, rec.toJournalEntry(c.logger))
	}
	return page, nil
}

func pageQuery(cursor string, limit int) url.Values {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	return query
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("erp: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("erp: perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("erp: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 256)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("erp: decode %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
