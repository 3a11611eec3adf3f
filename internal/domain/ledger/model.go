package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType represents the classification of an account in the chart of accounts
type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
	Income    AccountType = "INCOME"

	// UnknownType is used when the ERP omits the account type
	UnknownType AccountType = "Unknown"
)

// ParseAccountType normalizes an ERP type string. Unrecognized values are kept
// verbatim so they still flow through matching and the debit-normal default.
func ParseAccountType(s string) AccountType {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownType
	}
	switch t := AccountType(strings.ToUpper(s)); t {
	case Asset, Liability, Equity, Revenue, Expense, Income:
		return t
	}
	return AccountType(s)
}

// CreditNormal reports whether increases to the account are recorded as credits
func (t AccountType) CreditNormal() bool {
	switch t {
	case Liability, Equity, Revenue, Income:
		return true
	}
	return false
}

// AccountStatus represents whether an account is open for posting
type AccountStatus string

const (
	Active   AccountStatus = "ACTIVE"
	Inactive AccountStatus = "INACTIVE"
)

// ParseAccountStatus treats a missing status as active
func ParseAccountStatus(s string) AccountStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(Inactive)) {
		return Inactive
	}
	return Active
}

// Side is the debit or credit side of a journal entry line
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// Account is a chart-of-accounts record owned by the ERP
type Account struct {
	Code    string        `json:"code"`
	Name    string        `json:"name"`
	Type    AccountType   `json:"type"`
	Subtype string        `json:"subtype"`
	Status  AccountStatus `json:"status"`
}

// IsActive reports whether the account can be returned to callers
func (a Account) IsActive() bool {
	return a.Status == Active
}

// JournalEntryLine is one debit or credit posting against an account
type JournalEntryLine struct {
	AccountCode string          `json:"account_code"`
	Side        Side            `json:"side"`
	Amount      decimal.Decimal `json:"amount"`
}

// JournalEntry groups the lines of one balanced accounting record
type JournalEntry struct {
	ID    string             `json:"id"`
	Date  string             `json:"date"` // YYYY-MM-DD
	Lines []JournalEntryLine `json:"lines"`
}

// AccountBalance is the aggregate of all lines posted to one account.
// Balance is derived from the totals by NewAccountBalance and never set on its own.
type AccountBalance struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Type             AccountType     `json:"type"`
	Subtype          string          `json:"subtype,omitempty"`
	TotalDebits      decimal.Decimal `json:"total_debits"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int             `json:"transaction_count"`
}
