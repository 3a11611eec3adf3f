package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Totals holds the raw debit and credit sums for one account
type Totals struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
	Count   int
}

// Add folds a single line into the totals
func (t Totals) Add(line JournalEntryLine) Totals {
	switch Side(strings.ToUpper(string(line.Side))) {
	case Debit:
		t.Debits = t.Debits.Add(line.Amount)
	case Credit:
		t.Credits = t.Credits.Add(line.Amount)
	default:
		return t
	}
	t.Count++
	return t
}

// SignedBalance converts raw sums into a balance using the account's normal side.
// Unrecognized types are treated as debit-normal.
func SignedBalance(accountType AccountType, debits, credits decimal.Decimal) decimal.Decimal {
	if accountType.CreditNormal() {
		return credits.Sub(debits)
	}
	return debits.Sub(credits)
}

// Aggregate sums lines per account code. Lines with an unknown side are ignored.
func Aggregate(lines []JournalEntryLine) map[string]Totals {
	totals := make(map[string]Totals)
	for _, line := range lines {
		if line.AccountCode == "" {
			continue
		}
		totals[line.AccountCode] = totals[line.AccountCode].Add(line)
	}
	return totals
}

// NewAccountBalance builds the derived balance record for an account
func NewAccountBalance(account Account, totals Totals) AccountBalance {
	return AccountBalance{
		Code:             account.Code,
		Name:             account.Name,
		Type:             account.Type,
		Subtype:          account.Subtype,
		TotalDebits:      totals.Debits,
		TotalCredits:     totals.Credits,
		Balance:          SignedBalance(account.Type, totals.Debits, totals.Credits),
		TransactionCount: totals.Count,
	}
}

// BuildBalances computes a balance for every account, including accounts with no activity
func BuildBalances(accounts []Account, lines []JournalEntryLine) map[string]AccountBalance {
	totals := Aggregate(lines)
	balances := make(map[string]AccountBalance, len(accounts))
	for _, account := range accounts {
		balances[account.Code] = NewAccountBalance(account, totals[account.Code])
	}
	return balances
}

// Recompute rebuilds the balance from its stored totals, e.g. after loading a snapshot
func (b AccountBalance) Recompute() AccountBalance {
	b.Balance = SignedBalance(b.Type, b.TotalDebits, b.TotalCredits)
	return b
}
