package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSignedBalance(t *testing.T) {
	debits, credits := dec("250.75"), dec("100.25")

	tests := []struct {
		accountType AccountType
		want        string
	}{
		{Liability, "-150.5"},
		{Equity, "-150.5"},
		{Revenue, "-150.5"},
		{Income, "-150.5"},
		{Asset, "150.5"},
		{Expense, "150.5"},
		{UnknownType, "150.5"},
		{AccountType("Contra"), "150.5"},
	}

	for _, tt := range tests {
		t.Run(string(tt.accountType), func(t *testing.T) {
			got := SignedBalance(tt.accountType, debits, credits)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseAccountType(t *testing.T) {
	assert.Equal(t, Liability, ParseAccountType(" liability "))
	assert.Equal(t, Income, ParseAccountType("Income"))
	assert.Equal(t, UnknownType, ParseAccountType(""))
	assert.Equal(t, AccountType("Contra"), ParseAccountType("Contra"))
	assert.False(t, ParseAccountType("Contra").CreditNormal())
}

func TestParseAccountStatus(t *testing.T) {
	assert.Equal(t, Active, ParseAccountStatus(""))
	assert.Equal(t, Active, ParseAccountStatus("active"))
	assert.Equal(t, Inactive, ParseAccountStatus("Inactive"))
}

func TestAggregate_OrderIndependent(t *testing.T) {
	pageA := []JournalEntryLine{
		{AccountCode: "11001", Side: Debit, Amount: dec("100")},
		{AccountCode: "40000", Side: Credit, Amount: dec("100")},
	}
	pageB := []JournalEntryLine{
		{AccountCode: "11001", Side: Credit, Amount: dec("40")},
		{AccountCode: "60000", Side: Debit, Amount: dec("40")},
	}
	pageC := []JournalEntryLine{
		{AccountCode: "11001", Side: Debit, Amount: dec("0.10")},
		{AccountCode: "40000", Side: Credit, Amount: dec("0.10")},
	}

	orders := [][][]JournalEntryLine{
		{pageA, pageB, pageC},
		{pageC, pageB, pageA},
		{pageB, pageA, pageC},
	}

	var reference map[string]Totals
	for i, order := range orders {
		var lines []JournalEntryLine
		for _, page := range order {
			lines = append(lines, page...)
		}
		got := Aggregate(lines)
		if i == 0 {
			reference = got
			continue
		}
		assert.Len(t, got, len(reference))
		for code, want := range reference {
			assert.True(t, got[code].Debits.Equal(want.Debits), "debits for %s", code)
			assert.True(t, got[code].Credits.Equal(want.Credits), "credits for %s", code)
			assert.Equal(t, want.Count, got[code].Count, "count for %s", code)
		}
	}

	assert.True(t, reference["11001"].Debits.Equal(dec("100.10")))
	assert.True(t, reference["11001"].Credits.Equal(dec("40")))
	assert.Equal(t, 3, reference["11001"].Count)
}

func TestAggregate_IgnoresUnknownSides(t *testing.T) {
	got := Aggregate([]JournalEntryLine{
		{AccountCode: "11001", Side: "debit", Amount: dec("5")},
		{AccountCode: "11001", Side: "MEMO", Amount: dec("99")},
		{AccountCode: "", Side: Debit, Amount: dec("1")},
	})

	assert.Len(t, got, 1)
	assert.True(t, got["11001"].Debits.Equal(dec("5")))
	assert.Equal(t, 1, got["11001"].Count)
}

func TestBuildBalances_IncludesIdleAccounts(t *testing.T) {
	accounts := []Account{
		{Code: "11001", Name: "Operating Bank", Type: Asset, Subtype: "Bank", Status: Active},
		{Code: "20000", Name: "Accounts Payable", Type: Liability, Subtype: "Accounts Payable", Status: Active},
	}
	lines := []JournalEntryLine{
		{AccountCode: "11001", Side: Debit, Amount: dec("100")},
		{AccountCode: "11001", Side: Credit, Amount: dec("40")},
		{AccountCode: "99999", Side: Debit, Amount: dec("7")},
	}

	balances := BuildBalances(accounts, lines)

	assert.Len(t, balances, 2)
	assert.True(t, balances["11001"].Balance.Equal(dec("60")))
	assert.Equal(t, 2, balances["11001"].TransactionCount)
	assert.True(t, balances["20000"].Balance.IsZero())
	assert.Equal(t, "Accounts Payable", balances["20000"].Name)
}

func TestRecompute(t *testing.T) {
	b := AccountBalance{
		Code:         "20000",
		Type:         Liability,
		TotalDebits:  dec("10"),
		TotalCredits: dec("35"),
		Balance:      dec("999"),
	}

	assert.True(t, b.Recompute().Balance.Equal(dec("25")))
}
