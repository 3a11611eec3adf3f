package account

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

func chart() []ledger.Account {
	return []ledger.Account{
		{Code: "10100", Name: "Petty Cash", Type: ledger.Asset, Subtype: "Cash", Status: ledger.Active},
		{Code: "11001", Name: "Operating Bank", Type: ledger.Asset, Subtype: "Bank", Status: ledger.Active},
		{Code: "11002", Name: "Payroll Clearing", Type: ledger.Asset, Subtype: "Bank", Status: ledger.Active},
		{Code: "11003", Name: "Cash in Transit", Type: ledger.Asset, Subtype: "Cash", Status: ledger.Active},
		{Code: "11004", Name: "Cash Receivable Holding", Type: ledger.Asset, Subtype: "Bank", Status: ledger.Active},
		{Code: "11005", Name: "Non-Cash Reserve", Type: ledger.Asset, Subtype: "Cash", Status: ledger.Active},
		{Code: "11006", Name: "Old Savings", Type: ledger.Asset, Subtype: "Bank", Status: ledger.Inactive},
		{Code: "12000", Name: "Accounts Receivable", Type: ledger.Asset, Subtype: "Accounts Receivable", Status: ledger.Active},
		{Code: "15000", Name: "Non Cash Collateral", Type: ledger.Asset, Subtype: "Other Asset", Status: ledger.Active},
		{Code: "15100", Name: "Cash Surrender Value", Type: ledger.Asset, Subtype: "Other Asset", Status: ledger.Active},
		{Code: "20000", Name: "Accounts Payable", Type: ledger.Liability, Subtype: "Accounts Payable", Status: ledger.Active},
		{Code: "21100", Name: "Federal Withholding", Type: ledger.Liability, Subtype: "Payroll", Status: ledger.Active},
		{Code: "21200", Name: "State Withholding", Type: ledger.Liability, Subtype: "Payroll", Status: ledger.Active},
		{Code: "40000", Name: "Sales", Type: ledger.Revenue, Subtype: "", Status: ledger.Active},
	}
}

func TestMatcher_CashSynonymExcludesPatterns(t *testing.T) {
	m := NewMatcher(nil)

	codes := m.Codes(chart(), Filter{Search: "  CASH "})

	assert.Equal(t, []string{"10100", "11001"}, codes)
}

func TestMatcher_NegationGuard(t *testing.T) {
	m := NewMatcher(nil)

	assert.NotContains(t, m.Codes(chart(), Filter{Search: "cash"}), "11005")

	// literal path
	codes := m.Codes(chart(), Filter{Search: "Cash S"})
	assert.Equal(t, []string{"15100"}, codes)

	literal := m.Codes(chart(), Filter{Search: "collateral"})
	assert.Equal(t, []string{"15000"}, literal)

	guarded := NewMatcher(SynonymTable{}).Codes(chart(), Filter{Search: "cash"})
	assert.NotContains(t, guarded, "11005")
	assert.NotContains(t, guarded, "15000")
	assert.Contains(t, guarded, "15100")
}

func TestMatcher_CodeSynonym(t *testing.T) {
	m := NewMatcher(nil)

	codes := m.Codes(chart(), Filter{Search: "Payroll Liabilities"})

	assert.Equal(t, []string{"21100", "21200"}, codes)
}

func TestMatcher_ExplicitCodesWin(t *testing.T) {
	m := NewMatcher(nil)

	codes := m.Codes(chart(), Filter{Codes: []string{"20000", " 40000 ", "99999"}, Search: "cash"})

	assert.Equal(t, []string{"20000", "40000"}, codes)
}

func TestMatcher_TypeAndSubtype(t *testing.T) {
	m := NewMatcher(nil)

	assert.Equal(t, []string{"20000", "21100", "21200"}, m.Codes(chart(), Filter{Type: "liability"}))
	assert.Equal(t, []string{"21100", "21200"}, m.Codes(chart(), Filter{Type: "LIABILITY", Subtype: "payroll"}))
	assert.Equal(t, []string{"11001", "11002", "11004"}, m.Codes(chart(), Filter{Subtype: "bank"}))
	assert.Equal(t, []string{"11001", "11004"}, m.Codes(chart(), Filter{Search: "bank", Type: "asset"}))
}

func TestMatcher_InactiveNeverReturned(t *testing.T) {
	m := NewMatcher(nil)

	assert.NotContains(t, m.Codes(chart(), Filter{}), "11006")
	assert.Empty(t, m.Codes(chart(), Filter{Codes: []string{"11006"}}))
}

func TestMatcher_NoMatchIsEmpty(t *testing.T) {
	m := NewMatcher(nil)

	matched := m.Match(chart(), Filter{Type: "EQUITY"})

	assert.NotNil(t, matched)
	assert.Empty(t, matched)
}

func TestMatcher_LiteralMatchesCode(t *testing.T) {
	m := NewMatcher(nil)

	assert.Equal(t, []string{"40000"}, m.Codes(chart(), Filter{Search: "4000"}))
}

func TestParseSynonymsYAML(t *testing.T) {
	data := []byte(`
synonyms:
  Cash:
    subtypes: [Cash]
  loans:
    codes: ["25000", "25100"]
`)

	table, err := ParseSynonymsYAML(data, DefaultSynonyms())
	require.NoError(t, err)

	cash, ok := table.Lookup("cash")
	require.True(t, ok)
	assert.Equal(t, []string{"Cash"}, cash.Subtypes)
	assert.Empty(t, cash.Exclusions)

	loans, ok := table.Lookup("LOANS")
	require.True(t, ok)
	assert.Equal(t, []string{"25000", "25100"}, loans.Codes)

	_, ok = table.Lookup("bank")
	assert.True(t, ok, "defaults are kept")
}

func TestParseSynonymsYAML_RejectsEmptyRule(t *testing.T) {
	_, err := ParseSynonymsYAML([]byte("synonyms:\n  misc: {}\n"), nil)
	assert.Error(t, err)
}

func TestLoadSynonymsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms:\n  deposits:\n    subtypes: [Bank]\n"), 0o644))

	table, err := LoadSynonymsYAML(path)
	require.NoError(t, err)

	m := NewMatcher(table)
	assert.Equal(t, []string{"11001", "11002", "11004"}, m.Codes(chart(), Filter{Search: "deposits"}))

	_, err = LoadSynonymsYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildCategories(t *testing.T) {
	cats := BuildCategories(chart(), DefaultSynonyms())

	assert.Equal(t, 13, cats.TotalActive)
	require.Len(t, cats.Types, 3)
	assert.Equal(t, ledger.Asset, cats.Types[0].Type)
	assert.Equal(t, 9, cats.Types[0].Count)

	var bank SubtypeCategory
	for _, sub := range cats.Types[0].Subtypes {
		if sub.Subtype == "Bank" {
			bank = sub
		}
	}
	assert.Equal(t, 3, bank.Count)
	assert.Len(t, bank.Examples, 3)

	revenue := cats.Types[2]
	assert.Equal(t, ledger.Revenue, revenue.Type)
	assert.Equal(t, "(none)", revenue.Subtypes[0].Subtype)
	assert.Contains(t, cats.SearchTerms, "cash")
}
