package erp

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

const unknownName = "Unknown"

type pagination struct {
	NextCursor string `json:"next_cursor"`
}

type accountsResponse struct {
	Accounts   []accountRecord `json:"accounts"`
	Pagination pagination      `json:"pagination"`
}

type accountRecord struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Status  string `json:"status"`
}

func (r accountRecord) toAccount() ledger.Account {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = unknownName
	}
	return ledger.Account{
		Code:    strings.TrimSpace(r.Code),
		Name:    name,
		Type:    ledger.ParseAccountType(r.Type),
		Subtype: strings.TrimSpace(r.Subtype),
		Status:  ledger.ParseAccountStatus(r.Status),
	}
}

type journalEntriesResponse struct {
	JournalEntries []journalEntryRecord `json:"journal_entries"`
	Pagination     pagination           `json:"pagination"`
}

type journalEntryRecord struct {
	ID    string       `json:"id"`
	Date  string       `json:"date"`
	Items []itemRecord `json:"items"`
}

type itemRecord struct {
	AccountCode string      `json:"account_code"`
	Side        string      `json:"side"`
	Amount      moneyRecord `json:"amount"`
}

type moneyRecord struct {
	Amount   amountValue `json:"amount"`
	Currency string      `json:"currency"`
}

// amountValue accepts a JSON number, a numeric string, or null (as zero).
// Anything else also reads as zero, with the raw text kept in invalid.
type amountValue struct {
	decimal.Decimal
	invalid string
}

func (a *amountValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
		if len(data) == 0 {
			a.Decimal = decimal.Zero
			return nil
		}
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		a.Decimal = decimal.Zero
		a.invalid = string(data)
		return nil
	}
	a.Decimal = d
	return nil
}

// toJournalEntry converts an entry record, dropping lines without a debit or
// credit side and reading unparseable amounts as zero
func (r journalEntryRecord) toJournalEntry(logger *slog.Logger) ledger.JournalEntry {
	entry := ledger.JournalEntry{
		ID:    r.ID,
		Date:  r.Date,
		Lines: make([]ledger.JournalEntryLine, 0, len(r.Items)),
	}
	for i, item := range r.Items {
		code := strings.TrimSpace(item.AccountCode)
		side := ledger.Side(strings.ToUpper(strings.TrimSpace(item.Side)))
		if side != ledger.Debit && side != ledger.Credit {
			logger.Warn("Skipping journal line with unknown side",
				"entry_id", r.ID, "line", i, "account_code", code, "side", item.Side)
			continue
		}
		if item.Amount.Amount.invalid != "" {
			logger.Warn("Journal line amount is not a number, using zero",
				"entry_id", r.ID, "line", i, "account_code", code, "amount", item.Amount.Amount.invalid)
		}
		entry.Lines = append(entry.Lines, ledger.JournalEntryLine{
			AccountCode: code,
			Side:        side,
			Amount:      item.Amount.Amount.Decimal,
		})
	}
	return entry
}
