package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/finance-assistant/internal/domain/account"
	"github.com/hirosato/finance-assistant/internal/domain/balance"
	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

func TestWriteReport(t *testing.T) {
	computed := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	report := &balance.BalanceReport{
		Accounts: []ledger.AccountBalance{
			{Code: "1000", Name: "Operating Checking", Type: ledger.Asset, Subtype: "Bank", Balance: decimal.RequireFromString("1250.5")},
		},
		AccountCount: 1,
		TotalBalance: decimal.RequireFromString("1250.5"),
		ComputedAt:   &computed,
		Source:       balance.SourceMemory,
		Caveat:       "totals may be incomplete",
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report))
	out := buf.String()
	assert.Contains(t, out, "Operating Checking")
	assert.Contains(t, out, "Total: 1250.50 across 1 accounts")
	assert.Contains(t, out, "2025-07-01 09:30 UTC")
	assert.Contains(t, out, "Note: totals may be incomplete")
}

func TestWriteReport_NoMatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, &balance.BalanceReport{Message: "No accounts found", Hint: "try categories"}))
	assert.Equal(t, "No accounts found\ntry categories\n", buf.String())
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, balance.CacheStatus{
		Memory: balance.MemoryStatus{TTLSeconds: 300},
	}))
	assert.Equal(t, "memory:     empty (ttl 5m0s)\npersistent: not configured\n", buf.String())
}

func TestWriteCategories(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCategories(&buf, account.Categories{
		Types: []account.TypeCategory{{
			Type:     ledger.Asset,
			Count:    2,
			Subtypes: []account.SubtypeCategory{{Subtype: "Bank", Count: 2, Examples: []string{"Checking", "Savings"}}},
		}},
		SearchTerms: []string{"bank", "cash"},
		TotalActive: 2,
	}))
	assert.Contains(t, buf.String(), "Checking, Savings")
	assert.Contains(t, buf.String(), "2 active accounts. Search terms: bank, cash")
}
