package account

import (
	"sort"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

const maxExamples = 3

// SubtypeCategory summarizes the active accounts of one subtype
type SubtypeCategory struct {
	Subtype  string   `json:"subtype"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// TypeCategory summarizes the active accounts of one account type
type TypeCategory struct {
	Type     ledger.AccountType `json:"type"`
	Count    int                `json:"count"`
	Subtypes []SubtypeCategory  `json:"subtypes"`
}

// Categories is the account taxonomy offered to users
type Categories struct {
	Types       []TypeCategory `json:"types"`
	SearchTerms []string       `json:"search_terms"`
	TotalActive int            `json:"total_active"`
}

// BuildCategories groups active accounts by type and subtype
func BuildCategories(accounts []ledger.Account, synonyms SynonymTable) Categories {
	byType := make(map[ledger.AccountType]map[string]*SubtypeCategory)
	total := 0

	for _, acct := range accounts {
		if !acct.IsActive() {
			continue
		}
		total++

		subtypes, ok := byType[acct.Type]
		if !ok {
			subtypes = make(map[string]*SubtypeCategory)
			byType[acct.Type] = subtypes
		}
		key := acct.Subtype
		if key == "" {
			key = "(none)"
		}
		cat, ok := subtypes[key]
		if !ok {
			cat = &SubtypeCategory{Subtype: key}
			subtypes[key] = cat
		}
		cat.Count++
		if len(cat.Examples) < maxExamples {
			cat.Examples = append(cat.Examples, acct.Name)
		}
	}

	result := Categories{
		Types:       make([]TypeCategory, 0, len(byType)),
		SearchTerms: synonyms.Terms(),
		TotalActive: total,
	}
	for typ, subtypes := range byType {
		tc := TypeCategory{Type: typ}
		for _, cat := range subtypes {
			tc.Count += cat.Count
			tc.Subtypes = append(tc.Subtypes, *cat)
		}
		sort.Slice(tc.Subtypes, func(i, j int) bool { return tc.Subtypes[i].Subtype < tc.Subtypes[j].Subtype })
		result.Types = append(result.Types, tc)
	}
	sort.Slice(result.Types, func(i, j int) bool { return result.Types[i].Type < result.Types[j].Type })
	return result
}
