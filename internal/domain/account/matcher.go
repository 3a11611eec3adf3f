package account

import (
	"sort"
	"strings"

	"github.com/hirosato/finance-assistant/internal/domain/ledger"
)

// Matcher resolves filters against the chart of accounts
type Matcher struct {
	synonyms SynonymTable
}

// NewMatcher creates a new matcher. A nil table uses DefaultSynonyms.
func NewMatcher(synonyms SynonymTable) *Matcher {
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}
	return &Matcher{synonyms: synonyms}
}

// Synonyms returns the table used for search resolution
func (m *Matcher) Synonyms() SynonymTable {
	return m.synonyms
}

// Match returns the active accounts selected by the filter, ordered by code.
// An empty slice means nothing matched.
func (m *Matcher) Match(accounts []ledger.Account, f Filter) []ledger.Account {
	pred := m.predicate(f)

	matched := make([]ledger.Account, 0)
	for _, acct := range accounts {
		if !acct.IsActive() {
			continue
		}
		if pred(acct) {
			matched = append(matched, acct)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
	return matched
}

// Codes is Match reduced to account codes
func (m *Matcher) Codes(accounts []ledger.Account, f Filter) []string {
	matched := m.Match(accounts, f)
	codes := make([]string, len(matched))
	for i, acct := range matched {
		codes[i] = acct.Code
	}
	return codes
}

type predicate func(ledger.Account) bool

func (m *Matcher) predicate(f Filter) predicate {
	var preds []predicate

	search := normalize(f.Search)
	switch {
	case len(f.Codes) > 0:
		preds = append(preds, codeSet(f.Codes))
	case search != "":
		preds = append(preds, m.searchPredicate(search))
	}

	if typ := normalize(f.Type); typ != "" {
		preds = append(preds, func(a ledger.Account) bool {
			return strings.EqualFold(string(a.Type), typ)
		})
	}
	if subtype := normalize(f.Subtype); subtype != "" {
		preds = append(preds, func(a ledger.Account) bool {
			return normalize(a.Subtype) == subtype
		})
	}

	return func(a ledger.Account) bool {
		for _, p := range preds {
			if !p(a) {
				return false
			}
		}
		return true
	}
}

func (m *Matcher) searchPredicate(search string) predicate {
	rule, ok := m.synonyms.Lookup(search)
	switch {
	case ok && len(rule.Subtypes) > 0:
		subtypes := make(map[string]struct{}, len(rule.Subtypes))
		for _, s := range rule.Subtypes {
			subtypes[normalize(s)] = struct{}{}
		}
		return func(a ledger.Account) bool {
			if _, ok := subtypes[normalize(a.Subtype)]; !ok {
				return false
			}
			name := strings.ToLower(a.Name)
			for _, ex := range rule.Exclusions {
				if ex = normalize(ex); ex != "" && strings.Contains(name, ex) {
					return false
				}
			}
			return !negated(name, search)
		}
	case ok && len(rule.Codes) > 0:
		return codeSet(rule.Codes)
	}

	return func(a ledger.Account) bool {
		name := strings.ToLower(a.Name)
		if !strings.Contains(name, search) && !strings.Contains(strings.ToLower(a.Code), search) {
			return false
		}
		return !negated(name, search)
	}
}

// negated reports whether the name mentions the term only as "non-term" or "non term"
func negated(name, term string) bool {
	return strings.Contains(name, "non-"+term) || strings.Contains(name, "non "+term)
}

func codeSet(codes []string) predicate {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return func(a ledger.Account) bool {
		_, ok := set[a.Code]
		return ok
	}
}
