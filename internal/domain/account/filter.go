package account

import "strings"

// Filter represents the criteria a caller uses to select accounts.
// All non-empty fields are ANDed together.
type Filter struct {
	Search  string   `json:"search,omitempty"`
	Type    string   `json:"type,omitempty"`
	Subtype string   `json:"subtype,omitempty"`
	Codes   []string `json:"codes,omitempty"`
}

// IsEmpty reports whether the filter selects every active account
func (f Filter) IsEmpty() bool {
	return normalize(f.Search) == "" && normalize(f.Type) == "" && normalize(f.Subtype) == "" && len(f.Codes) == 0
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
