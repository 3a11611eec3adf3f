package account

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Rule maps a search term onto concrete account attributes.
// Subtypes take precedence over Codes when both are set.
type Rule struct {
	Subtypes   []string `yaml:"subtypes,omitempty" json:"subtypes,omitempty"`
	Codes      []string `yaml:"codes,omitempty" json:"codes,omitempty"`
	Exclusions []string `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`
}

// SynonymTable is keyed by the normalized search term
type SynonymTable map[string]Rule

// DefaultSynonyms returns the built-in synonym table
func DefaultSynonyms() SynonymTable {
	receivable := Rule{Subtypes: []string{"Accounts Receivable"}}
	payable := Rule{Subtypes: []string{"Accounts Payable"}}
	creditCard := Rule{Subtypes: []string{"Credit Card"}}

	return SynonymTable{
		"cash": {
			Subtypes:   []string{"Cash", "Bank"},
			Exclusions: []string{"receivable", "clearing", "in transit"},
		},
		"bank": {
			Subtypes:   []string{"Bank"},
			Exclusions: []string{"clearing", "in transit"},
		},
		"receivables":         receivable,
		"accounts receivable": receivable,
		"ar":                  receivable,
		"payables":            payable,
		"accounts payable":    payable,
		"ap":                  payable,
		"credit card":         creditCard,
		"credit cards":        creditCard,
		"fixed assets":        {Subtypes: []string{"Fixed Asset"}},
		"payroll liabilities": {Codes: []string{"21100", "21200", "21300"}},
	}
}

// Lookup finds the rule for a search term
func (t SynonymTable) Lookup(search string) (Rule, bool) {
	rule, ok := t[normalize(search)]
	return rule, ok
}

// Terms returns the known search terms in sorted order
func (t SynonymTable) Terms() []string {
	terms := make([]string, 0, len(t))
	for term := range t {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

type synonymFile struct {
	Synonyms map[string]Rule `yaml:"synonyms"`
}

// ParseSynonymsYAML merges YAML rules over base. A term in the file replaces the base rule.
func ParseSynonymsYAML(data []byte, base SynonymTable) (SynonymTable, error) {
	var file synonymFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing synonyms: %w", err)
	}

	merged := make(SynonymTable, len(base)+len(file.Synonyms))
	for term, rule := range base {
		merged[term] = rule
	}
	for term, rule := range file.Synonyms {
		key := normalize(term)
		if key == "" {
			continue
		}
		if len(rule.Subtypes) == 0 && len(rule.Codes) == 0 {
			return nil, fmt.Errorf("synonym %q needs subtypes or codes", term)
		}
		merged[key] = rule
	}
	return merged, nil
}

// LoadSynonymsYAML reads a synonym file and merges it over the defaults
func LoadSynonymsYAML(path string) (SynonymTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonyms: %w", err)
	}
	return ParseSynonymsYAML(data, DefaultSynonyms())
}
