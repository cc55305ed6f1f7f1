// Package catalog loads and validates the rule catalog shipped with the
// widget. The service itself never reads the catalog; validation runs as a
// standalone check before a catalog update is shipped.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/redlantern-games/drawlog/internal/history"
)

// Rule is one entry of the rule catalog.
type Rule struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

// prefixCategories maps rule ID prefixes to their expected category. The SPE
// prefix marks special rules that may live in any category.
var prefixCategories = map[string]string{
	"TAC": history.CategoryTactical,
	"WEP": history.CategoryWeaponry,
	"SOC": history.CategorySocial,
	"CON": history.CategoryContract,
	"SPE": "",
}

// Result collects the findings of a validation pass. Errors make the catalog
// unusable; warnings are advisory.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the catalog passed without errors.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Load reads a rule catalog from a JSON file.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return rules, nil
}

// Validate checks a rule catalog for structural problems.
func Validate(rules []Rule) *Result {
	res := &Result{}

	if len(rules) == 0 {
		res.warnf("catalog is empty")
		return res
	}

	valid := make(map[string]bool, len(history.Categories))
	for _, c := range history.Categories {
		valid[c] = true
	}

	seen := make(map[string]int)
	for i, rule := range rules {
		if rule.ID == "" {
			res.errorf("rule %d: missing id", i)
			continue
		}
		if prev, dup := seen[rule.ID]; dup {
			res.errorf("rule %d: duplicate id %q (first at %d)", i, rule.ID, prev)
		} else {
			seen[rule.ID] = i
		}

		if strings.TrimSpace(rule.Content) == "" {
			res.errorf("rule %s: blank content", rule.ID)
		}
		if !valid[rule.Category] {
			res.errorf("rule %s: invalid category %q", rule.ID, rule.Category)
		}

		prefix, _, found := strings.Cut(rule.ID, "-")
		if !found {
			res.warnf("rule %s: id has no prefix", rule.ID)
			continue
		}
		want, known := prefixCategories[prefix]
		switch {
		case !known:
			res.warnf("rule %s: unknown prefix %q", rule.ID, prefix)
		case want != "" && want != rule.Category:
			res.warnf("rule %s: prefix %s expects category %s, got %s", rule.ID, prefix, want, rule.Category)
		}
	}

	return res
}

// Report renders a human-readable validation summary.
func (r *Result) Report() string {
	var b strings.Builder
	if r.OK() {
		b.WriteString("catalog OK\n")
	} else {
		fmt.Fprintf(&b, "catalog has %d error(s)\n", len(r.Errors))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  ERROR: %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  WARN:  %s\n", w)
	}
	return b.String()
}

// CountByCategory tallies rules per category, for the validation summary.
func CountByCategory(rules []Rule) map[string]int {
	counts := make(map[string]int)
	for _, rule := range rules {
		counts[rule.Category]++
	}
	return counts
}

// SortedCategories returns the categories present in counts in stable order.
func SortedCategories(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
