package catalog

import (
	"strings"

	"github.com/corey/whiskeybar/internal/ports"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// substringMatcher is the substring-tier predicate. An entry qualifies if any
// needle (the raw query, its lower/upper/title-case variants, or the
// normalized query) is a substring of any localized name or distillery, raw
// or normalized. Display selection stays locale-preferred; matching does not.
type substringMatcher struct {
	needles []string
}

func newSubstringMatcher(query, normalized string) substringMatcher {
	// cases.Caser is stateful; build one per query.
	title := cases.Title(language.Und).String(query)

	candidates := []string{query, strings.ToLower(query), strings.ToUpper(query), title, normalized}
	needles := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, n := range candidates {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		needles = append(needles, n)
	}
	return substringMatcher{needles: needles}
}

func (m substringMatcher) matches(e *ports.WhiskeyEntry) bool {
	for _, t := range [2]ports.LocalizedText{e.Name, e.Distillery} {
		for _, l := range ports.DisplayLocales {
			raw := t.Get(l)
			if raw == "" {
				continue
			}
			if m.contains(raw) || m.contains(Normalize(raw)) {
				return true
			}
		}
	}
	return m.contains(e.NormalizedName) || m.contains(e.NormalizedDistillery)
}

func (m substringMatcher) contains(field string) bool {
	if field == "" {
		return false
	}
	for _, n := range m.needles {
		if strings.Contains(field, n) {
			return true
		}
	}
	return false
}

// filter keeps matching entries, preserving store order.
func (m substringMatcher) filter(entries []ports.WhiskeyEntry) []ports.WhiskeyEntry {
	var out []ports.WhiskeyEntry
	for i := range entries {
		if m.matches(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}
