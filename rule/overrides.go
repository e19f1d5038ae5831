package rule

import "maps"

// DefaultExpectedMatches is the match count expected on an incorrect example
// when no override exists for the rule.
const DefaultExpectedMatches = 1

// builtinOverrides lists rules designed to fire more than once on a single
// crafted example.
var builtinOverrides = map[string]int{
	"STYLE_REPEATED_WORD_RULE_DE": 2,
}

// Overrides maps rule IDs to the number of matches expected on each of their
// incorrect examples. The zero value is usable and has no entries.
type Overrides struct {
	counts map[string]int
}

// NewOverrides builds an override table from the built-in entries with extra
// layered on top. extra is copied.
func NewOverrides(extra map[string]int) Overrides {
	counts := maps.Clone(builtinOverrides)
	maps.Copy(counts, extra)
	return Overrides{counts: counts}
}

// Expected returns the expected match count for id.
func (o Overrides) Expected(id string) int {
	if n, ok := o.counts[id]; ok {
		return n
	}
	return DefaultExpectedMatches
}

// Len returns the number of overridden rules.
func (o Overrides) Len() int {
	return len(o.counts)
}
