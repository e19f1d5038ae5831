package rule

import "fmt"

// Match is a single rule hit produced by a checking engine.
type Match struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
	FromPos int    `json:"from"`
	ToPos   int    `json:"to"`
}

// String renders the match the way failure reports print it.
func (m Match) String() string {
	return fmt.Sprintf("%s@%d-%d: %s", m.RuleID, m.FromPos, m.ToPos, m.Message)
}

// IDs extracts rule IDs from matches, keeping order and duplicates.
func IDs(matches []Match) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.RuleID)
	}
	return ids
}
