package rule

import "strings"

const (
	markerOpen  = "<marker>"
	markerClose = "</marker>"
)

// CorrectExample is a sentence the owning rule must not match.
type CorrectExample struct {
	Text string `json:"text" yaml:"text"`
}

// IncorrectExample is a sentence the owning rule must match. The expected
// match region is annotated with <marker>...</marker>.
type IncorrectExample struct {
	Text        string   `json:"text" yaml:"text"`
	Corrections []string `json:"corrections,omitempty" yaml:"corrections,omitempty"`
}

// StripMarkers removes the literal marker tags from an example sentence.
func StripMarkers(example string) string {
	return strings.ReplaceAll(strings.ReplaceAll(example, markerOpen, ""), markerClose, "")
}

// MarkedSpan returns the byte offsets of the marked region in the stripped
// text. ok is false when the example carries no complete marker.
func MarkedSpan(example string) (from, to int, ok bool) {
	start := strings.Index(example, markerOpen)
	if start < 0 {
		return 0, 0, false
	}
	rest := example[start+len(markerOpen):]
	end := strings.Index(rest, markerClose)
	if end < 0 {
		return 0, 0, false
	}
	return start, start + end, true
}
