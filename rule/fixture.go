package rule

// Fixture pairs a fixed input text with the ordered rule IDs it is expected
// to trigger under a language's default rule selection.
type Fixture struct {
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Language    string   `json:"language" yaml:"language"`
	Text        string   `json:"text" yaml:"text"`
	ExpectedIDs []string `json:"expected_ids" yaml:"expected_ids"`
}
