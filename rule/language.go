package rule

// Language identifies a supported natural language.
type Language struct {
	// Code is the short language code, e.g. "de".
	Code string `json:"code" yaml:"code"`
	// Name is the display name, e.g. "German".
	Name string `json:"name" yaml:"name"`
	// RuleFiles lists declarative rule-definition file names relative to the
	// language's rule directory.
	RuleFiles []string `json:"rule_files" yaml:"rule_files"`
	// Maintained languages are subject to message style scans.
	Maintained bool `json:"maintained" yaml:"maintained"`
}

// String returns the display name.
func (l Language) String() string {
	if l.Name == "" {
		return l.Code
	}
	return l.Name
}
