// Package rule defines the data model shared by the conformance core and the
// collaborators it drives: languages, rules, examples, matches and the
// expected-match override table.
package rule

import (
	"fmt"
	"slices"
)

// Kind distinguishes how a rule's matching logic is authored.
type Kind string

const (
	// KindProcedural marks a rule implemented directly in code.
	KindProcedural Kind = "procedural"
	// KindDeclarative marks a rule authored in a declarative rule file.
	KindDeclarative Kind = "declarative"
)

// ImplDeclarative is the implementation name shared by all declarative rules.
const ImplDeclarative = "declarative"

// Rule is a checkable unit of grammar or style validation.
type Rule struct {
	// ID is the rule identifier, e.g. "MULTIPLE_WHITESPACE".
	ID string `json:"id" yaml:"id"`

	// SubID numbers the members of a declarative rule group (1-based, 0 = none).
	SubID int `json:"sub_id,omitempty" yaml:"sub_id,omitempty"`

	Kind Kind `json:"kind" yaml:"kind"`

	// Impl is the qualified name of the implementing type. Two rules may
	// share an ID only when they share an Impl.
	Impl string `json:"impl" yaml:"impl"`

	// Languages lists the language codes the rule reports support for.
	Languages []string `json:"languages" yaml:"languages"`

	// Message is the raw message template, possibly containing
	// <suggestion>...</suggestion> spans.
	Message string `json:"message" yaml:"message"`

	Correct   []CorrectExample   `json:"correct,omitempty" yaml:"correct,omitempty"`
	Incorrect []IncorrectExample `json:"incorrect,omitempty" yaml:"incorrect,omitempty"`

	// DefaultOff rules are not part of a language's default selection.
	DefaultOff bool `json:"default_off,omitempty" yaml:"default_off,omitempty"`
}

// FullID returns the ID qualified with the sub-rule number when present.
func (r Rule) FullID() string {
	if r.SubID == 0 {
		return r.ID
	}
	return fmt.Sprintf("%s[%d]", r.ID, r.SubID)
}

// SupportsLanguage reports whether the rule declares support for code.
func (r Rule) SupportsLanguage(code string) bool {
	return slices.Contains(r.Languages, code)
}

// IsProcedural reports whether the rule is directly implemented in code.
func (r Rule) IsProcedural() bool {
	return r.Kind == KindProcedural
}

// Procedural filters rules down to the procedural variant, preserving order.
func Procedural(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsProcedural() {
			out = append(out, r)
		}
	}
	return out
}
