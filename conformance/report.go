package conformance

import (
	"fmt"
	"io"
	"strings"

	"github.com/c360studio/ruleconform/rule"
)

// FailureKind classifies a recoverable conformance failure.
type FailureKind string

// Failure kinds. The string values appear in reports and metrics labels.
const (
	FailureFalsePositive         FailureKind = "false_positive"
	FailureMatchCount            FailureKind = "match_count"
	FailureQuoteAroundSuggestion FailureKind = "quote_around_suggestion"
	FailureUnsupportedLanguage   FailureKind = "unsupported_language"
	FailureRegressionDrift       FailureKind = "regression_drift"
	FailureCheckTimeout          FailureKind = "check_timeout"
	FailureCheckError            FailureKind = "check_error"
	FailureRuleFile              FailureKind = "rule_file_error"
	FailureRuleLoad              FailureKind = "rule_load_error"
)

// Failure is one recoverable conformance violation.
type Failure struct {
	Kind     FailureKind `json:"kind"`
	Language string      `json:"language"`
	RuleID   string      `json:"rule_id,omitempty"`

	// Text is the example sentence (markers stripped) or fixture text.
	Text string `json:"text,omitempty"`

	// Expected is the expected match count; set only for match_count
	// failures, where zero is a valid expectation.
	Expected *int         `json:"expected,omitempty"`
	Actual   []rule.Match `json:"actual,omitempty"`

	ExpectedIDs []string `json:"expected_ids,omitempty"`
	ActualIDs   []string `json:"actual_ids,omitempty"`

	// File names the rule-definition file for file-level failures.
	File string `json:"file,omitempty"`

	Message string `json:"message"`
}

// Report aggregates the outcome of a conformance run.
type Report struct {
	FatalErrors []string  `json:"fatal_errors"`
	Failures    []Failure `json:"failures"`
}

// NewReport returns an empty report whose slices marshal as [] rather than null.
func NewReport() *Report {
	return &Report{FatalErrors: []string{}, Failures: []Failure{}}
}

// OK reports whether the run found nothing to fix.
func (r *Report) OK() bool {
	return len(r.FatalErrors) == 0 && len(r.Failures) == 0
}

// Add appends failures in order.
func (r *Report) Add(fs ...Failure) {
	r.Failures = append(r.Failures, fs...)
}

// Fatal records a fatal error.
func (r *Report) Fatal(err error) {
	r.FatalErrors = append(r.FatalErrors, err.Error())
}

// Group collects the failures of one rule within one language.
type Group struct {
	Language string
	RuleID   string
	Failures []Failure
}

// Groups returns failures keyed by language and rule ID, in first-seen order.
func (r *Report) Groups() []Group {
	type key struct{ lang, id string }
	index := make(map[key]int)
	var groups []Group
	for _, f := range r.Failures {
		k := key{f.Language, f.RuleID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Language: f.Language, RuleID: f.RuleID})
		}
		groups[i].Failures = append(groups[i].Failures, f)
	}
	return groups
}

// Format writes a human-readable rendering of the report.
func (r *Report) Format(w io.Writer) error {
	var sb strings.Builder
	if r.OK() {
		sb.WriteString("all clear: no conformance failures\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	for _, fatal := range r.FatalErrors {
		fmt.Fprintf(&sb, "FATAL: %s\n", fatal)
	}

	for _, g := range r.Groups() {
		ruleID := g.RuleID
		if ruleID == "" {
			ruleID = "-"
		}
		fmt.Fprintf(&sb, "\n[%s] %s (%d)\n", g.Language, ruleID, len(g.Failures))
		for i, f := range g.Failures {
			fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, f.Kind, f.Message)
			if f.File != "" {
				fmt.Fprintf(&sb, "     File: %s\n", f.File)
			}
			if f.Text != "" {
				fmt.Fprintf(&sb, "     Text: %s\n", f.Text)
			}
			switch {
			case f.Expected != nil:
				fmt.Fprintf(&sb, "     Expected matches: %d, got %d\n", *f.Expected, len(f.Actual))
			case f.Kind == FailureRegressionDrift:
				fmt.Fprintf(&sb, "     Expected rule matches: %v\n", f.ExpectedIDs)
				fmt.Fprintf(&sb, "     Actual rule matches:   %v\n", f.ActualIDs)
			}
			for _, m := range f.Actual {
				fmt.Fprintf(&sb, "     Match: %s\n", m)
			}
		}
	}

	fmt.Fprintf(&sb, "\n%d failure(s), %d fatal error(s)\n", len(r.Failures), len(r.FatalErrors))
	_, err := io.WriteString(w, sb.String())
	return err
}
