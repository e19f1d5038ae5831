package conformance

import (
	"regexp"

	"github.com/c360studio/ruleconform/rule"
)

var ruleIDRe = regexp.MustCompile(`^[A-Z_][A-Z0-9_]+$`)

// IDValidator checks rule-ID uniqueness and format. One validator is shared
// by every language of a run, so collisions across languages are caught.
//
// Several instances of the same implementation may share an ID (per-language
// variants of one rule family); distinct implementations may not.
type IDValidator struct {
	implByID map[string]string
	impls    map[string]struct{}
}

// NewIDValidator returns a validator with empty tables.
func NewIDValidator() *IDValidator {
	return &IDValidator{
		implByID: make(map[string]string),
		impls:    make(map[string]struct{}),
	}
}

// Validate checks one rule and records it. It returns a *DuplicateIDError or
// *InvalidIDFormatError on the first violation.
func (v *IDValidator) Validate(lang rule.Language, r rule.Rule) error {
	if err := v.checkUnique(lang, r); err != nil {
		return err
	}
	if !ValidID(r.ID) {
		return &InvalidIDFormatError{ID: r.ID, Language: lang.String()}
	}
	return nil
}

// ValidateAll checks rules in order and stops at the first violation.
func (v *IDValidator) ValidateAll(lang rule.Language, rules []rule.Rule) error {
	for _, r := range rules {
		if err := v.Validate(lang, r); err != nil {
			return err
		}
	}
	return nil
}

func (v *IDValidator) checkUnique(lang rule.Language, r rule.Rule) error {
	other, seen := v.implByID[r.ID]
	_, knownImpl := v.impls[r.Impl]
	if seen && !knownImpl {
		return &DuplicateIDError{ID: r.ID, Impl: r.Impl, OtherImpl: other, Language: lang.String()}
	}
	v.implByID[r.ID] = r.Impl
	v.impls[r.Impl] = struct{}{}
	return nil
}

// ValidID reports whether id is a well-formed rule identifier.
func ValidID(id string) bool {
	return ruleIDRe.MatchString(id)
}
