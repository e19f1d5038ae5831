package catalogue

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/ruleconform/rule"
)

// LanguagesFile is the name of the language registry at the root of a rule
// directory.
const LanguagesFile = "languages.yaml"

// ErrUnknownLanguage is returned when a language code is not registered.
var ErrUnknownLanguage = errors.New("unknown language")

// Registry is an ordered set of languages.
type Registry struct {
	langs  []rule.Language
	byCode map[string]int
}

// NewRegistry validates and registers langs in the given order. Codes must be
// bare ISO 639 base tags and unique.
func NewRegistry(langs ...rule.Language) (*Registry, error) {
	r := &Registry{byCode: make(map[string]int, len(langs))}
	for _, l := range langs {
		if err := validateCode(l.Code); err != nil {
			return nil, err
		}
		if _, dup := r.byCode[l.Code]; dup {
			return nil, fmt.Errorf("language %q registered twice", l.Code)
		}
		l.RuleFiles = append([]string(nil), l.RuleFiles...)
		r.byCode[l.Code] = len(r.langs)
		r.langs = append(r.langs, l)
	}
	return r, nil
}

// ParseRegistry reads a languages.yaml document.
//
//	languages:
//	  - code: de
//	    name: German
//	    maintained: true
//	    rule_files: [grammar.yaml]
func ParseRegistry(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", LanguagesFile, err)
	}

	var doc struct {
		Languages []rule.Language `yaml:"languages"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", LanguagesFile, err)
	}
	if len(doc.Languages) == 0 {
		return nil, fmt.Errorf("parse %s: no languages", LanguagesFile)
	}
	return NewRegistry(doc.Languages...)
}

// Languages returns the registered languages in registration order.
func (r *Registry) Languages() []rule.Language {
	out := make([]rule.Language, len(r.langs))
	copy(out, r.langs)
	return out
}

// Lookup returns the language registered under code.
func (r *Registry) Lookup(code string) (rule.Language, error) {
	i, ok := r.byCode[code]
	if !ok {
		return rule.Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return r.langs[i], nil
}

func validateCode(code string) error {
	if code == "" {
		return errors.New("language code is empty")
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return fmt.Errorf("invalid language code %q: %w", code, err)
	}
	if base.String() != code {
		return fmt.Errorf("language code %q is not canonical, use %q", code, base.String())
	}
	return nil
}
