package catalogue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/rule"
)

// ruleFile is the YAML layout of a declarative rule file.
//
//	rules:
//	  - id: DE_DAS_HAUS
//	    message: Meinten Sie <suggestion>dem Haus</suggestion>?
//	    pattern: '\bvon das Haus\b'
//	    correct: ["Ich komme von dem Haus."]
//	    incorrect:
//	      - text: "Ich komme <marker>von das Haus</marker>."
//	        corrections: [von dem Haus]
//	  - id: EN_GROUP
//	    group:
//	      - pattern: ...
//	        message: ...
//
// A plain entry gets sub ID 1; group members are numbered from 1 in order.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	ID            string           `yaml:"id"`
	Message       string           `yaml:"message"`
	Pattern       string           `yaml:"pattern"`
	CaseSensitive bool             `yaml:"case_sensitive"`
	DefaultOff    bool             `yaml:"default_off"`
	Correct       []string         `yaml:"correct"`
	Incorrect     []incorrectEntry `yaml:"incorrect"`
	Group         []ruleEntry      `yaml:"group"`
}

type incorrectEntry struct {
	Text        string   `yaml:"text"`
	Corrections []string `yaml:"corrections"`
}

// patternRule is a declarative rule with its compiled pattern.
type patternRule struct {
	rule.Rule
	re *regexp.Regexp
}

func (p patternRule) match(text string) []rule.Match {
	var out []rule.Match
	for _, loc := range p.re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		out = append(out, rule.Match{RuleID: p.ID, Message: p.Message, FromPos: loc[0], ToPos: loc[1]})
	}
	return out
}

// Loader parses YAML declarative rule files.
type Loader struct{}

var _ engine.DeclarativeLoader = Loader{}

// LoadDeclarative implements engine.DeclarativeLoader.
func (l Loader) LoadDeclarative(r io.Reader, basePath string) ([]rule.Rule, error) {
	patterns, err := l.loadPatterns(r, basePath)
	if err != nil {
		return nil, err
	}
	out := make([]rule.Rule, len(patterns))
	for i, p := range patterns {
		out[i] = p.Rule
	}
	return out, nil
}

func (Loader) loadPatterns(r io.Reader, basePath string) ([]patternRule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", basePath, err)
	}

	var doc ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", basePath, err)
	}

	var out []patternRule
	for i, entry := range doc.Rules {
		if entry.ID == "" {
			return nil, fmt.Errorf("%s: rule %d has no id", basePath, i+1)
		}

		members := entry.Group
		if len(members) == 0 {
			members = []ruleEntry{entry}
		} else if entry.Pattern != "" {
			return nil, fmt.Errorf("%s: rule %s has both a pattern and a group", basePath, entry.ID)
		}

		for n, m := range members {
			p, err := compileEntry(entry, m, n+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", basePath, err)
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// compileEntry builds one rule from a group member, inheriting unset fields
// from the group entry.
func compileEntry(group, m ruleEntry, subID int) (patternRule, error) {
	message := m.Message
	if message == "" {
		message = group.Message
	}
	fullID := fmt.Sprintf("%s[%d]", group.ID, subID)
	if m.Pattern == "" {
		return patternRule{}, fmt.Errorf("rule %s has no pattern", fullID)
	}

	expr := m.Pattern
	if !m.CaseSensitive && !group.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return patternRule{}, fmt.Errorf("rule %s: compile pattern: %w", fullID, err)
	}

	r := rule.Rule{
		ID:         group.ID,
		SubID:      subID,
		Kind:       rule.KindDeclarative,
		Impl:       rule.ImplDeclarative,
		Message:    message,
		DefaultOff: m.DefaultOff || group.DefaultOff,
	}
	for _, c := range m.Correct {
		r.Correct = append(r.Correct, rule.CorrectExample{Text: c})
	}
	for _, inc := range m.Incorrect {
		r.Incorrect = append(r.Incorrect, rule.IncorrectExample{Text: inc.Text, Corrections: inc.Corrections})
	}
	return patternRule{Rule: r, re: re}, nil
}
