// Package enginetest provides in-memory collaborators for testing code that
// drives an engine.Engine and engine.Catalogue.
//
// Usage:
//
//	eng := &enginetest.Engine{
//	    Rules: map[string][]enginetest.RuleFunc{
//	        "de": {enginetest.Contains("DOUBLE_DAS", "das das", "Doppeltes Wort.")},
//	    },
//	}
//	matches, err := eng.Check(ctx, lang, engine.Defaults(), "Das ist das das Haus.")
package enginetest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/rule"
)

// RuleFunc is a scripted rule: it reports its ID, its default state and the
// matches it produces for a text.
type RuleFunc struct {
	ID        string
	DefaultOn bool
	Match     func(text string) []rule.Match
}

// Contains returns a default-on RuleFunc matching every occurrence of needle.
func Contains(id, needle, message string) RuleFunc {
	return RuleFunc{
		ID:        id,
		DefaultOn: true,
		Match: func(text string) []rule.Match {
			var out []rule.Match
			offset := 0
			for {
				i := strings.Index(text[offset:], needle)
				if i < 0 {
					return out
				}
				from := offset + i
				out = append(out, rule.Match{RuleID: id, Message: message, FromPos: from, ToPos: from + len(needle)})
				offset = from + len(needle)
			}
		},
	}
}

// Call records one Check invocation.
type Call struct {
	Language  string
	Selection engine.Selection
	Text      string
}

// Engine is a thread-safe scripted engine.Engine.
type Engine struct {
	mu sync.Mutex

	// Rules maps language codes to scripted rules, run in order.
	Rules map[string][]RuleFunc

	// Err, when set, is returned from every Check.
	Err error

	// Delay makes every Check sleep before answering; Check ignores ctx while
	// sleeping to emulate a non-cooperative engine.
	Delay time.Duration

	calls []Call
}

var _ engine.Engine = (*Engine)(nil)

// DefaultSelection implements engine.Engine.
func (e *Engine) DefaultSelection(_ rule.Language) engine.Selection {
	return engine.Defaults()
}

// Check implements engine.Engine.
func (e *Engine) Check(_ context.Context, lang rule.Language, sel engine.Selection, text string) ([]rule.Match, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Language: lang.Code, Selection: sel, Text: text})
	rules := e.Rules[lang.Code]
	err := e.Err
	delay := e.Delay
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	var out []rule.Match
	for _, r := range rules {
		if !sel.IsEnabled(r.ID, r.DefaultOn) {
			continue
		}
		out = append(out, r.Match(text)...)
	}
	return out, nil
}

// Calls returns a copy of the recorded invocations.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallCount returns the number of Check invocations.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// Catalogue is a static engine.Catalogue.
type Catalogue struct {
	Langs []rule.Language

	// RuleSets maps language codes to the rules LoadAllRules returns.
	RuleSets map[string][]rule.Rule

	// LoadErrs maps language codes to LoadAllRules failures.
	LoadErrs map[string]error
}

var _ engine.Catalogue = (*Catalogue)(nil)

// Languages implements engine.Catalogue.
func (c *Catalogue) Languages() []rule.Language {
	return c.Langs
}

// LoadAllRules implements engine.Catalogue.
func (c *Catalogue) LoadAllRules(_ context.Context, lang rule.Language) ([]rule.Rule, error) {
	if err := c.LoadErrs[lang.Code]; err != nil {
		return nil, err
	}
	return c.RuleSets[lang.Code], nil
}

// Loader is an engine.DeclarativeLoader that treats every non-empty line of
// the input as "ID|message".
type Loader struct {
	// Err, when set, is returned for every file.
	Err error
}

var _ engine.DeclarativeLoader = (*Loader)(nil)

// LoadDeclarative implements engine.DeclarativeLoader.
func (l *Loader) LoadDeclarative(r io.Reader, basePath string) ([]rule.Rule, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", basePath, err)
	}

	var out []rule.Rule
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, msg, ok := strings.Cut(line, "|")
		if !ok {
			return nil, fmt.Errorf("%s:%d: want ID|message", basePath, i+1)
		}
		out = append(out, rule.Rule{
			ID:      id,
			SubID:   1,
			Kind:    rule.KindDeclarative,
			Impl:    rule.ImplDeclarative,
			Message: msg,
		})
	}
	return out, nil
}
