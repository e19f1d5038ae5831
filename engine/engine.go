// Package engine declares the collaborators the conformance core consumes:
// the rule catalogue, the declarative rule loader and the checking engine.
// Implementations live elsewhere; the core depends only on these interfaces.
package engine

import (
	"context"
	"io"

	"github.com/c360studio/ruleconform/rule"
)

// Catalogue enumerates supported languages and loads their rule sets.
type Catalogue interface {
	// Languages returns every loadable language in a stable order.
	Languages() []rule.Language

	// LoadAllRules returns both procedural and declarative rules for lang.
	LoadAllRules(ctx context.Context, lang rule.Language) ([]rule.Rule, error)
}

// DeclarativeLoader parses one declarative rule-definition file.
type DeclarativeLoader interface {
	// LoadDeclarative parses the rules in r. basePath names the file for
	// diagnostics.
	LoadDeclarative(r io.Reader, basePath string) ([]rule.Rule, error)
}

// Engine checks text against the rules of a language.
//
// The active rule set is passed explicitly on every call, so an Engine holds
// no per-caller selection state.
type Engine interface {
	// DefaultSelection returns the rule selection a fresh checker would use.
	DefaultSelection(lang rule.Language) Selection

	// Check returns matches for text in document order.
	Check(ctx context.Context, lang rule.Language, sel Selection, text string) ([]rule.Match, error)
}

// Factory hands out an Engine per worker. Implementations whose Engine is
// safe for concurrent use may return the same instance every time.
type Factory func() (Engine, error)

// Shared returns a Factory that always yields e.
func Shared(e Engine) Factory {
	return func() (Engine, error) { return e, nil }
}
