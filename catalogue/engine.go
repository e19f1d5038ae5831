package catalogue

import (
	"context"
	"slices"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/rule"
)

// Engine checks text with the rules of a Catalogue. It is safe for
// concurrent use.
type Engine struct {
	catalogue *Catalogue
}

var _ engine.Engine = (*Engine)(nil)

// NewEngine returns an engine backed by c.
func NewEngine(c *Catalogue) *Engine {
	return &Engine{catalogue: c}
}

// DefaultSelection implements engine.Engine. Every rule follows its own
// default state.
func (e *Engine) DefaultSelection(_ rule.Language) engine.Selection {
	return engine.Defaults()
}

// Check implements engine.Engine. Matches are ordered by start offset; ties
// keep rule order.
func (e *Engine) Check(ctx context.Context, lang rule.Language, sel engine.Selection, text string) ([]rule.Match, error) {
	set, err := e.catalogue.ruleSet(ctx, lang)
	if err != nil {
		return nil, err
	}

	var out []rule.Match
	for _, p := range set.procedural {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta := p.Describe()
		if !sel.IsEnabled(meta.ID, !meta.DefaultOff) {
			continue
		}
		out = append(out, p.Match(text)...)
	}
	for _, p := range set.patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !sel.IsEnabled(p.ID, !p.DefaultOff) {
			continue
		}
		out = append(out, p.match(text)...)
	}

	slices.SortStableFunc(out, func(a, b rule.Match) int {
		return a.FromPos - b.FromPos
	})
	return out, nil
}
