package conformance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/metrics"
	"github.com/c360studio/ruleconform/rule"
)

// Comparator checks fixed texts under each language's default rule selection
// and compares the ordered rule IDs against a golden list.
type Comparator struct {
	engine  engine.Engine
	langs   map[string]rule.Language
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// ComparatorOption configures a Comparator.
type ComparatorOption func(*Comparator)

// WithComparatorTimeout bounds every engine check.
func WithComparatorTimeout(d time.Duration) ComparatorOption {
	return func(c *Comparator) { c.timeout = d }
}

// WithComparatorMetrics records checks and drift.
func WithComparatorMetrics(m *metrics.Metrics) ComparatorOption {
	return func(c *Comparator) { c.metrics = m }
}

// WithComparatorLogger sets the logger.
func WithComparatorLogger(logger *slog.Logger) ComparatorOption {
	return func(c *Comparator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewComparator creates a Comparator for the given languages.
func NewComparator(eng engine.Engine, langs []rule.Language, opts ...ComparatorOption) *Comparator {
	c := &Comparator{
		engine:  eng,
		langs:   make(map[string]rule.Language, len(langs)),
		timeout: DefaultCheckTimeout,
		logger:  slog.Default(),
	}
	for _, l := range langs {
		c.langs[l.Code] = l
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare checks one fixture. It returns nil when the observed rule IDs equal
// the expected ones in length and order.
func (c *Comparator) Compare(ctx context.Context, fx rule.Fixture) *Failure {
	lang, ok := c.langs[fx.Language]
	if !ok {
		return c.fail(Failure{
			Kind:        FailureCheckError,
			Language:    fx.Language,
			Text:        fx.Text,
			ExpectedIDs: fx.ExpectedIDs,
			Message:     fmt.Sprintf("unknown language %q in regression fixture %s", fx.Language, fx.Name),
		})
	}

	start := time.Now()
	matches, err := boundedCheck(ctx, c.engine, c.timeout, lang, c.engine.DefaultSelection(lang), fx.Text)
	c.metrics.ObserveExample(lang.Code, "regression", time.Since(start))
	if err != nil {
		f := checkFailure(ctx, lang, "", fx.Text, c.timeout, err)
		f.ExpectedIDs = fx.ExpectedIDs
		return c.fail(f)
	}

	actual := rule.IDs(matches)
	if slices.Equal(fx.ExpectedIDs, actual) {
		return nil
	}

	c.logger.Debug("Regression drift", "language", lang.Code, "text", fx.Text,
		"expected", fx.ExpectedIDs, "actual", actual)
	return c.fail(Failure{
		Kind:        FailureRegressionDrift,
		Language:    lang.Code,
		Text:        fx.Text,
		ExpectedIDs: nonNil(fx.ExpectedIDs),
		ActualIDs:   nonNil(actual),
		Actual:      matches,
		Message:     fmt.Sprintf("demo text matches for %s have changed", lang),
	})
}

// CompareAll checks fixtures in order and returns every drift.
func (c *Comparator) CompareAll(ctx context.Context, fixtures []rule.Fixture) []Failure {
	var failures []Failure
	for _, fx := range fixtures {
		if ctx.Err() != nil {
			break
		}
		if f := c.Compare(ctx, fx); f != nil {
			failures = append(failures, *f)
		}
	}
	return failures
}

func (c *Comparator) fail(f Failure) *Failure {
	c.metrics.Failure(f.Language, string(f.Kind))
	return &f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
