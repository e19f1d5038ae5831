package conformance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/metrics"
	"github.com/c360studio/ruleconform/rule"
)

// DefaultCheckTimeout bounds a single engine check when none is configured.
const DefaultCheckTimeout = 5 * time.Second

// Runner replays each procedural rule's examples through the checking engine
// with only that rule active, and compares observed against declared
// behaviour.
type Runner struct {
	engine    engine.Engine
	overrides rule.Overrides
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckTimeout bounds every engine check. Zero or negative disables the
// bound.
func WithCheckTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithMetrics records example and failure counts.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner. overrides is consulted for the expected match
// count on incorrect examples.
func NewRunner(eng engine.Engine, overrides rule.Overrides, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:    eng,
		overrides: overrides,
		timeout:   DefaultCheckTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunLanguage tests every procedural rule in rules against lang. Declarative
// rules are ignored. It stops early only when ctx is done.
func (r *Runner) RunLanguage(ctx context.Context, lang rule.Language, rules []rule.Rule) []Failure {
	active := r.engine.DefaultSelection(lang)

	var failures []Failure
	for _, rl := range rules {
		if !rl.IsProcedural() {
			continue
		}
		if ctx.Err() != nil {
			return failures
		}
		failures = append(failures, r.RunRule(ctx, lang, active, rl)...)
	}
	return failures
}

// RunRule checks one rule: language support first, then its correct and
// incorrect examples with the rule isolated from active.
func (r *Runner) RunRule(ctx context.Context, lang rule.Language, active engine.Selection, rl rule.Rule) []Failure {
	r.metrics.RuleTested(lang.Code)

	if !rl.SupportsLanguage(lang.Code) {
		return r.record(Failure{
			Kind:     FailureUnsupportedLanguage,
			Language: lang.Code,
			RuleID:   rl.ID,
			Message: fmt.Sprintf("rule %s is active for %s but does not report support for it (supports %v)",
				rl.ID, lang, rl.Languages),
		})
	}

	sel := active.Isolate(rl.ID)
	r.logger.Debug("Testing rule examples", "language", lang.Code, "rule", rl.ID,
		"correct", len(rl.Correct), "incorrect", len(rl.Incorrect))

	var failures []Failure
	for _, ex := range rl.Correct {
		input := rule.StripMarkers(ex.Text)
		matches, failure, ok := r.checkExample(ctx, lang, sel, rl.ID, input, "correct")
		if !ok {
			failures = append(failures, failure)
			if ctx.Err() != nil {
				return failures
			}
			continue
		}
		if len(matches) != 0 {
			failures = append(failures, r.record(Failure{
				Kind:     FailureFalsePositive,
				Language: lang.Code,
				RuleID:   rl.ID,
				Text:     input,
				Actual:   matches,
				Message:  "got unexpected rule match for correct example sentence",
			})...)
		}
	}

	want := r.overrides.Expected(rl.ID)
	for _, ex := range rl.Incorrect {
		input := rule.StripMarkers(ex.Text)
		matches, failure, ok := r.checkExample(ctx, lang, sel, rl.ID, input, "incorrect")
		if !ok {
			failures = append(failures, failure)
			if ctx.Err() != nil {
				return failures
			}
			continue
		}
		if len(matches) != want {
			msg := fmt.Sprintf("did not get the expected rule match for the incorrect example sentence: want %d, got %d",
				want, len(matches))
			if from, to, ok := rule.MarkedSpan(ex.Text); ok {
				msg += fmt.Sprintf(" (marked span %d-%d)", from, to)
			}
			expected := want
			failures = append(failures, r.record(Failure{
				Kind:     FailureMatchCount,
				Language: lang.Code,
				RuleID:   rl.ID,
				Text:     input,
				Expected: &expected,
				Actual:   matches,
				Message:  msg,
			})...)
		}
	}
	return failures
}

// checkExample runs one bounded check. On failure it returns the failure to
// record and ok=false.
func (r *Runner) checkExample(ctx context.Context, lang rule.Language, sel engine.Selection, ruleID, input, kind string) ([]rule.Match, Failure, bool) {
	start := time.Now()
	matches, err := boundedCheck(ctx, r.engine, r.timeout, lang, sel, input)
	r.metrics.ObserveExample(lang.Code, kind, time.Since(start))
	if err == nil {
		return matches, Failure{}, true
	}

	f := checkFailure(ctx, lang, ruleID, input, r.timeout, err)
	r.record(f)
	return nil, f, false
}

func (r *Runner) record(f Failure) []Failure {
	r.metrics.Failure(f.Language, string(f.Kind))
	return []Failure{f}
}

// boundedCheck calls eng.Check and gives up after timeout even when the
// engine ignores its context.
func boundedCheck(ctx context.Context, eng engine.Engine, timeout time.Duration, lang rule.Language, sel engine.Selection, text string) ([]rule.Match, error) {
	if timeout <= 0 {
		return eng.Check(ctx, lang, sel, text)
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		matches []rule.Match
		err     error
	}
	done := make(chan result, 1)
	go func() {
		m, err := eng.Check(checkCtx, lang, sel, text)
		done <- result{m, err}
	}()

	select {
	case res := <-done:
		return res.matches, res.err
	case <-checkCtx.Done():
		return nil, checkCtx.Err()
	}
}

// checkFailure classifies a check error. A deadline hit by the per-check
// bound is a timeout; anything else, including cancellation of the run,
// is a check error.
func checkFailure(ctx context.Context, lang rule.Language, ruleID, text string, timeout time.Duration, err error) Failure {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Failure{
			Kind:     FailureCheckTimeout,
			Language: lang.Code,
			RuleID:   ruleID,
			Text:     text,
			Message:  fmt.Sprintf("check did not finish within %s", timeout),
		}
	}
	return Failure{
		Kind:     FailureCheckError,
		Language: lang.Code,
		RuleID:   ruleID,
		Text:     text,
		Message:  fmt.Sprintf("check failed: %v", err),
	}
}
