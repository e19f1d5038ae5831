package conformance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/metrics"
	"github.com/c360studio/ruleconform/rule"
)

// Run outcomes recorded in metrics.
const (
	OutcomePass  = "pass"
	OutcomeFail  = "fail"
	OutcomeFatal = "fatal"
)

// Suite runs the full conformance check over every language of a catalogue.
type Suite struct {
	catalogue engine.Catalogue
	engines   engine.Factory
	scanner   *QuoteScanner
	overrides rule.Overrides
	workers   int
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithWorkers sets how many languages are checked concurrently. Values below
// one mean sequential.
func WithWorkers(n int) SuiteOption {
	return func(s *Suite) { s.workers = n }
}

// WithQuoteScanner enables the quote scan of declarative rule files.
func WithQuoteScanner(scanner *QuoteScanner) SuiteOption {
	return func(s *Suite) { s.scanner = scanner }
}

// WithOverrides sets the expected-match-count table.
func WithOverrides(o rule.Overrides) SuiteOption {
	return func(s *Suite) { s.overrides = o }
}

// WithSuiteTimeout bounds every engine check.
func WithSuiteTimeout(d time.Duration) SuiteOption {
	return func(s *Suite) { s.timeout = d }
}

// WithSuiteMetrics records run metrics.
func WithSuiteMetrics(m *metrics.Metrics) SuiteOption {
	return func(s *Suite) { s.metrics = m }
}

// WithSuiteLogger sets the logger.
func WithSuiteLogger(logger *slog.Logger) SuiteOption {
	return func(s *Suite) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSuite creates a Suite. engines hands out the engine each worker uses.
func NewSuite(cat engine.Catalogue, engines engine.Factory, opts ...SuiteOption) *Suite {
	s := &Suite{
		catalogue: cat,
		engines:   engines,
		overrides: rule.NewOverrides(nil),
		workers:   1,
		timeout:   DefaultCheckTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

type languageRules struct {
	lang  rule.Language
	rules []rule.Rule

	// loadFailed languages skip example replay but are still scanned.
	loadFailed bool
}

// Run loads and validates every language's rules, then replays examples and
// scans rule files. A fatal error stops the run: it is recorded in the
// returned report and also returned. Recoverable failures only populate the
// report.
func (s *Suite) Run(ctx context.Context) (*Report, error) {
	report := NewReport()
	start := time.Now()

	loaded, err := s.loadAndValidate(ctx, report)
	if err != nil {
		report.Fatal(err)
		s.finish(report, start)
		return report, err
	}

	results := make([][]Failure, len(loaded))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, lr := range loaded {
		g.Go(func() error {
			failures, err := s.checkLanguage(gctx, lr)
			if err != nil {
				return err
			}
			results[i] = failures
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Fatal(err)
		s.finish(report, start)
		return report, err
	}
	if err := ctx.Err(); err != nil {
		report.Fatal(err)
		s.finish(report, start)
		return report, err
	}

	for _, failures := range results {
		report.Add(failures...)
	}
	s.finish(report, start)
	return report, nil
}

// loadAndValidate loads each language in registry order and validates the
// IDs of its procedural rules against one table shared by all languages.
// Load failures are recoverable; ID violations are fatal. A language whose
// rules failed to load is kept so its rule files are still scanned.
func (s *Suite) loadAndValidate(ctx context.Context, report *Report) ([]languageRules, error) {
	validator := NewIDValidator()

	var loaded []languageRules
	for _, lang := range s.catalogue.Languages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rules, err := s.catalogue.LoadAllRules(ctx, lang)
		if err != nil {
			if IsFatal(err) {
				return nil, err
			}
			s.logger.Warn("Failed to load rules", "language", lang.Code, "error", err)
			report.Add(Failure{
				Kind:     FailureRuleLoad,
				Language: lang.Code,
				Message:  fmt.Sprintf("load rules for %s: %v", lang, err),
			})
			s.metrics.Failure(lang.Code, string(FailureRuleLoad))
			loaded = append(loaded, languageRules{lang: lang, loadFailed: true})
			continue
		}

		procedural := rule.Procedural(rules)
		if err := validator.ValidateAll(lang, procedural); err != nil {
			return nil, err
		}

		s.logger.Debug("Loaded rules", "language", lang.Code,
			"total", len(rules), "procedural", len(procedural))
		loaded = append(loaded, languageRules{lang: lang, rules: procedural})
	}
	return loaded, nil
}

func (s *Suite) checkLanguage(ctx context.Context, lr languageRules) ([]Failure, error) {
	var failures []Failure
	if !lr.loadFailed {
		eng, err := s.engines()
		if err != nil {
			return nil, fmt.Errorf("create engine for %s: %w", lr.lang.Code, err)
		}

		runner := NewRunner(eng, s.overrides,
			WithCheckTimeout(s.timeout),
			WithMetrics(s.metrics),
			WithRunnerLogger(s.logger),
		)
		failures = runner.RunLanguage(ctx, lr.lang, lr.rules)
	}

	if s.scanner != nil {
		for _, f := range s.scanner.Scan(lr.lang) {
			s.metrics.Failure(f.Language, string(f.Kind))
			failures = append(failures, f)
		}
	}

	s.logger.Info("Checked language", "language", lr.lang.Code,
		"rules", len(lr.rules), "failures", len(failures))
	return failures, nil
}

func (s *Suite) finish(report *Report, start time.Time) {
	outcome := OutcomePass
	switch {
	case len(report.FatalErrors) > 0:
		outcome = OutcomeFatal
	case len(report.Failures) > 0:
		outcome = OutcomeFail
	}
	s.metrics.RunFinished(outcome)
	s.logger.Info("Conformance run finished", "outcome", outcome,
		"failures", len(report.Failures), "fatal", len(report.FatalErrors),
		"duration", time.Since(start))
}
