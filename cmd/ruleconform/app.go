package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/ruleconform/catalogue"
	"github.com/c360studio/ruleconform/config"
	"github.com/c360studio/ruleconform/conformance"
	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/metrics"
	"github.com/c360studio/ruleconform/publish"
	"github.com/c360studio/ruleconform/rule"
	"github.com/c360studio/ruleconform/watch"
)

type runFlags struct {
	workers     int
	timeout     time.Duration
	json        bool
	metricsFile string
	metricsAddr string
	natsURL     string
	watch       bool
}

// env is the resolved configuration and logger of one invocation.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func setup(g *globalFlags, stderr io.Writer) (*env, error) {
	logger := newLogger(g.logLevel, stderr)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.rulesDir != "" {
		cfg.Rules.Dir = g.rulesDir
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func newLogger(logLevel string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (e *env) openCatalogue() (*catalogue.Catalogue, error) {
	if e.cfg.Rules.Dir == "" {
		return catalogue.Default(catalogue.WithLogger(e.logger))
	}
	return catalogue.OpenDir(e.cfg.Rules.Dir, catalogue.WithLogger(e.logger))
}

// applyRunFlags merges explicitly set flags over the loaded config.
func (e *env) applyRunFlags(cmd *cobra.Command, rf *runFlags) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		e.cfg.Runner.Workers = rf.workers
	}
	if flags.Changed("timeout") {
		e.cfg.Runner.CheckTimeout = rf.timeout
	}
	if flags.Changed("metrics-file") {
		e.cfg.Metrics.File = rf.metricsFile
	}
	if flags.Changed("metrics-addr") {
		e.cfg.Metrics.Addr = rf.metricsAddr
	}
	if flags.Changed("nats") {
		e.cfg.NATS.URL = rf.natsURL
	}
	return e.cfg.Validate()
}

func runSuiteCmd(cmd *cobra.Command, g *globalFlags, rf *runFlags, stdout, stderr io.Writer) error {
	e, err := setup(g, stderr)
	if err != nil {
		return err
	}
	if err := e.applyRunFlags(cmd, rf); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var pub *publish.Publisher
	if e.cfg.NATS.URL != "" {
		client, err := publish.Connect(ctx, e.cfg.NATS.URL, e.logger)
		if err != nil {
			return err
		}
		defer client.Close(context.Background())

		if err := publish.EnsureStream(ctx, client, e.cfg.NATS.Subject); err != nil {
			return err
		}
		pub = publish.NewPublisher(client, e.cfg.NATS.Subject, e.logger)
	}

	runOnce := func() (int, error) {
		return e.runOnce(ctx, m, pub, rf.json, stdout)
	}

	if !rf.watch {
		code, err := runOnce()
		if err != nil {
			return err
		}
		return exitCode(code)
	}
	return e.watchLoop(ctx, m, runOnce)
}

// runOnce opens a fresh catalogue, runs the suite, writes the report and
// exports it. It returns the exit code for the report.
func (e *env) runOnce(ctx context.Context, m *metrics.Metrics, pub *publish.Publisher, asJSON bool, stdout io.Writer) (int, error) {
	cat, err := e.openCatalogue()
	if err != nil {
		return exitFatal, err
	}

	scanner := conformance.NewQuoteScanner(cat.Files(), cat.Loader(),
		conformance.WithSkipLanguages(e.cfg.QuoteScan.SkipLanguages...),
		conformance.WithTestFileMarker(e.cfg.QuoteScan.TestFileMarker),
		conformance.WithScannerLogger(e.logger),
	)
	eng := catalogue.NewEngine(cat)
	suite := conformance.NewSuite(cat, engine.Shared(eng),
		conformance.WithWorkers(e.cfg.Runner.Workers),
		conformance.WithSuiteTimeout(e.cfg.Runner.CheckTimeout),
		conformance.WithOverrides(rule.NewOverrides(e.cfg.Runner.Overrides)),
		conformance.WithQuoteScanner(scanner),
		conformance.WithSuiteMetrics(m),
		conformance.WithSuiteLogger(e.logger),
	)

	report, runErr := suite.Run(ctx)
	if runErr != nil && !conformance.IsFatal(runErr) && len(report.FatalErrors) == 0 {
		return exitFatal, runErr
	}

	if err := writeReport(stdout, report, asJSON); err != nil {
		return exitFatal, err
	}
	if err := e.export(ctx, m, pub, report, languageCodes(cat.Languages())); err != nil {
		e.logger.Error("Failed to export report", "error", err)
	}

	switch {
	case len(report.FatalErrors) > 0:
		return exitFatal, nil
	case len(report.Failures) > 0:
		return exitFailures, nil
	}
	return exitOK, nil
}

func (e *env) export(ctx context.Context, m *metrics.Metrics, pub *publish.Publisher, report *conformance.Report, langs []string) error {
	var errs []error
	if e.cfg.Metrics.File != "" {
		errs = append(errs, m.WriteTextfile(e.cfg.Metrics.File))
	}
	if pub != nil {
		if _, err := pub.Publish(ctx, report, langs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// watchLoop reruns the suite after every batch of rule file changes until
// ctx is done.
func (e *env) watchLoop(ctx context.Context, m *metrics.Metrics, runOnce func() (int, error)) error {
	if e.cfg.Rules.Dir == "" {
		return errors.New("--watch needs --rules-dir (the built-in catalogue cannot change)")
	}

	w, err := watch.New(watch.DefaultConfig(), e.cfg.Rules.Dir, e.logger)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	if e.cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: e.cfg.Metrics.Addr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Error("Metrics server failed", "addr", e.cfg.Metrics.Addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		e.logger.Info("Serving metrics", "addr", e.cfg.Metrics.Addr)
	}

	if _, err := runOnce(); err != nil {
		e.logger.Error("Conformance run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			e.logger.Info("Rule files changed, rerunning", "files", len(batch), "first", batch[0].Path)
			if dropped := w.DroppedBatches(); dropped > 0 {
				e.logger.Warn("Change batches were dropped while a run was in progress", "dropped", dropped)
			}
			if _, err := runOnce(); err != nil {
				e.logger.Error("Conformance run failed", "error", err)
			}
		}
	}
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}

func regressCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		fixtures []string
		asJSON   bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "regress",
		Short: "Compare demo texts against their expected rule matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(g, stderr)
			if err != nil {
				return err
			}
			if len(fixtures) > 0 {
				e.cfg.Regression.Fixtures = fixtures
			}
			if cmd.Flags().Changed("timeout") {
				e.cfg.Runner.CheckTimeout = timeout
			}

			cat, err := e.openCatalogue()
			if err != nil {
				return err
			}

			var fxs []rule.Fixture
			if len(e.cfg.Regression.Fixtures) > 0 {
				fxs, err = conformance.LoadFixtures(e.cfg.Regression.Fixtures)
			} else {
				fxs, err = conformance.LoadFixturesFS(cat.Files(), catalogue.FixturesPattern)
			}
			if err != nil {
				return err
			}
			e.logger.Info("Loaded regression fixtures", "count", len(fxs))

			comparator := conformance.NewComparator(catalogue.NewEngine(cat), cat.Languages(),
				conformance.WithComparatorTimeout(e.cfg.Runner.CheckTimeout),
				conformance.WithComparatorLogger(e.logger),
			)
			report := conformance.NewReport()
			report.Add(comparator.CompareAll(cmd.Context(), fxs)...)

			if err := writeReport(stdout, report, asJSON); err != nil {
				return err
			}
			if !report.OK() {
				return exitCode(exitFailures)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&fixtures, "fixtures", nil, "Fixture file glob (repeatable, ** allowed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the report as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-check timeout")
	return cmd
}

func writeReport(w io.Writer, report *conformance.Report, asJSON bool) error {
	if !asJSON {
		return report.Format(w)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func exitCode(code int) error {
	if code == exitOK {
		return nil
	}
	return &exitError{code: code}
}

func languageCodes(langs []rule.Language) []string {
	codes := make([]string, len(langs))
	for i, l := range langs {
		codes[i] = l.Code
	}
	return codes
}
