// Package metrics exposes Prometheus collectors for conformance runs.
//
// All methods are safe on a nil *Metrics so callers can leave metrics
// unconfigured.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ruleconform"

// Metrics holds the collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	examplesChecked *prometheus.CounterVec
	rulesTested     *prometheus.CounterVec
	failures        *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
	runs            *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		examplesChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "examples_checked_total",
			Help:      "Example sentences replayed through the checking engine.",
		}, []string{"language", "kind"}),
		rulesTested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_tested_total",
			Help:      "Procedural rules put through example conformance.",
		}, []string{"language"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Recoverable conformance failures by kind.",
		}, []string{"language", "kind"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Latency of single engine check calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"language"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed conformance runs by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.examplesChecked, m.rulesTested, m.failures, m.checkDuration, m.runs)
	return m
}

// ObserveExample records one replayed example of the given kind
// ("correct", "incorrect" or "regression").
func (m *Metrics) ObserveExample(language, kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.examplesChecked.WithLabelValues(language, kind).Inc()
	m.checkDuration.WithLabelValues(language).Observe(took.Seconds())
}

// RuleTested records one rule entering the conformance runner.
func (m *Metrics) RuleTested(language string) {
	if m == nil {
		return
	}
	m.rulesTested.WithLabelValues(language).Inc()
}

// Failure records one recoverable failure.
func (m *Metrics) Failure(language, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(language, kind).Inc()
}

// RunFinished records a run outcome ("pass", "fail" or "fatal").
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the current values in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
