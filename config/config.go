// Package config provides configuration loading and management for ruleconform.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ruleconform configuration
type Config struct {
	Rules      RulesConfig      `yaml:"rules"`
	Runner     RunnerConfig     `yaml:"runner"`
	QuoteScan  QuoteScanConfig  `yaml:"quote_scan"`
	Regression RegressionConfig `yaml:"regression"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	NATS       NATSConfig       `yaml:"nats"`
}

// RulesConfig selects the rule catalogue
type RulesConfig struct {
	// Dir is a rule directory on disk (empty = built-in catalogue)
	Dir string `yaml:"dir"`
}

// RunnerConfig configures the example conformance runner
type RunnerConfig struct {
	// Workers is the number of languages checked concurrently (default: 1)
	Workers int `yaml:"workers"`
	// CheckTimeout bounds a single engine check (default: 5s)
	CheckTimeout time.Duration `yaml:"check_timeout"`
	// Overrides maps rule IDs to the match count their incorrect examples
	// must produce, on top of the built-in table
	Overrides map[string]int `yaml:"overrides,omitempty"`
}

// QuoteScanConfig configures the quote-pattern scanner
type QuoteScanConfig struct {
	// SkipLanguages are language codes whose rule files are not scanned
	SkipLanguages []string `yaml:"skip_languages,omitempty"`
	// TestFileMarker marks test-only rule files (default: "-test-")
	TestFileMarker string `yaml:"test_file_marker"`
}

// RegressionConfig configures the regression set comparator
type RegressionConfig struct {
	// Fixtures are glob patterns (** allowed) of fixture files. The
	// catalogue's own fixtures are used when empty.
	Fixtures []string `yaml:"fixtures,omitempty"`
}

// MetricsConfig configures Prometheus export
type MetricsConfig struct {
	// File is a node_exporter textfile written after each run (empty = off)
	File string `yaml:"file"`
	// Addr serves /metrics while watching (empty = off)
	Addr string `yaml:"addr"`
}

// NATSConfig configures report publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = do not publish)
	URL string `yaml:"url"`
	// Subject is the stream subject reports are published to
	Subject string `yaml:"subject"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			Dir: "", // Built-in
		},
		Runner: RunnerConfig{
			Workers:      1,
			CheckTimeout: 5 * time.Second,
		},
		QuoteScan: QuoteScanConfig{
			SkipLanguages:  []string{"fa", "zh"},
			TestFileMarker: "-test-",
		},
		NATS: NATSConfig{
			URL:     "",
			Subject: "ruleconform.report",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Runner.Workers < 1 {
		return fmt.Errorf("runner.workers must be at least 1")
	}
	if c.Runner.CheckTimeout <= 0 {
		return fmt.Errorf("runner.check_timeout must be positive")
	}
	for id, n := range c.Runner.Overrides {
		if n < 0 {
			return fmt.Errorf("runner.overrides[%s] must not be negative", id)
		}
	}
	if c.QuoteScan.TestFileMarker == "" {
		return fmt.Errorf("quote_scan.test_file_marker is required")
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats.url is set")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Rules
	if other.Rules.Dir != "" {
		c.Rules.Dir = other.Rules.Dir
	}

	// Runner
	if other.Runner.Workers != 0 {
		c.Runner.Workers = other.Runner.Workers
	}
	if other.Runner.CheckTimeout != 0 {
		c.Runner.CheckTimeout = other.Runner.CheckTimeout
	}
	if len(other.Runner.Overrides) > 0 {
		if c.Runner.Overrides == nil {
			c.Runner.Overrides = make(map[string]int, len(other.Runner.Overrides))
		}
		for id, n := range other.Runner.Overrides {
			c.Runner.Overrides[id] = n
		}
	}

	// Quote scan
	if other.QuoteScan.SkipLanguages != nil {
		c.QuoteScan.SkipLanguages = other.QuoteScan.SkipLanguages
	}
	if other.QuoteScan.TestFileMarker != "" {
		c.QuoteScan.TestFileMarker = other.QuoteScan.TestFileMarker
	}

	// Regression
	if len(other.Regression.Fixtures) > 0 {
		c.Regression.Fixtures = other.Regression.Fixtures
	}

	// Metrics
	if other.Metrics.File != "" {
		c.Metrics.File = other.Metrics.File
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
}
