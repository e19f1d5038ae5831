package conformance

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/rule"
)

// quoteChars are the quote characters that must not wrap a suggestion span.
const quoteChars = `'"«»“”’`

var (
	quoteBeforeSuggestionRe = regexp.MustCompile(`[` + quoteChars + `]<suggestion`)
	quoteAfterSuggestionRe  = regexp.MustCompile(`</suggestion>[` + quoteChars + `]`)
)

// DefaultTestFileMarker marks rule-definition files that only hold test
// fixtures; the scanner skips them.
const DefaultTestFileMarker = "-test-"

// QuotedSuggestion reports whether message wraps a suggestion span in quotes.
func QuotedSuggestion(message string) bool {
	return quoteBeforeSuggestionRe.MatchString(message) && quoteAfterSuggestionRe.MatchString(message)
}

// QuoteScanner statically inspects declarative rule messages for quotes
// around <suggestion> spans. It never executes a rule.
type QuoteScanner struct {
	files          fs.FS
	loader         engine.DeclarativeLoader
	skipLanguages  []string
	testFileMarker string
	logger         *slog.Logger
}

// QuoteScannerOption configures a QuoteScanner.
type QuoteScannerOption func(*QuoteScanner)

// WithSkipLanguages excludes language codes from scanning in addition to
// languages that are not maintained.
func WithSkipLanguages(codes ...string) QuoteScannerOption {
	return func(s *QuoteScanner) { s.skipLanguages = append(s.skipLanguages, codes...) }
}

// WithTestFileMarker overrides the substring that marks test-only rule files.
func WithTestFileMarker(marker string) QuoteScannerOption {
	return func(s *QuoteScanner) {
		if marker != "" {
			s.testFileMarker = marker
		}
	}
}

// WithScannerLogger sets the logger.
func WithScannerLogger(logger *slog.Logger) QuoteScannerOption {
	return func(s *QuoteScanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewQuoteScanner reads rule files from files, where each language's files
// live under a directory named after its code.
func NewQuoteScanner(files fs.FS, loader engine.DeclarativeLoader, opts ...QuoteScannerOption) *QuoteScanner {
	s := &QuoteScanner{
		files:          files,
		loader:         loader,
		testFileMarker: DefaultTestFileMarker,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Skips reports whether lang is excluded from scanning.
func (s *QuoteScanner) Skips(lang rule.Language) bool {
	return s.skipReason(lang) != ""
}

func (s *QuoteScanner) skipReason(lang rule.Language) string {
	switch {
	case !lang.Maintained:
		return "unmaintained"
	case slices.Contains(s.skipLanguages, lang.Code):
		return "skip_list"
	}
	return ""
}

// Scan checks every non-test rule file declared by lang and returns one
// failure per offending message.
func (s *QuoteScanner) Scan(lang rule.Language) []Failure {
	if reason := s.skipReason(lang); reason != "" {
		s.logger.Info("Skipping quote scan", "language", lang.Code, "reason", reason)
		return nil
	}

	var failures []Failure
	for _, name := range lang.RuleFiles {
		if strings.Contains(name, s.testFileMarker) {
			continue
		}
		failures = append(failures, s.scanFile(lang, name)...)
	}
	return failures
}

func (s *QuoteScanner) scanFile(lang rule.Language, name string) []Failure {
	basePath := path.Join(lang.Code, name)

	f, err := s.files.Open(basePath)
	if err != nil {
		return []Failure{fileFailure(lang, basePath, fmt.Errorf("open rule file: %w", err))}
	}
	defer f.Close()

	rules, err := s.loader.LoadDeclarative(f, basePath)
	if err != nil {
		return []Failure{fileFailure(lang, basePath, fmt.Errorf("load rule file: %w", err))}
	}

	var failures []Failure
	for _, r := range rules {
		if !QuotedSuggestion(r.Message) {
			continue
		}
		failures = append(failures, Failure{
			Kind:     FailureQuoteAroundSuggestion,
			Language: lang.Code,
			RuleID:   r.FullID(),
			File:     basePath,
			Message: fmt.Sprintf("%s rule %s uses quotes around <suggestion>...</suggestion> in its <message>, this should be avoided: '%s'",
				lang, r.FullID(), r.Message),
		})
	}

	s.logger.Debug("Scanned rule file", "language", lang.Code, "file", basePath,
		"rules", len(rules), "violations", len(failures))
	return failures
}

func fileFailure(lang rule.Language, basePath string, err error) Failure {
	return Failure{
		Kind:     FailureRuleFile,
		Language: lang.Code,
		File:     basePath,
		Message:  err.Error(),
	}
}
