package conformance

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/engine/enginetest"
	"github.com/c360studio/ruleconform/metrics"
	"github.com/c360studio/ruleconform/rule"
)

var langFA = rule.Language{Code: "fa", Name: "Persian", RuleFiles: []string{"grammar.txt"}}

func suiteFixture() (*enginetest.Catalogue, *enginetest.Engine) {
	de := langDE
	de.RuleFiles = []string{"grammar.txt", "grammar-test-1.txt"}
	en := langEN
	en.RuleFiles = []string{"grammar.txt"}

	ws := func(lang string) rule.Rule {
		r := procRule("MULTIPLE_WHITESPACE", "*catalogue.WhitespaceRule", lang)
		r.Correct = []rule.CorrectExample{{Text: "One space."}}
		r.Incorrect = []rule.IncorrectExample{{Text: "Two<marker>  </marker>spaces."}}
		return r
	}
	brokenEN := procRule("EN_NOISY", "*catalogue.NoisyRule", "en")
	brokenEN.Correct = []rule.CorrectExample{{Text: "noise here"}}

	cat := &enginetest.Catalogue{
		Langs: []rule.Language{de, en, langFA},
		RuleSets: map[string][]rule.Rule{
			"de": {ws("de"), repeatedWordDE(), {ID: "DECL", Kind: rule.KindDeclarative, Impl: rule.ImplDeclarative}},
			"en": {ws("en"), brokenEN},
			"fa": {ws("fa")},
		},
	}
	eng := &enginetest.Engine{
		Rules: map[string][]enginetest.RuleFunc{
			"de": {
				enginetest.Contains("MULTIPLE_WHITESPACE", "  ", "ws"),
				enginetest.Contains("STYLE_REPEATED_WORD_RULE_DE", "das", "rep"),
			},
			"en": {
				enginetest.Contains("MULTIPLE_WHITESPACE", "  ", "ws"),
				enginetest.Contains("EN_NOISY", "noise", "noisy"),
			},
			"fa": {enginetest.Contains("MULTIPLE_WHITESPACE", "  ", "ws")},
		},
	}
	return cat, eng
}

func ruleFiles() fstest.MapFS {
	return fstest.MapFS{
		"de/grammar.txt":        {Data: []byte("DE_OK|Meinten Sie <suggestion>das</suggestion>?\nDE_QUOTED|Meinten Sie „<suggestion>das</suggestion>“?\n")},
		"de/grammar-test-1.txt": {Data: []byte("DE_TEST|'<suggestion>x</suggestion>'\n")},
		"en/grammar.txt":        {Data: []byte("EN_QUOTED|Did you mean '<suggestion>that</suggestion>'?\n")},
		"fa/grammar.txt":        {Data: []byte("FA_QUOTED|'<suggestion>x</suggestion>'\n")},
	}
}

func TestSuite_Run(t *testing.T) {
	cat, eng := suiteFixture()
	m := metrics.New()
	suite := NewSuite(cat, engine.Shared(eng),
		WithQuoteScanner(NewQuoteScanner(ruleFiles(), &enginetest.Loader{})),
		WithSuiteMetrics(m),
	)

	report, err := suite.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Empty(t, report.FatalErrors)

	var kinds []FailureKind
	var ids []string
	for _, f := range report.Failures {
		kinds = append(kinds, f.Kind)
		ids = append(ids, f.RuleID)
	}
	// „ is not in the quote set, so DE_QUOTED passes; fa is unmaintained.
	assert.Equal(t, []FailureKind{FailureFalsePositive, FailureQuoteAroundSuggestion}, kinds)
	assert.Equal(t, []string{"EN_NOISY", "EN_QUOTED[1]"}, ids)
	runs, err := testutil.GatherAndCount(m.Registry(), "ruleconform_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP ruleconform_runs_total Completed conformance runs by outcome.
# TYPE ruleconform_runs_total counter
ruleconform_runs_total{outcome="fail"} 1
`), "ruleconform_runs_total"))
}

func TestSuite_RunIsIdempotent(t *testing.T) {
	run := func(workers int) []byte {
		cat, eng := suiteFixture()
		report, err := NewSuite(cat, engine.Shared(eng),
			WithWorkers(workers),
			WithQuoteScanner(NewQuoteScanner(ruleFiles(), &enginetest.Loader{})),
		).Run(context.Background())
		require.NoError(t, err)
		data, err := json.Marshal(report)
		require.NoError(t, err)
		return data
	}

	first := run(1)
	assert.Equal(t, first, run(1))
	assert.Equal(t, first, run(4), "parallel runs merge in language order")
}

func TestSuite_DuplicateIDIsFatal(t *testing.T) {
	cat, eng := suiteFixture()
	clash := procRule("MULTIPLE_WHITESPACE", "*catalogue.OtherRule", "en")
	cat.RuleSets["en"] = append(cat.RuleSets["en"], clash)

	report, err := NewSuite(cat, engine.Shared(eng)).Run(context.Background())

	require.Error(t, err)
	assert.True(t, IsFatal(err))
	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "English", dup.Language)
	require.Len(t, report.FatalErrors, 1)
	assert.Contains(t, report.FatalErrors[0], "rule id occurs more than once: 'MULTIPLE_WHITESPACE'")
	assert.Zero(t, eng.CallCount(), "no examples run after a fatal error")
}

func TestSuite_InvalidIDIsFatal(t *testing.T) {
	cat, eng := suiteFixture()
	cat.RuleSets["fa"] = []rule.Rule{procRule("bad-id", "*catalogue.BadRule", "fa")}

	report, err := NewSuite(cat, engine.Shared(eng)).Run(context.Background())

	var invalid *InvalidIDFormatError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "bad-id", invalid.ID)
	assert.Len(t, report.FatalErrors, 1)
}

func TestSuite_LoadErrorIsRecoverable(t *testing.T) {
	cat, eng := suiteFixture()
	cat.LoadErrs = map[string]error{"en": errors.New("missing grammar.txt")}

	report, err := NewSuite(cat, engine.Shared(eng)).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, FailureRuleLoad, report.Failures[0].Kind)
	assert.Equal(t, "en", report.Failures[0].Language)
	assert.Contains(t, report.Failures[0].Message, "missing grammar.txt")
}

func TestSuite_LoadErrorStillScansRuleFiles(t *testing.T) {
	cat, eng := suiteFixture()
	cat.LoadErrs = map[string]error{"en": errors.New("broken rule file")}

	report, err := NewSuite(cat, engine.Shared(eng),
		WithQuoteScanner(NewQuoteScanner(ruleFiles(), &enginetest.Loader{})),
	).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, FailureRuleLoad, report.Failures[0].Kind)
	assert.Equal(t, "en", report.Failures[0].Language)
	assert.Equal(t, FailureQuoteAroundSuggestion, report.Failures[1].Kind)
	assert.Equal(t, "en", report.Failures[1].Language)
	assert.Equal(t, "EN_QUOTED[1]", report.Failures[1].RuleID)

	for _, c := range eng.Calls() {
		assert.NotEqual(t, "en", c.Language, "no examples replayed for a language that failed to load")
	}
}

func TestSuite_EngineFactoryError(t *testing.T) {
	cat, _ := suiteFixture()
	factory := func() (engine.Engine, error) { return nil, errors.New("no engine") }

	report, err := NewSuite(cat, factory, WithWorkers(2)).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no engine")
	assert.NotEmpty(t, report.FatalErrors)
}

func TestSuite_CancelledContext(t *testing.T) {
	cat, eng := suiteFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewSuite(cat, engine.Shared(eng)).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.FatalErrors, 1)
}
