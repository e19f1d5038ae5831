package catalogue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/ruleconform/conformance"
	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/rule"
)

func TestDefault_Languages(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	var codes []string
	for _, l := range c.Languages() {
		codes = append(codes, l.Code)
	}
	assert.Equal(t, []string{"en", "de", "fr", "fa"}, codes)
}

func TestCatalogue_LoadAllRules(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	de, err := c.Registry().Lookup("de")
	require.NoError(t, err)

	rules, err := c.LoadAllRules(context.Background(), de)
	require.NoError(t, err)

	var procedural, declarative []string
	for _, r := range rules {
		if r.IsProcedural() {
			procedural = append(procedural, r.ID)
		} else {
			declarative = append(declarative, r.FullID())
			assert.Equal(t, []string{"de"}, r.Languages)
		}
	}
	assert.Equal(t, []string{"MULTIPLE_WHITESPACE", "UPPERCASE_SENTENCE_START", "STYLE_REPEATED_WORD_RULE_DE"}, procedural)
	assert.Equal(t, []string{"DE_VON_DAS[1]", "DE_SEID_SEIT[1]", "DE_TEST_QUOTED_SUGGESTION[1]"}, declarative)
}

func TestCatalogue_UnknownLanguage(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.LoadAllRules(context.Background(), rule.Language{Code: "nl"})
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestCatalogue_BrokenRuleFile(t *testing.T) {
	c, err := Open(fstest.MapFS{
		LanguagesFile:    {Data: []byte("languages:\n  - code: en\n    rule_files: [grammar.yaml, missing.yaml]\n")},
		"en/grammar.yaml": {Data: []byte("rules: []\n")},
	})
	require.NoError(t, err)

	_, err = c.LoadAllRules(context.Background(), rule.Language{Code: "en"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LanguagesFile), []byte("languages:\n  - code: fr\n    name: French\n"), 0o644))

	c, err := OpenDir(dir)
	require.NoError(t, err)
	assert.Len(t, c.Languages(), 1)

	_, err = OpenDir(filepath.Join(dir, "nope"))
	assert.Error(t, err)

	_, err = OpenDir(filepath.Join(dir, LanguagesFile))
	assert.Error(t, err)
}

func TestEngine_Check(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	eng := NewEngine(c)
	en, err := c.Registry().Lookup("en")
	require.NoError(t, err)
	ctx := context.Background()

	matches, err := eng.Check(ctx, en, eng.DefaultSelection(en), "This is  a apple.")
	require.NoError(t, err)
	assert.Equal(t, []string{"MULTIPLE_WHITESPACE", "EN_A_VS_AN"}, rule.IDs(matches))

	matches, err = eng.Check(ctx, en, engine.Only("EN_A_VS_AN"), "This is  a apple.")
	require.NoError(t, err)
	assert.Equal(t, []string{"EN_A_VS_AN"}, rule.IDs(matches))

	matches, err = eng.Check(ctx, en, engine.Defaults(), "This is very unique.")
	require.NoError(t, err)
	assert.Empty(t, matches, "default-off rules stay off")

	matches, err = eng.Check(ctx, en, engine.Defaults().Enable("EN_VERY_UNIQUE"), "This is very unique.")
	require.NoError(t, err)
	assert.Equal(t, []string{"EN_VERY_UNIQUE"}, rule.IDs(matches))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = eng.Check(cancelled, en, engine.Defaults(), "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbeddedCatalogue_IsConformant(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	scanner := conformance.NewQuoteScanner(c.Files(), c.Loader(), conformance.WithSkipLanguages("fa", "zh"))
	report, err := conformance.NewSuite(c, engine.Shared(NewEngine(c)),
		conformance.WithWorkers(2),
		conformance.WithQuoteScanner(scanner),
	).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report.Failures)
}

func TestEmbeddedFixtures_HaveNoDrift(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	fixtures, err := conformance.LoadFixturesFS(c.Files(), FixturesPattern)
	require.NoError(t, err)
	require.NotEmpty(t, fixtures)

	failures := conformance.NewComparator(NewEngine(c), c.Languages()).CompareAll(context.Background(), fixtures)
	assert.Empty(t, failures)
}
