package catalogue

import (
	htmltemplate "html/template"
	"reflect"
	"testing"
	texttemplate "text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/ruleconform/rule"
)

func TestProceduralRules_Examples(t *testing.T) {
	for _, code := range []string{"en", "de", "fr", "fa"} {
		for _, p := range proceduralRules(code) {
			meta := p.Describe()
			t.Run(code+"/"+meta.ID, func(t *testing.T) {
				assert.Equal(t, rule.KindProcedural, meta.Kind)
				assert.True(t, meta.SupportsLanguage(code))
				require.NotEmpty(t, meta.Correct)
				require.NotEmpty(t, meta.Incorrect)
				for _, ex := range meta.Correct {
					assert.Empty(t, p.Match(rule.StripMarkers(ex.Text)), ex.Text)
				}
			})
		}
	}
}

func TestDescribe_ImplName(t *testing.T) {
	assert.Equal(t, "*github.com/c360studio/ruleconform/catalogue.WhitespaceRule",
		(&WhitespaceRule{lang: "en"}).Describe().Impl)
	assert.Equal(t, "*github.com/c360studio/ruleconform/catalogue.RepeatedWordRule",
		NewGermanRepeatedWordRule().Describe().Impl)
}

func TestImplName_DistinguishesPackagesWithSameName(t *testing.T) {
	text := implName(reflect.TypeOf(&texttemplate.Template{}))
	html := implName(reflect.TypeOf(&htmltemplate.Template{}))

	assert.Equal(t, "*text/template.Template", text)
	assert.Equal(t, "*html/template.Template", html)
	assert.NotEqual(t, text, html)
	assert.Equal(t, "int", implName(reflect.TypeOf(0)))
}

func TestWhitespaceRule(t *testing.T) {
	matches := (&WhitespaceRule{lang: "en"}).Match("a  b   c d")
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].FromPos)
	assert.Equal(t, 3, matches[0].ToPos)
	assert.Equal(t, 4, matches[1].FromPos)
	assert.Equal(t, 7, matches[1].ToPos)
}

func TestSentenceStartRule(t *testing.T) {
	r := &SentenceStartRule{lang: "en"}
	tests := []struct {
		text string
		want []string
	}{
		{"This is fine.", nil},
		{"this is not.", []string{"this"}},
		{"One. two! three? Four.", []string{"two", "three"}},
		{`"quoted" start.`, []string{"quoted"}},
		{"42 is a number.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var got []string
			for _, m := range r.Match(tt.text) {
				got = append(got, tt.text[m.FromPos:m.ToPos])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDoublePunctuationRule(t *testing.T) {
	r := &DoublePunctuationRule{lang: "en"}
	tests := []struct {
		text string
		want int
	}{
		{"Fine.", 0},
		{"Ellipsis... ok", 0},
		{"Long ellipsis..... ok", 0},
		{"Twice.. no", 1},
		{"Commas,, no", 1},
		{"Mixed., no", 1},
		{"Comma ellipsis,,, no", 1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Len(t, r.Match(tt.text), tt.want)
		})
	}
}

func TestRepeatedWordRule(t *testing.T) {
	r := NewGermanRepeatedWordRule()

	matches := r.Match("Das ist das das Haus.")
	require.Len(t, matches, 2)
	assert.Equal(t, "STYLE_REPEATED_WORD_RULE_DE", matches[0].RuleID)
	assert.Equal(t, 8, matches[0].FromPos)
	assert.Equal(t, 12, matches[1].FromPos)

	assert.Empty(t, r.Match("Das ist ein Haus."))
	assert.Empty(t, r.Match("Haus eins zwei drei vier Haus."), "repetitions outside the window are allowed")
	assert.Len(t, r.Match("HAUS und haus"), 1, "comparison folds case")
}
