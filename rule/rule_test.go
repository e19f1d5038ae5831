package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no markers", "Das ist gut.", "Das ist gut."},
		{"single span", "Das ist <marker>das das</marker> Haus.", "Das ist das das Haus."},
		{"two spans", "<marker>a</marker> b <marker>c</marker>", "a b c"},
		{"dangling open", "foo <marker>bar", "foo bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkers(tt.input))
		})
	}
}

func TestMarkedSpan(t *testing.T) {
	from, to, ok := MarkedSpan("This is <marker>is</marker> wrong.")
	assert.True(t, ok)
	assert.Equal(t, 8, from)
	assert.Equal(t, 10, to)
	assert.Equal(t, "is", StripMarkers("This is <marker>is</marker> wrong.")[from:to])

	_, _, ok = MarkedSpan("no markers here")
	assert.False(t, ok)

	_, _, ok = MarkedSpan("open <marker>only")
	assert.False(t, ok)
}

func TestRule_FullID(t *testing.T) {
	assert.Equal(t, "COMMA_SPACE", Rule{ID: "COMMA_SPACE"}.FullID())
	assert.Equal(t, "COMMA_SPACE[2]", Rule{ID: "COMMA_SPACE", SubID: 2}.FullID())
}

func TestRule_SupportsLanguage(t *testing.T) {
	r := Rule{ID: "X", Languages: []string{"de", "en"}}
	assert.True(t, r.SupportsLanguage("de"))
	assert.False(t, r.SupportsLanguage("fr"))
}

func TestProcedural(t *testing.T) {
	rules := []Rule{
		{ID: "A", Kind: KindProcedural},
		{ID: "B", Kind: KindDeclarative},
		{ID: "C", Kind: KindProcedural},
	}
	got := Procedural(rules)
	assert.Equal(t, []string{"A", "C"}, []string{got[0].ID, got[1].ID})
}

func TestOverrides(t *testing.T) {
	t.Run("builtin", func(t *testing.T) {
		o := NewOverrides(nil)
		assert.Equal(t, 2, o.Expected("STYLE_REPEATED_WORD_RULE_DE"))
		assert.Equal(t, 1, o.Expected("MULTIPLE_WHITESPACE"))
	})

	t.Run("extra entries layer on top", func(t *testing.T) {
		extra := map[string]int{"DOUBLE_PUNCTUATION": 3, "STYLE_REPEATED_WORD_RULE_DE": 4}
		o := NewOverrides(extra)
		extra["DOUBLE_PUNCTUATION"] = 9
		assert.Equal(t, 3, o.Expected("DOUBLE_PUNCTUATION"))
		assert.Equal(t, 4, o.Expected("STYLE_REPEATED_WORD_RULE_DE"))
		assert.Equal(t, 2, o.Len())
	})

	t.Run("zero value", func(t *testing.T) {
		var o Overrides
		assert.Equal(t, DefaultExpectedMatches, o.Expected("ANY"))
	})
}

func TestIDs(t *testing.T) {
	matches := []Match{{RuleID: "A"}, {RuleID: "B"}, {RuleID: "A"}}
	assert.Equal(t, []string{"A", "B", "A"}, IDs(matches))
	assert.Empty(t, IDs(nil))
}

func TestMatch_String(t *testing.T) {
	m := Match{RuleID: "MULTIPLE_WHITESPACE", Message: "Remove extra space.", FromPos: 3, ToPos: 5}
	assert.Equal(t, "MULTIPLE_WHITESPACE@3-5: Remove extra space.", m.String())
}
