package catalogue

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/c360studio/ruleconform/rule"
)

// ProceduralRule is a rule implemented in code.
type ProceduralRule interface {
	// Describe returns the rule's metadata and examples.
	Describe() rule.Rule
	// Match returns the rule's matches in text.
	Match(text string) []rule.Match
}

// describe fills in the fields derived from the implementing type.
func describe(p ProceduralRule, r rule.Rule) rule.Rule {
	r.Kind = rule.KindProcedural
	r.Impl = implName(reflect.TypeOf(p))
	return r
}

// implName qualifies a type by import path, so same-named types in packages
// that share a package name stay distinct.
func implName(t reflect.Type) string {
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}

// proceduralRules returns the code rules active for a language code. Every
// language gets the whitespace rule.
func proceduralRules(code string) []ProceduralRule {
	rules := []ProceduralRule{&WhitespaceRule{lang: code}}
	switch code {
	case "en":
		rules = append(rules, &SentenceStartRule{lang: code}, &DoublePunctuationRule{lang: code})
	case "de":
		rules = append(rules, &SentenceStartRule{lang: code}, NewGermanRepeatedWordRule())
	case "fr":
		rules = append(rules, &DoublePunctuationRule{lang: code})
	}
	return rules
}

// WhitespaceRule flags runs of two or more spaces. One instance exists per
// language, all sharing the ID MULTIPLE_WHITESPACE.
type WhitespaceRule struct {
	lang string
}

var multipleSpaceRe = regexp.MustCompile(` {2,}`)

// Describe implements ProceduralRule.
func (w *WhitespaceRule) Describe() rule.Rule {
	return describe(w, rule.Rule{
		ID:        "MULTIPLE_WHITESPACE",
		Languages: []string{w.lang},
		Message:   "Possible typo: you repeated a whitespace",
		Correct:   []rule.CorrectExample{{Text: "One space is enough."}},
		Incorrect: []rule.IncorrectExample{{Text: "Two<marker>  </marker>spaces.", Corrections: []string{" "}}},
	})
}

// Match implements ProceduralRule.
func (w *WhitespaceRule) Match(text string) []rule.Match {
	var out []rule.Match
	for _, loc := range multipleSpaceRe.FindAllStringIndex(text, -1) {
		out = append(out, rule.Match{
			RuleID:  "MULTIPLE_WHITESPACE",
			Message: "Possible typo: you repeated a whitespace",
			FromPos: loc[0],
			ToPos:   loc[1],
		})
	}
	return out
}

// SentenceStartRule flags sentences that start with a lowercase letter.
type SentenceStartRule struct {
	lang string
}

var sentenceStartExamples = map[string]struct{ correct, incorrect string }{
	"en": {"This is a sentence. And another one.", "This is a sentence. <marker>and</marker> another one."},
	"de": {"Das ist ein Satz. Und noch einer.", "Das ist ein Satz. <marker>und</marker> noch einer."},
}

// Describe implements ProceduralRule.
func (s *SentenceStartRule) Describe() rule.Rule {
	ex := sentenceStartExamples[s.lang]
	return describe(s, rule.Rule{
		ID:        "UPPERCASE_SENTENCE_START",
		Languages: []string{s.lang},
		Message:   "This sentence does not start with an uppercase letter.",
		Correct:   []rule.CorrectExample{{Text: ex.correct}},
		Incorrect: []rule.IncorrectExample{{Text: ex.incorrect}},
	})
}

// Match implements ProceduralRule.
func (s *SentenceStartRule) Match(text string) []rule.Match {
	var out []rule.Match
	atStart := true
	for i, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			atStart = true
		case unicode.IsSpace(r) || unicode.IsPunct(r):
		case atStart:
			atStart = false
			if unicode.IsLower(r) {
				end := wordEnd(text, i)
				out = append(out, rule.Match{
					RuleID:  "UPPERCASE_SENTENCE_START",
					Message: "This sentence does not start with an uppercase letter.",
					FromPos: i,
					ToPos:   end,
				})
			}
		}
	}
	return out
}

func wordEnd(text string, from int) int {
	for i, r := range text[from:] {
		if !unicode.IsLetter(r) {
			return from + i
		}
	}
	return len(text)
}

// DoublePunctuationRule flags two consecutive commas or periods. An ellipsis
// of three or more periods is allowed.
type DoublePunctuationRule struct {
	lang string
}

var doublePunctuationExamples = map[string]struct{ correct, incorrect string }{
	"en": {"Wait for it... here it is.", "Here it is<marker>..</marker>"},
	"fr": {"Attendez... le voici.", "Le voici<marker>,,</marker> enfin."},
}

// Describe implements ProceduralRule.
func (d *DoublePunctuationRule) Describe() rule.Rule {
	ex := doublePunctuationExamples[d.lang]
	return describe(d, rule.Rule{
		ID:        "DOUBLE_PUNCTUATION",
		Languages: []string{d.lang},
		Message:   "Two consecutive dots or commas",
		Correct:   []rule.CorrectExample{{Text: ex.correct}},
		Incorrect: []rule.IncorrectExample{{Text: ex.incorrect}},
	})
}

// Match implements ProceduralRule.
func (d *DoublePunctuationRule) Match(text string) []rule.Match {
	var out []rule.Match
	for i := 0; i < len(text); {
		if text[i] != '.' && text[i] != ',' {
			i++
			continue
		}
		j := i
		for j < len(text) && (text[j] == '.' || text[j] == ',') {
			j++
		}
		run := text[i:j]
		ellipsis := strings.Trim(run, ".") == "" && len(run) >= 3
		if len(run) >= 2 && !ellipsis {
			out = append(out, rule.Match{
				RuleID:  "DOUBLE_PUNCTUATION",
				Message: "Two consecutive dots or commas",
				FromPos: i,
				ToPos:   j,
			})
		}
		i = j
	}
	return out
}

// RepeatedWordRule flags a word that occurs again within a short window of
// preceding words, compared case-insensitively. Each repetition is a match.
type RepeatedWordRule struct {
	id      string
	lang    string
	window  int
	correct string
	wrong   string
}

// NewGermanRepeatedWordRule returns the German style rule
// STYLE_REPEATED_WORD_RULE_DE.
func NewGermanRepeatedWordRule() *RepeatedWordRule {
	return &RepeatedWordRule{
		id:      "STYLE_REPEATED_WORD_RULE_DE",
		lang:    "de",
		window:  3,
		correct: "Das ist ein Haus.",
		wrong:   "Das ist <marker>das das</marker> Haus.",
	}
}

// Describe implements ProceduralRule.
func (w *RepeatedWordRule) Describe() rule.Rule {
	return describe(w, rule.Rule{
		ID:        w.id,
		Languages: []string{w.lang},
		Message:   "Wortwiederholung",
		Correct:   []rule.CorrectExample{{Text: w.correct}},
		Incorrect: []rule.IncorrectExample{{Text: w.wrong}},
	})
}

type word struct {
	text     string
	from, to int
}

// Match implements ProceduralRule.
func (w *RepeatedWordRule) Match(text string) []rule.Match {
	words := splitWords(text)

	// A Caser holds state, so each call folds with its own.
	folder := cases.Fold()
	keys := make([]string, len(words))
	for i, wd := range words {
		keys[i] = folder.String(wd.text)
	}

	var out []rule.Match
	for i := range words {
		for j := max(0, i-w.window); j < i; j++ {
			if keys[i] != keys[j] {
				continue
			}
			out = append(out, rule.Match{
				RuleID:  w.id,
				Message: "Wortwiederholung",
				FromPos: words[i].from,
				ToPos:   words[i].to,
			})
			break
		}
	}
	return out
}

func splitWords(text string) []word {
	var words []word
	start := -1
	flush := func(end int) {
		if start >= 0 {
			words = append(words, word{text: text[start:end], from: start, to: end})
			start = -1
		}
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
		i += size
	}
	flush(len(text))
	return words
}
