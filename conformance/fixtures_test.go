package conformance

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deFixtures = `fixtures:
  - name: de-demo
    language: de
    text: "Er sieht mich."
    expected_ids: []
  - language: de
    text: "Das ist das das Haus."
    expected_ids: [STYLE_REPEATED_WORD_RULE_DE]
`

const enFixtures = `fixtures:
  - language: en
    text: "This is  a test."
    expected_ids: [MULTIPLE_WHITESPACE]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "fixtures", "de", "demo.yaml"), deFixtures)
	writeFile(t, filepath.Join(dir, "fixtures", "en", "demo.yaml"), enFixtures)
	writeFile(t, filepath.Join(dir, "fixtures", "README.md"), "not a fixture")

	fixtures, err := LoadFixtures([]string{
		filepath.Join(dir, "fixtures", "**", "*.yaml"),
		filepath.Join(dir, "fixtures", "de", "*.yaml"), // overlaps, must not duplicate
	})
	require.NoError(t, err)
	require.Len(t, fixtures, 3)

	assert.Equal(t, "de-demo", fixtures[0].Name)
	assert.Equal(t, []string{}, fixtures[0].ExpectedIDs)
	assert.Equal(t, "demo.yaml#2", fixtures[1].Name)
	assert.Equal(t, []string{"STYLE_REPEATED_WORD_RULE_DE"}, fixtures[1].ExpectedIDs)
	assert.Equal(t, "en", fixtures[2].Language)
}

func TestLoadFixtures_NoMatches(t *testing.T) {
	fixtures, err := LoadFixtures([]string{filepath.Join(t.TempDir(), "**", "*.yaml")})
	require.NoError(t, err)
	assert.Empty(t, fixtures)
}

func TestLoadFixturesFS(t *testing.T) {
	fsys := fstest.MapFS{
		"fixtures/en.yaml": {Data: []byte(enFixtures)},
		"fixtures/de.yaml": {Data: []byte(deFixtures)},
	}

	fixtures, err := LoadFixturesFS(fsys, "fixtures/*.yaml")
	require.NoError(t, err)
	require.Len(t, fixtures, 3)
	assert.Equal(t, "de", fixtures[0].Language, "files load in lexical order")
	assert.Equal(t, "en", fixtures[2].Language)
}

func TestParseFixtures_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing language", "fixtures:\n  - text: abc\n"},
		{"unknown field", "fixtures:\n  - language: de\n    txt: abc\n"},
		{"not yaml", "fixtures: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.data), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}
