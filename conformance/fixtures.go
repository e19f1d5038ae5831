package conformance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/ruleconform/rule"
)

// fixtureFile is the on-disk layout of a regression fixture file.
//
//	fixtures:
//	  - name: de-demo
//	    language: de
//	    text: "Er sieht mich."
//	    expected_ids: []
type fixtureFile struct {
	Fixtures []rule.Fixture `yaml:"fixtures"`
}

// ResolveFixtureFiles expands glob patterns (with ** support) to fixture
// files. Results are deduplicated and sorted per pattern, and patterns keep
// their order.
func ResolveFixtureFiles(patterns []string) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", m, err)
			}
			if !seen[abs] {
				seen[abs] = true
				resolved = append(resolved, abs)
			}
		}
	}
	return resolved, nil
}

// LoadFixtures reads every fixture file matched by patterns.
func LoadFixtures(patterns []string) ([]rule.Fixture, error) {
	files, err := ResolveFixtureFiles(patterns)
	if err != nil {
		return nil, err
	}

	var out []rule.Fixture
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		fixtures, err := ParseFixtures(data, file)
		if err != nil {
			return nil, err
		}
		out = append(out, fixtures...)
	}
	return out, nil
}

// LoadFixturesFS reads every fixture file in fsys matched by pattern, in
// lexical order.
func LoadFixturesFS(fsys fs.FS, pattern string) ([]rule.Fixture, error) {
	files, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
	}
	slices.Sort(files)

	var out []rule.Fixture
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		fixtures, err := ParseFixtures(data, file)
		if err != nil {
			return nil, err
		}
		out = append(out, fixtures...)
	}
	return out, nil
}

// ParseFixtures decodes one fixture file. name is used for diagnostics and
// as the default fixture name.
func ParseFixtures(data []byte, name string) ([]rule.Fixture, error) {
	var ff fixtureFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixtures %s: %w", name, err)
	}

	for i := range ff.Fixtures {
		fx := &ff.Fixtures[i]
		if fx.Language == "" {
			return nil, fmt.Errorf("parse fixtures %s: fixture %d has no language", name, i+1)
		}
		if fx.Name == "" {
			fx.Name = fmt.Sprintf("%s#%d", filepath.Base(name), i+1)
		}
		if fx.ExpectedIDs == nil {
			fx.ExpectedIDs = []string{}
		}
	}
	return ff.Fixtures, nil
}
