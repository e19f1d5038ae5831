// Package catalogue is the built-in rule catalogue: a language registry, YAML
// declarative rule files, a handful of procedural rules and a regexp-driven
// engine that runs both kinds.
//
// Rule directories are laid out as
//
//	languages.yaml
//	<code>/<rule file>.yaml
//	fixtures/*.yaml
//
// The default directory is embedded in the binary.
package catalogue

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/c360studio/ruleconform/engine"
	"github.com/c360studio/ruleconform/rule"
)

//go:embed data
var embedded embed.FS

// FixturesPattern matches the regression fixtures inside a rule directory.
const FixturesPattern = "fixtures/**/*.yaml"

// Catalogue loads rules for the languages of a rule directory. Loaded rule
// sets are cached and shared with the Engine.
type Catalogue struct {
	files    fs.FS
	registry *Registry
	loader   Loader
	logger   *slog.Logger

	mu   sync.Mutex
	sets map[string]*ruleSet
}

var _ engine.Catalogue = (*Catalogue)(nil)

// ruleSet holds everything loaded for one language.
type ruleSet struct {
	procedural []ProceduralRule
	patterns   []patternRule
	rules      []rule.Rule
}

// Option configures a Catalogue.
type Option func(*Catalogue)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalogue) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open reads the language registry from the root of files.
func Open(files fs.FS, opts ...Option) (*Catalogue, error) {
	c := &Catalogue{
		files:  files,
		logger: slog.Default(),
		sets:   make(map[string]*ruleSet),
	}
	for _, opt := range opts {
		opt(c)
	}

	f, err := files.Open(LanguagesFile)
	if err != nil {
		return nil, fmt.Errorf("open language registry: %w", err)
	}
	defer f.Close()

	c.registry, err = ParseRegistry(f)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// OpenDir opens a rule directory on disk.
func OpenDir(dir string, opts ...Option) (*Catalogue, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("rules dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rules dir %s is not a directory", dir)
	}
	return Open(os.DirFS(dir), opts...)
}

// Default opens the embedded rule directory.
func Default(opts ...Option) (*Catalogue, error) {
	return Open(EmbeddedFS(), opts...)
}

// EmbeddedFS returns the embedded rule directory.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err)
	}
	return sub
}

// Files returns the rule directory.
func (c *Catalogue) Files() fs.FS {
	return c.files
}

// Loader returns the declarative rule loader.
func (c *Catalogue) Loader() engine.DeclarativeLoader {
	return c.loader
}

// Registry returns the language registry.
func (c *Catalogue) Registry() *Registry {
	return c.registry
}

// Languages implements engine.Catalogue.
func (c *Catalogue) Languages() []rule.Language {
	return c.registry.Languages()
}

// LoadAllRules implements engine.Catalogue. Procedural rules come first, then
// declarative rules in rule-file order.
func (c *Catalogue) LoadAllRules(ctx context.Context, lang rule.Language) ([]rule.Rule, error) {
	set, err := c.ruleSet(ctx, lang)
	if err != nil {
		return nil, err
	}
	return append([]rule.Rule(nil), set.rules...), nil
}

func (c *Catalogue) ruleSet(ctx context.Context, lang rule.Language) (*ruleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.sets[lang.Code]; ok {
		return set, nil
	}

	registered, err := c.registry.Lookup(lang.Code)
	if err != nil {
		return nil, err
	}

	set := &ruleSet{procedural: proceduralRules(registered.Code)}
	for _, p := range set.procedural {
		set.rules = append(set.rules, p.Describe())
	}
	for _, name := range registered.RuleFiles {
		patterns, err := c.loadFile(path.Join(registered.Code, name))
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			p.Languages = []string{registered.Code}
			set.patterns = append(set.patterns, p)
			set.rules = append(set.rules, p.Rule)
		}
	}

	c.logger.Debug("Loaded rule set", "language", registered.Code,
		"procedural", len(set.procedural), "declarative", len(set.patterns))
	c.sets[lang.Code] = set
	return set, nil
}

func (c *Catalogue) loadFile(name string) ([]patternRule, error) {
	f, err := c.files.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open rule file: %w", err)
	}
	defer f.Close()
	return c.loader.loadPatterns(f, name)
}
