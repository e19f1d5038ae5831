// Package watch reports debounced batches of rule and fixture file changes
// under a directory tree.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// batchChannelBuffer is the size of the batch channel.
const batchChannelBuffer = 16

// Config configures rule file watching.
type Config struct {
	// Debounce is how long to wait for more changes before emitting a batch.
	Debounce time.Duration

	// Patterns are doublestar globs, relative to the root, of files that
	// trigger a batch.
	Patterns []string

	// ExcludeDirs lists directory names to skip.
	ExcludeDirs []string
}

// DefaultConfig watches YAML files below the root.
func DefaultConfig() Config {
	return Config{
		Debounce:    300 * time.Millisecond,
		Patterns:    []string{"**/*.yaml", "**/*.yml"},
		ExcludeDirs: []string{".git", "node_modules", "vendor"},
	}
}

// Operation is the kind of change a file went through.
type Operation string

// OpCreate, OpModify, and OpDelete enumerate file operations.
const (
	OpCreate Operation = "create"
	OpModify Operation = "modify"
	OpDelete Operation = "delete"
)

// Event is one changed file.
type Event struct {
	// Path is relative to the watched root, slash-separated.
	Path      string
	AbsPath   string
	Operation Operation
}

// Batch groups the changes seen during one debounce interval, sorted by path.
type Batch []Event

// Watcher watches a directory tree and emits debounced batches.
type Watcher struct {
	config   Config
	root     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	excludes map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Content hashes suppress batches for saves that changed nothing.
	hashMu sync.Mutex
	hashes map[string]string

	batches chan Batch

	droppedBatches atomic.Int64
}

// New creates a Watcher for root.
func New(config Config, root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if config.Debounce <= 0 {
		config.Debounce = defaults.Debounce
	}
	if len(config.Patterns) == 0 {
		config.Patterns = defaults.Patterns
	}
	if config.ExcludeDirs == nil {
		config.ExcludeDirs = defaults.ExcludeDirs
	}
	for _, p := range config.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch pattern %q", p)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	excludes := make(map[string]bool, len(config.ExcludeDirs))
	for _, dir := range config.ExcludeDirs {
		excludes[dir] = true
	}

	return &Watcher{
		config:   config,
		root:     abs,
		watcher:  fsw,
		logger:   logger,
		excludes: excludes,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		batches:  make(chan Batch, batchChannelBuffer),
	}, nil
}

// Batches returns the channel of change batches. It is closed when the
// watcher stops.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Matches reports whether a root-relative, slash-separated path is watched.
func (w *Watcher) Matches(rel string) bool {
	for _, p := range w.config.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Start adds watches below the root, seeds content hashes and begins
// processing events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Rule watcher started",
		"root", w.root,
		"debounce", w.config.Debounce,
		"patterns", w.config.Patterns)
	return nil
}

// Stop stops the watcher. The batch channel is closed by processEvents when
// it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// DroppedBatches returns the number of batches dropped because nobody was
// reading.
func (w *Watcher) DroppedBatches() int64 {
	return w.droppedBatches.Load()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			if rel, ok := w.relative(path); ok && w.Matches(rel) {
				if content, err := os.ReadFile(path); err == nil {
					w.setHash(rel, contentHash(content))
				}
			}
			return nil
		}

		if path != root && w.skipDir(filepath.Base(path)) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}

func (w *Watcher) skipDir(base string) bool {
	return w.excludes[base] || (strings.HasPrefix(base, ".") && base != ".")
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.batches)
	ticker := time.NewTicker(w.config.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.skipDir(filepath.Base(path)) {
				if err := w.addWatchesRecursive(path); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	rel, ok := w.relative(path)
	if !ok || !w.Matches(rel) {
		return
	}
	for _, part := range strings.Split(rel, "/") {
		if w.excludes[part] {
			return
		}
	}

	w.pendingMu.Lock()
	w.pending[path] |= event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Rule file change detected", "path", rel, "op", event.Op.String())
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	var batch Batch
	for path, op := range toProcess {
		rel, _ := w.relative(path)
		if ev, ok := w.classify(path, rel, op); ok {
			batch = append(batch, ev)
		}
	}
	if len(batch) == 0 {
		return
	}
	slices.SortFunc(batch, func(a, b Event) int { return strings.Compare(a.Path, b.Path) })
	w.sendBatch(batch)
}

// classify turns accumulated fsnotify ops into an Event. Files whose content
// hash is unchanged yield no event.
func (w *Watcher) classify(path, rel string, op fsnotify.Op) (Event, bool) {
	event := Event{Path: rel, AbsPath: path}

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("Failed to read changed file", "path", rel, "error", err)
			return Event{}, false
		}
		w.hashMu.Lock()
		_, had := w.hashes[rel]
		delete(w.hashes, rel)
		w.hashMu.Unlock()
		event.Operation = OpDelete
		return event, had || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
	}

	newHash := contentHash(content)
	w.hashMu.Lock()
	oldHash, hadHash := w.hashes[rel]
	w.hashes[rel] = newHash
	w.hashMu.Unlock()

	if hadHash && oldHash == newHash {
		return Event{}, false
	}
	if hadHash {
		event.Operation = OpModify
	} else {
		event.Operation = OpCreate
	}
	return event, true
}

func (w *Watcher) setHash(rel, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[rel] = hash
}

func (w *Watcher) sendBatch(batch Batch) {
	select {
	case w.batches <- batch:
		w.logger.Debug("Sent change batch", "files", len(batch))
	default:
		dropped := w.droppedBatches.Add(1)
		w.logger.Warn("Batch channel full, dropping batch",
			"files", len(batch),
			"total_dropped", dropped)
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
