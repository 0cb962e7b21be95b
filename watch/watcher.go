package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultDebounce is the quiet period after the last filesystem event before
// a rebuild fires. Editors typically write, rename and chmod in quick
// succession; the window folds that burst into one rebuild.
const defaultDebounce = 300 * time.Millisecond

// defaultIgnores excludes paths that never belong to a module graph and
// generate high-frequency noise.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Config holds the parameters for a Watcher.
type Config struct {
	// Root is the directory watched recursively. Empty means the current
	// working directory.
	Root string

	// Patterns select which files trigger rebuilds, as doublestar globs
	// relative to Root. Empty watches every non-ignored file.
	Patterns []string

	// Ignore adds doublestar globs to the built-in ignore set. Output paths
	// the rebuild itself writes must be listed here or every build would
	// trigger the next one.
	Ignore []string

	// Debounce overrides the quiet period; zero or negative keeps the
	// default.
	Debounce time.Duration

	// OnRebuild runs after the debounce window with the sorted changed paths
	// relative to Root. Errors are logged and watching continues.
	OnRebuild func(ctx context.Context, changed []string) error

	// Logger receives watcher diagnostics; nil means no logging.
	Logger *zap.Logger
}

// Watcher triggers debounced rebuilds when watched files change. Run must be
// called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	ignores  []string
	debounce time.Duration
	root     string
	log      *zap.Logger
	started  atomic.Bool
}

// New creates a Watcher, validates the configured globs, and registers every
// non-ignored directory under Root.
func New(cfg Config) (*Watcher, error) {
	root := cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ignores := make([]string, 0, len(defaultIgnores)+len(cfg.Ignore))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, cfg.Ignore...)

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  ignores,
		debounce: debounce,
		root:     absRoot,
		log:      log,
	}
	if err := w.addDirectories(); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, coalescing filesystem events and firing
// rebuilds. Returns nil on clean cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		timer   *time.Timer
		busy    atomic.Bool
	)

	// fire drains the pending set and runs the rebuild. A rebuild outlasting
	// the debounce window is not run concurrently; the timer re-arms so the
	// accumulated set is not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			w.log.Debug("rebuild still running, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for path := range pending {
			changed = append(changed, path)
		}
		clear(pending)
		mu.Unlock()
		sort.Strings(changed)

		w.log.Info("files changed", zap.Strings("paths", changed))
		if w.cfg.OnRebuild != nil {
			if err := w.cfg.OnRebuild(ctx, changed); err != nil {
				w.log.Error("rebuild failed", zap.Error(err))
			}
		}
	}

	defer func() {
		mu.Lock()
		t := timer
		mu.Unlock()
		if t != nil {
			t.Stop()
		}
		if err := w.fsw.Close(); err != nil {
			w.log.Warn("close fsnotify", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed")
			}
			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			if w.isIgnored(rel) {
				continue
			}
			// Directories created mid-session extend the recursive watch.
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.matchesPatterns(rel) {
				continue
			}
			mu.Lock()
			pending[rel] = true
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed")
			}
			w.log.Warn("fsnotify error", zap.Error(err))
		}
	}
}

// addDirectories walks the root and registers every non-ignored directory.
// Pattern filtering happens per event, not here, so files matching a pattern
// in any directory are seen.
func (w *Watcher) addDirectories() error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.log.Warn("skipping inaccessible path", zap.String("path", path), zap.Error(walkErr))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	if w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.log.Warn("add new directory", zap.String("path", path), zap.Error(err))
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) matchesPatterns(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.cfg.Patterns {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, err)
		}
	}
	return nil
}
