package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wippyai/esm-bundler/ast"
)

// Resolved is the outcome of resolving one specifier: the canonical module
// id, whether the module stays outside the graph, and an optional
// side-effect override declared by the containing package.
type Resolved struct {
	ID          string
	External    bool
	SideEffects ast.SideEffects
}

// Options configures a Resolver.
type Options struct {
	// Root anchors entry specifiers, "/"-prefixed specifiers and the upward
	// node_modules walk.
	Root string
	// Extensions are probed in order when a path specifier names no existing
	// file.
	Extensions []string
	// Externals lists specifiers that resolve external as written.
	Externals []string
	// BuiltinsExternal keeps node: and core-module specifiers out of the
	// graph instead of failing on them.
	BuiltinsExternal bool
}

// DefaultOptions returns the standard configuration: current directory root,
// common script extensions, builtins external.
func DefaultOptions() Options {
	return Options{
		Root:             ".",
		Extensions:       []string{".js", ".mjs", ".jsx", ".ts", ".tsx"},
		BuiltinsExternal: true,
	}
}

// Resolver maps import specifiers to module ids with node-style semantics:
// extension probing, directory imports through package.json, and an upward
// node_modules walk for bare specifiers. Safe for concurrent use.
type Resolver struct {
	opts      Options
	externals map[string]bool

	mu       sync.Mutex
	pkgCache map[string]*packageMeta
}

// New creates a Resolver. Zero-value option fields fall back to defaults.
func New(opts Options) *Resolver {
	if opts.Root == "" {
		opts.Root = "."
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultOptions().Extensions
	}
	r := &Resolver{
		opts:      opts,
		externals: make(map[string]bool, len(opts.Externals)),
		pkgCache:  make(map[string]*packageMeta),
	}
	for _, e := range opts.Externals {
		r.externals[e] = true
	}
	return r
}

// ResolveSpecifier resolves specifier in the context of the importing module
// id; importer is "" for entry specifiers.
func (r *Resolver) ResolveSpecifier(ctx context.Context, specifier, importer string) (Resolved, error) {
	if err := ctx.Err(); err != nil {
		return Resolved{}, err
	}
	if specifier == "" {
		return Resolved{}, fmt.Errorf("empty specifier")
	}
	if r.externals[specifier] {
		return Resolved{ID: specifier, External: true}, nil
	}
	if r.opts.BuiltinsExternal && IsBuiltin(specifier) {
		return Resolved{ID: specifier, External: true}, nil
	}
	if isPath(specifier) {
		var target string
		if strings.HasPrefix(specifier, "/") {
			target = filepath.Join(r.opts.Root, specifier)
		} else {
			base := r.opts.Root
			if importer != "" {
				base = filepath.Dir(importer)
			}
			target = filepath.Join(base, specifier)
		}
		return r.resolveFile(target)
	}
	return r.resolvePackage(specifier, importer)
}

func isPath(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/")
}

// resolveFile resolves a filesystem target: the exact path, then extension
// probes, then directory resolution.
func (r *Resolver) resolveFile(path string) (Resolved, error) {
	st, err := os.Stat(path)
	if err != nil {
		for _, ext := range r.opts.Extensions {
			if probe, perr := os.Stat(path + ext); perr == nil && !probe.IsDir() {
				return r.finish(path + ext)
			}
		}
		return Resolved{}, fmt.Errorf("cannot find module %q: %w", path, err)
	}
	if st.IsDir() {
		return r.resolveDir(path)
	}
	return r.finish(path)
}

// resolveDir resolves a directory import: the package.json entry field when
// present, index probing otherwise.
func (r *Resolver) resolveDir(dir string) (Resolved, error) {
	if meta := r.packageMeta(dir); meta != nil && meta.entry != "" {
		return r.resolveFile(filepath.Join(dir, meta.entry))
	}
	return r.resolveFile(filepath.Join(dir, "index"))
}

// resolvePackage walks node_modules directories upward from the importer to
// the root, probing the specifier in each.
func (r *Resolver) resolvePackage(specifier, importer string) (Resolved, error) {
	root := filepath.Clean(r.opts.Root)
	dir := root
	if importer != "" {
		dir = filepath.Dir(importer)
	}
	for {
		if res, err := r.resolveFile(filepath.Join(dir, "node_modules", specifier)); err == nil {
			return res, nil
		}
		if filepath.Clean(dir) == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return Resolved{}, fmt.Errorf("cannot find package %q", specifier)
}

func (r *Resolver) finish(path string) (Resolved, error) {
	path = filepath.Clean(path)
	return Resolved{ID: path, SideEffects: r.sideEffectsFor(path)}, nil
}

// sideEffectsFor consults the nearest enclosing package.json declaration:
// false promises purity, a glob list declares the matching files effectful
// and everything else pure, anything else leaves inference to the scanner.
func (r *Resolver) sideEffectsFor(path string) ast.SideEffects {
	root := filepath.Clean(r.opts.Root)
	dir := filepath.Dir(path)
	for {
		if meta := r.packageMeta(dir); meta != nil && meta.effects != effectsUnspecified {
			switch meta.effects {
			case effectsNone:
				return ast.SideEffectsNone
			case effectsList:
				if matchesSideEffectGlobs(meta.effectGlobs, dir, path) {
					return ast.SideEffectsForce
				}
				return ast.SideEffectsNone
			}
		}
		if dir == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ast.SideEffectsInferred
}

// matchesSideEffectGlobs applies npm's sideEffects list semantics: patterns
// without a slash match the basename at any depth, the rest match the path
// relative to the package directory.
func matchesSideEffectGlobs(globs []string, pkgDir, path string) bool {
	rel, err := filepath.Rel(pkgDir, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, glob := range globs {
		glob = strings.TrimPrefix(glob, "./")
		target := rel
		if !strings.Contains(glob, "/") {
			target = filepath.Base(rel)
		}
		if ok, err := doublestar.Match(glob, target); err == nil && ok {
			return true
		}
	}
	return false
}

type packageEffects int

const (
	effectsUnspecified packageEffects = iota
	effectsNone
	effectsList
)

type packageMeta struct {
	entry       string
	effects     packageEffects
	effectGlobs []string
}

// packageMeta parses and caches dir/package.json. Returns nil when the
// directory carries none.
func (r *Resolver) packageMeta(dir string) *packageMeta {
	r.mu.Lock()
	if meta, ok := r.pkgCache[dir]; ok {
		r.mu.Unlock()
		return meta
	}
	r.mu.Unlock()

	meta := readPackageMeta(filepath.Join(dir, "package.json"))

	r.mu.Lock()
	r.pkgCache[dir] = meta
	r.mu.Unlock()
	return meta
}

func readPackageMeta(path string) *packageMeta {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var raw struct {
		Main        string          `json:"main"`
		Module      string          `json:"module"`
		SideEffects json.RawMessage `json:"sideEffects"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	meta := &packageMeta{entry: raw.Main}
	if raw.Module != "" {
		// ESM entry wins over the CommonJS one.
		meta.entry = raw.Module
	}
	if len(raw.SideEffects) > 0 {
		var flag bool
		var globs []string
		switch {
		case json.Unmarshal(raw.SideEffects, &flag) == nil:
			if !flag {
				meta.effects = effectsNone
			}
		case json.Unmarshal(raw.SideEffects, &globs) == nil:
			meta.effects = effectsList
			meta.effectGlobs = globs
		}
	}
	return meta
}
