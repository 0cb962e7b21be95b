package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/esm-bundler/cache"
	"github.com/wippyai/esm-bundler/errors"
)

// phase tracks build progress through the pipeline. Stages assert the phase
// on entry; a violation is a programming error in the caller, not a build
// failure, and panics.
type phase int

const (
	phaseInit phase = iota
	phaseLoading
	phaseLoaded
	phaseOrdered
	phaseIncluded
	phaseAssigned
)

func (p phase) String() string {
	switch p {
	case phaseLoading:
		return "loading"
	case phaseLoaded:
		return "loaded"
	case phaseOrdered:
		return "ordered"
	case phaseIncluded:
		return "included"
	case phaseAssigned:
		return "assigned"
	}
	return "init"
}

// Graph coordinates one build: it owns the module table and runs the load,
// order, include and assign stages in sequence. A Graph is single-use; watch
// mode builds a fresh one per rebuild, carrying the cache snapshot over.
type Graph struct {
	opts  Options
	table *table
	phase phase

	entries         []*Module
	implicitEntries []*Module
	ordered         []*Module
	cycles          [][]string

	warnings      []errors.Warning
	warnedExports map[string]bool

	plugins *cache.Store
}

// Result carries everything a caller needs from a finished build.
type Result struct {
	Chunks []*Chunk
	// Cycles lists every import cycle found during ordering; each path
	// starts and ends with the same module id.
	Cycles   [][]string
	Warnings []errors.Warning
	// Cache is the snapshot to feed the next build for warm rebuilds.
	Cache *cache.Snapshot
}

// New validates the options and prepares a build.
func New(opts Options) (*Graph, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.CacheExpiry <= 0 {
		opts.CacheExpiry = cache.DefaultExpiry
	}
	return &Graph{
		opts:          opts,
		table:         newTable(),
		warnedExports: make(map[string]bool),
		plugins:       cache.NewStore(opts.Cache, opts.CacheExpiry),
	}, nil
}

// Build runs the full pipeline. The context flows into the resolver and
// source collaborators only; the analysis stages are synchronous and do not
// block.
func (g *Graph) Build(ctx context.Context) (*Result, error) {
	g.advance(phaseInit, phaseLoading)
	if err := g.loadModules(ctx); err != nil {
		return nil, err
	}
	g.advance(phaseLoading, phaseLoaded)
	g.applyManualChunksFn()

	roots := g.orderRoots()
	g.ordered, g.cycles = analyseExecution(roots)
	for _, cycle := range g.cycles {
		g.warn(errors.CircularDependency(cycle))
	}
	g.advance(phaseLoaded, phaseOrdered)
	Logger().Debug("execution order analysed",
		zap.Int("modules", len(g.ordered)),
		zap.Int("cycles", len(g.cycles)))

	if err := g.includeStatements(); err != nil {
		return nil, err
	}
	g.advance(phaseOrdered, phaseIncluded)

	chunks := g.assignChunks()
	g.advance(phaseIncluded, phaseAssigned)

	return &Result{
		Chunks:   chunks,
		Cycles:   g.cycles,
		Warnings: g.warnings,
		Cache:    g.CacheSnapshot(),
	}, nil
}

// orderRoots returns the execution-order analysis roots: entries first, then
// implicit entries, then manual-chunk modules, so list-form manual modules
// unreachable from any entry still receive positions and cycle checks.
func (g *Graph) orderRoots() []*Module {
	roots := make([]*Module, 0, len(g.entries)+len(g.implicitEntries))
	roots = append(roots, g.entries...)
	roots = append(roots, g.implicitEntries...)
	for _, m := range g.table.modules() {
		if m.manualAlias != "" {
			roots = append(roots, m)
		}
	}
	return roots
}

func (g *Graph) advance(from, to phase) {
	if g.phase != from {
		panic(fmt.Sprintf("graph: cannot enter phase %s from %s", to, g.phase))
	}
	g.phase = to
}

func (g *Graph) assertPhase(min phase, op string) {
	if g.phase < min {
		panic(fmt.Sprintf("graph: %s requires phase %s, currently %s", op, min, g.phase))
	}
}

// warn records a warning and forwards it to the configured handler.
func (g *Graph) warn(w errors.Warning) {
	g.warnings = append(g.warnings, w)
	if g.opts.OnWarn != nil {
		g.opts.OnWarn(w)
	}
	Logger().Warn("build warning",
		zap.String("code", string(w.Code)),
		zap.String("message", w.Message))
}

// ModuleInfo describes one module of the loaded graph.
type ModuleInfo struct {
	ID         string
	IsEntry    bool
	IsExternal bool
	// ImportedIDs holds resolved static targets in declaration order,
	// DynamicImportIDs resolved dynamic targets in call-site order.
	ImportedIDs      []string
	DynamicImportIDs []string
	// Importers and DynamicImporters are sorted for stable output.
	Importers        []string
	DynamicImporters []string
	HasSideEffects   bool
	// ImplicitlyLoadedAfter lists the ids this module is guaranteed to load
	// after; ImplicitlyLoadedBefore the inverse.
	ImplicitlyLoadedAfter  []string
	ImplicitlyLoadedBefore []string
}

var _ InfoAPI = (*Graph)(nil)

// ModuleIDs returns every known module id, internal and external, sorted.
func (g *Graph) ModuleIDs() []string {
	g.assertPhase(phaseLoaded, "ModuleIDs")
	return g.table.ids()
}

// ModuleInfo returns the info record for id. An unknown id is a hard error:
// callers asking for modules that were never loaded hold a stale view of the
// graph.
func (g *Graph) ModuleInfo(id string) (*ModuleInfo, error) {
	g.assertPhase(phaseLoaded, "ModuleInfo")
	switch n := g.table.lookup(id).(type) {
	case *Module:
		info := &ModuleInfo{
			ID:               n.ID,
			IsEntry:          n.IsEntry,
			Importers:        n.ImporterIDs(),
			DynamicImporters: n.DynamicImporterIDs(),
			HasSideEffects:   n.hasSideEffects(),
		}
		for _, dep := range n.Dependencies() {
			info.ImportedIDs = append(info.ImportedIDs, dep.ModuleID())
		}
		for _, dep := range n.DynamicDependencies() {
			info.DynamicImportIDs = append(info.DynamicImportIDs, dep.ModuleID())
		}
		for _, dep := range n.implicitlyLoadedAfter {
			info.ImplicitlyLoadedAfter = append(info.ImplicitlyLoadedAfter, dep.ID)
		}
		for _, dep := range n.implicitlyLoadedBefore {
			info.ImplicitlyLoadedBefore = append(info.ImplicitlyLoadedBefore, dep.ID)
		}
		return info, nil
	case *External:
		return &ModuleInfo{
			ID:             n.ID,
			IsExternal:     true,
			Importers:      n.ImporterIDs(),
			HasSideEffects: true,
		}, nil
	}
	return nil, errors.ModuleNotFound(id)
}

// PluginCache returns the named scoped key/value cache. Entries survive
// across builds through the snapshot until unused for CacheExpiry builds.
func (g *Graph) PluginCache(name string) *cache.PluginCache {
	return g.plugins.Plugin(name)
}

// CacheSnapshot serializes the build state future builds can reuse:
// per-module analysis facts keyed by content hash, plus the swept plugin
// store.
func (g *Graph) CacheSnapshot() *cache.Snapshot {
	g.assertPhase(phaseLoaded, "CacheSnapshot")
	snap := &cache.Snapshot{Plugins: g.plugins.Sweep()}
	for _, id := range g.table.ids() {
		m, ok := g.table.lookup(id).(*Module)
		if !ok {
			continue
		}
		snap.Modules = append(snap.Modules, cache.ModuleRecord{
			ID:          m.ID,
			ContentHash: cache.HashContent(m.Facts.Code),
			Facts:       m.Facts,
		})
	}
	return snap
}
