package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/errors"
	"github.com/wippyai/esm-bundler/resolve"
)

// edgeKind discriminates why a module load was requested; wiring differs per
// kind once the module materializes.
type edgeKind int

const (
	edgeEntry edgeKind = iota
	edgeManual
	edgeStatic
	edgeDynamic
	edgeImplicitDependant
)

type pendingEdge struct {
	kind edgeKind
	// from is the importing module for static and dynamic edges.
	from *Module
	// source is the specifier as written: the key into from's resolution map
	// for static edges, the requested specifier for root edges.
	source string
	// index is the Options.Entries slot for entry and implicit-dependant
	// edges, the call-site slot for dynamic edges.
	index int
	alias string
}

// fetchRequest is one module the current round must obtain: a root specifier
// still to be resolved, or a known id discovered through an edge. Requests
// for the same target merge, accumulating edges.
type fetchRequest struct {
	specifier string
	id        string
	// sideEffects carries the resolver's override from whichever resolution
	// first requested the module.
	sideEffects ast.SideEffects
	edges       []pendingEdge
	// manualOnly stays true while every requesting edge is a manual-chunk
	// list item; failures then downgrade from fatal to a warning.
	manualOnly bool
}

type fetchResult struct {
	res        resolve.Resolved
	resolveErr error
	facts      *ast.ModuleFacts
	loadErr    error
	// sources is parallel to facts.ImportSources, dynamics to
	// facts.DynamicImports (runtime-expression sites left zero).
	sources  []sourceResolution
	dynamics []sourceResolution
}

type sourceResolution struct {
	source string
	res    resolve.Resolved
	err    error
}

// loader drives module discovery in rounds: every round fans out one
// goroutine per requested module, each resolving and loading concurrently,
// then joins and applies the results sequentially in request order. All
// graph mutation happens in that sequential application, so wiring is
// deterministic no matter how the fetches interleave.
type loader struct {
	g   *Graph
	ctx context.Context

	// entryModules holds the loaded module per Options.Entries slot.
	entryModules []*Module
	// implicitLinks stages implicit-dependant relationships discovered during
	// wiring; they resolve only after every entry slot is populated, since a
	// dependant can load before the implicit entry referencing it.
	implicitLinks []implicitLink

	next       []*fetchRequest
	nextByID   map[string]*fetchRequest
	rootBySpec map[string]*fetchRequest
}

type implicitLink struct {
	// index is the Options.Entries slot of the implicit entry.
	index     int
	dependant *Module
}

func (g *Graph) loadModules(ctx context.Context) error {
	l := &loader{
		g:            g,
		ctx:          ctx,
		entryModules: make([]*Module, len(g.opts.Entries)),
		nextByID:     make(map[string]*fetchRequest),
		rootBySpec:   make(map[string]*fetchRequest),
	}
	l.scheduleRoots()
	for round := 0; len(l.next) > 0; round++ {
		if err := l.runRound(round); err != nil {
			return err
		}
	}
	if err := l.wireImplicitLinks(); err != nil {
		return err
	}
	l.finalizeEntries()
	Logger().Debug("module graph loaded",
		zap.Int("modules", len(g.table.modules())),
		zap.Int("externals", len(g.table.externals())),
		zap.Int("entries", len(g.entries)),
		zap.Int("implicit_entries", len(g.implicitEntries)))
	return nil
}

// scheduleRoots queues the round-zero requests: entry specifiers in
// configuration order, manual-chunk list items by sorted alias, then
// implicit-dependant specifiers. Implicit links are staged rather than wired
// on the spot, so a dependant applying before its implicit entry is fine.
func (l *loader) scheduleRoots() {
	for i, ep := range l.g.opts.Entries {
		l.enqueueRoot(ep.Specifier, pendingEdge{kind: edgeEntry, index: i, source: ep.Specifier}, false)
	}
	for _, alias := range sortedAliases(l.g.opts.ManualChunks) {
		for _, spec := range l.g.opts.ManualChunks[alias] {
			l.enqueueRoot(spec, pendingEdge{kind: edgeManual, alias: alias, source: spec}, true)
		}
	}
	for i, ep := range l.g.opts.Entries {
		for _, spec := range ep.ImplicitlyLoadedAfter {
			l.enqueueRoot(spec, pendingEdge{kind: edgeImplicitDependant, index: i, source: spec}, false)
		}
	}
}

func (l *loader) enqueueRoot(specifier string, edge pendingEdge, manual bool) {
	if req, ok := l.rootBySpec[specifier]; ok {
		req.edges = append(req.edges, edge)
		req.manualOnly = req.manualOnly && manual
		return
	}
	req := &fetchRequest{specifier: specifier, edges: []pendingEdge{edge}, manualOnly: manual}
	l.rootBySpec[specifier] = req
	l.next = append(l.next, req)
}

func (l *loader) enqueueID(res resolve.Resolved, edge pendingEdge) {
	if req, ok := l.nextByID[res.ID]; ok {
		req.edges = append(req.edges, edge)
		req.manualOnly = false
		return
	}
	req := &fetchRequest{id: res.ID, sideEffects: res.SideEffects, edges: []pendingEdge{edge}}
	l.nextByID[res.ID] = req
	l.next = append(l.next, req)
}

func (l *loader) runRound(round int) error {
	requests := l.next
	l.next = nil
	l.nextByID = make(map[string]*fetchRequest)

	results := make([]*fetchResult, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *fetchRequest) {
			defer wg.Done()
			results[i] = l.fetch(req)
		}(i, req)
	}
	wg.Wait()
	Logger().Debug("load round complete",
		zap.Int("round", round),
		zap.Int("fetched", len(requests)))

	for i, req := range requests {
		if err := l.apply(req, results[i]); err != nil {
			return err
		}
	}
	return nil
}

// fetch obtains one module: root specifiers resolve first, then the source
// loads, then every discovered import specifier resolves concurrently. A
// module only counts as loaded once all of its resolutions are in.
func (l *loader) fetch(req *fetchRequest) *fetchResult {
	out := &fetchResult{}
	id := req.id
	if req.specifier != "" {
		out.res, out.resolveErr = l.g.opts.Resolver.ResolveSpecifier(l.ctx, req.specifier, "")
		if out.resolveErr != nil || out.res.External {
			return out
		}
		id = out.res.ID
	}
	out.facts, out.loadErr = l.g.opts.Source.Load(l.ctx, id)
	if out.loadErr != nil {
		return out
	}

	out.sources = make([]sourceResolution, len(out.facts.ImportSources))
	out.dynamics = make([]sourceResolution, len(out.facts.DynamicImports))
	var wg sync.WaitGroup
	resolveInto := func(slot *sourceResolution, source string) {
		defer wg.Done()
		slot.source = source
		slot.res, slot.err = l.g.opts.Resolver.ResolveSpecifier(l.ctx, source, id)
	}
	for i, source := range out.facts.ImportSources {
		wg.Add(1)
		go resolveInto(&out.sources[i], source)
	}
	for i, d := range out.facts.DynamicImports {
		if d.Specifier == "" {
			continue // runtime expression, nothing to resolve
		}
		wg.Add(1)
		go resolveInto(&out.dynamics[i], d.Specifier)
	}
	wg.Wait()
	return out
}

// apply folds one fetch result into the graph. Runs on the single
// application goroutine; this is where insertion order, edge order and
// therefore all downstream determinism is fixed.
func (l *loader) apply(req *fetchRequest, out *fetchResult) error {
	id := req.id
	sideEffects := req.sideEffects
	if req.specifier != "" {
		if out.resolveErr != nil {
			return l.rootUnresolved(req, out.resolveErr)
		}
		if out.res.External {
			return l.rootExternal(req)
		}
		id = out.res.ID
		sideEffects = out.res.SideEffects
	}
	if out.loadErr != nil {
		if req.manualOnly {
			for _, e := range req.edges {
				l.g.warn(errors.ChunkLoadFailed(e.alias, e.source, out.loadErr))
			}
			return nil
		}
		return errors.LoadFailed(id, out.loadErr)
	}

	m := newModule(id, out.facts)
	m.SideEffects = sideEffects
	node, fresh := l.g.table.insert(m)
	if err := l.wireEdges(req.edges, node); err != nil {
		return err
	}
	if !fresh {
		// Another specifier reached the same id this round; the duplicate
		// load is discarded along with its resolutions.
		return nil
	}
	for i := range out.sources {
		if err := l.applyStatic(m, &out.sources[i]); err != nil {
			return err
		}
	}
	for i := range out.dynamics {
		if out.dynamics[i].source == "" {
			continue
		}
		if err := l.applyDynamic(m, i, &out.dynamics[i]); err != nil {
			return err
		}
	}
	return nil
}

// rootUnresolved handles a failed root resolution: fatal for entries and
// implicit dependants, a warning per alias for manual-chunk items.
func (l *loader) rootUnresolved(req *fetchRequest, cause error) error {
	for _, e := range req.edges {
		if e.kind == edgeEntry || e.kind == edgeImplicitDependant {
			return errors.UnresolvedImport(req.specifier, "", cause)
		}
	}
	for _, e := range req.edges {
		l.g.warn(errors.ChunkLoadFailed(e.alias, req.specifier, cause))
	}
	return nil
}

func (l *loader) rootExternal(req *fetchRequest) error {
	for _, e := range req.edges {
		switch e.kind {
		case edgeEntry:
			return errors.InvalidOption(fmt.Sprintf("entry module %q cannot be external", req.specifier))
		case edgeImplicitDependant:
			return errors.InvalidOption(fmt.Sprintf("implicit dependant %q cannot be external", req.specifier))
		}
	}
	for _, e := range req.edges {
		l.g.warn(errors.ChunkLoadFailed(e.alias, req.specifier, fmt.Errorf("module is external")))
	}
	return nil
}

func (l *loader) wireEdges(edges []pendingEdge, node ModuleNode) error {
	for _, e := range edges {
		var err error
		switch e.kind {
		case edgeEntry:
			err = l.wireEntry(e, node)
		case edgeManual:
			err = l.wireManual(e, node)
		case edgeStatic:
			wireStaticEdge(e.from, e.source, node)
		case edgeDynamic:
			wireDynamicEdge(e.from, e.index, node)
		case edgeImplicitDependant:
			err = l.stageImplicitDependant(e, node)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) wireEntry(e pendingEdge, node ModuleNode) error {
	m, ok := node.(*Module)
	if !ok {
		return errors.InvalidOption(fmt.Sprintf("entry module %q cannot be external", e.source))
	}
	l.entryModules[e.index] = m
	ep := l.g.opts.Entries[e.index]
	if len(ep.ImplicitlyLoadedAfter) == 0 {
		if !m.IsEntry {
			m.IsEntry = true
			m.EntryName = ep.Name
			m.Preserve = l.g.opts.PreserveEntrySignatures
		}
		return nil
	}
	// Implicit entry: designated unless some other entry point already made
	// the module a real entry, which supersedes the implicit relationship.
	if !m.IsEntry && m.EntryName == "" {
		m.EntryName = ep.Name
		m.Preserve = l.g.opts.PreserveEntrySignatures
	}
	return nil
}

func (l *loader) wireManual(e pendingEdge, node ModuleNode) error {
	m, ok := node.(*Module)
	if !ok {
		l.g.warn(errors.ChunkLoadFailed(e.alias, e.source, fmt.Errorf("module is external")))
		return nil
	}
	if m.manualAlias != "" && m.manualAlias != e.alias {
		return errors.DuplicateChunkAlias(m.ID, m.manualAlias, e.alias)
	}
	m.manualAlias = e.alias
	return nil
}

func (l *loader) stageImplicitDependant(e pendingEdge, node ModuleNode) error {
	dependant, ok := node.(*Module)
	if !ok {
		return errors.InvalidOption(fmt.Sprintf("implicit dependant %q cannot be external", e.source))
	}
	l.implicitLinks = append(l.implicitLinks, implicitLink{index: e.index, dependant: dependant})
	return nil
}

// wireImplicitLinks resolves the staged links once discovery is done and
// every entry designation is final.
func (l *loader) wireImplicitLinks() error {
	for _, link := range l.implicitLinks {
		implicit := l.entryModules[link.index]
		if implicit == nil || implicit.IsEntry {
			// Entry promotion dissolves the implicit relationship.
			continue
		}
		if implicit == link.dependant {
			return errors.InvalidOption(fmt.Sprintf("module %q cannot implicitly load after itself", implicit.ID))
		}
		if !containsModule(implicit.implicitlyLoadedAfter, link.dependant) {
			implicit.implicitlyLoadedAfter = append(implicit.implicitlyLoadedAfter, link.dependant)
		}
		if !containsModule(link.dependant.implicitlyLoadedBefore, implicit) {
			link.dependant.implicitlyLoadedBefore = append(link.dependant.implicitlyLoadedBefore, implicit)
		}
	}
	return nil
}

func wireStaticEdge(from *Module, source string, node ModuleNode) {
	from.resolved[source] = node
	switch n := node.(type) {
	case *Module:
		n.importers[from.ID] = true
	case *External:
		n.importers[from.ID] = true
		for _, rec := range from.Facts.Imports {
			if rec.Source == source {
				n.addImportedName(rec.Imported, from.ID)
			}
		}
	}
}

func wireDynamicEdge(from *Module, index int, node ModuleNode) {
	from.dynamicResolved[index] = node
	if n, ok := node.(*Module); ok && !containsModule(n.dynamicImporters, from) {
		n.dynamicImporters = append(n.dynamicImporters, from)
	}
}

// applyStatic wires one static import resolution: externals and known
// modules wire immediately, unknown ids queue for the next round. An
// unresolvable bare specifier degrades to an implied external with a
// warning; a relative one is a broken file reference and fails the build.
func (l *loader) applyStatic(m *Module, sr *sourceResolution) error {
	if sr.err != nil {
		if isPathSpecifier(sr.source) {
			return errors.UnresolvedImport(sr.source, m.ID, sr.err)
		}
		l.g.warn(errors.ImpliedExternal(sr.source, m.ID))
		wireStaticEdge(m, sr.source, l.g.table.claimExternal(sr.source))
		return nil
	}
	if sr.res.External {
		wireStaticEdge(m, sr.source, l.g.table.claimExternal(sr.res.ID))
		return nil
	}
	if node := l.g.table.lookup(sr.res.ID); node != nil {
		wireStaticEdge(m, sr.source, node)
		return nil
	}
	l.enqueueID(sr.res, pendingEdge{kind: edgeStatic, from: m, source: sr.source})
	return nil
}

func (l *loader) applyDynamic(m *Module, index int, sr *sourceResolution) error {
	if sr.err != nil {
		if isPathSpecifier(sr.source) {
			return errors.UnresolvedImport(sr.source, m.ID, sr.err)
		}
		l.g.warn(errors.ImpliedExternal(sr.source, m.ID))
		wireDynamicEdge(m, index, l.g.table.claimExternal(sr.source))
		return nil
	}
	if sr.res.External {
		wireDynamicEdge(m, index, l.g.table.claimExternal(sr.res.ID))
		return nil
	}
	if node := l.g.table.lookup(sr.res.ID); node != nil {
		wireDynamicEdge(m, index, node)
		return nil
	}
	l.enqueueID(sr.res, pendingEdge{kind: edgeDynamic, from: m, index: index})
	return nil
}

// applyManualChunksFn invokes the callback once per loaded module in sorted
// id order, after discovery finished, so the callback sees the whole graph.
func (g *Graph) applyManualChunksFn() {
	fn := g.opts.ManualChunksFn
	if fn == nil {
		return
	}
	for _, id := range g.table.ids() {
		m, ok := g.table.lookup(id).(*Module)
		if !ok {
			continue
		}
		if alias := fn(id, g); alias != "" {
			m.manualAlias = alias
		}
	}
}

// finalizeEntries splits the entry slots into real and implicit entry lists,
// both in configuration order.
func (l *loader) finalizeEntries() {
	seen := make(map[*Module]bool)
	for _, m := range l.entryModules {
		if m == nil || seen[m] {
			continue
		}
		seen[m] = true
		if m.IsEntry {
			l.g.entries = append(l.g.entries, m)
		} else {
			l.g.implicitEntries = append(l.g.implicitEntries, m)
		}
	}
}

func sortedAliases(manual map[string][]string) []string {
	if len(manual) == 0 {
		return nil
	}
	aliases := make([]string, 0, len(manual))
	for alias := range manual {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// isPathSpecifier reports whether a specifier addresses the filesystem
// directly rather than a package by name.
func isPathSpecifier(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || strings.HasPrefix(spec, "/")
}

func containsModule(list []*Module, m *Module) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}
