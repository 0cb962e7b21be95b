package graph

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/esm-bundler/errors"
)

// Chunk is one output unit of the build: an execution-ordered module list
// plus the entry modules it serves. Alias is set for manual chunks only.
type Chunk struct {
	Alias   string
	Modules []*Module
	// Entries are the static entry modules living in this chunk.
	// DynamicEntries are modules loaded on demand (dynamic import targets and
	// implicit entries) that landed here.
	Entries        []*Module
	DynamicEntries []*Module
}

// ModuleIDs returns the chunk's module ids in execution order.
func (c *Chunk) ModuleIDs() []string {
	ids := make([]string, len(c.Modules))
	for i, m := range c.Modules {
		ids[i] = m.ID
	}
	return ids
}

// assignChunks partitions the included modules into chunks according to the
// configured mode. Modules keep a back-pointer to their chunk; excluded
// modules stay chunk-less.
func (g *Graph) assignChunks() []*Chunk {
	var chunks []*Chunk
	switch {
	case g.opts.InlineDynamicImports:
		chunks = g.assignSingleChunk()
	case g.opts.PreserveModules:
		chunks = g.assignPerModuleChunks()
	default:
		chunks = g.assignAutomaticChunks()
	}
	Logger().Debug("chunk assignment complete",
		zap.Int("chunks", len(chunks)),
		zap.String("mode", g.chunkMode()))
	return chunks
}

func (g *Graph) chunkMode() string {
	switch {
	case g.opts.InlineDynamicImports:
		return "inline-dynamic-imports"
	case g.opts.PreserveModules:
		return "preserve-modules"
	}
	return "automatic"
}

// assignSingleChunk collapses the whole build into one chunk. Option
// validation already guaranteed at most one entry and no implicit entries.
func (g *Graph) assignSingleChunk() []*Chunk {
	c := &Chunk{}
	for _, m := range g.ordered {
		if !m.IsIncluded() && !m.IsEntry {
			continue
		}
		c.Modules = append(c.Modules, m)
		m.chunk = c
		if m.IsEntry {
			c.Entries = append(c.Entries, m)
		}
	}
	if len(c.Modules) == 0 {
		return nil
	}
	return []*Chunk{c}
}

// assignPerModuleChunks emits one chunk per module that is included, an
// entry, or the target of an included dynamic import.
func (g *Graph) assignPerModuleChunks() []*Chunk {
	var chunks []*Chunk
	for _, m := range g.ordered {
		dynamicTarget := len(m.includedDynamicImporters()) > 0 || len(m.implicitlyLoadedAfter) > 0
		if !m.IsIncluded() && !m.IsEntry && !dynamicTarget {
			continue
		}
		c := &Chunk{Modules: []*Module{m}}
		if m.IsEntry {
			c.Entries = []*Module{m}
		} else if dynamicTarget {
			c.DynamicEntries = []*Module{m}
		}
		m.chunk = c
		chunks = append(chunks, c)
	}
	return chunks
}

// assignAutomaticChunks runs the full grouping algorithm: manual chunks
// claim their static closures first, then every remaining module is coloured
// with the set of entries that reach it and modules with identical colour
// signatures share a chunk. Dynamic entries only colour modules their
// triggering entries do not already carry, so a lazily loaded subtree shared
// with an eager one is not duplicated.
func (g *Graph) assignAutomaticChunks() []*Chunk {
	a := &chunkAssigner{
		graph:      g,
		inManual:   make(map[*Module]bool),
		assigned:   make(map[*Module]map[*Module]bool),
		staticSet:  make(map[*Module]bool),
		dynamicSet: make(map[*Module]bool),
		entrySet:   make(map[*Module]bool),
	}
	manual := a.claimManualChunks()
	a.analyzeEntryDependence()
	a.buildDynamicDependentEntries()

	for _, entry := range g.entries {
		a.staticSet[entry] = true
	}
	for _, entry := range g.entries {
		if !a.inManual[entry] {
			a.assignEntryToStaticDependencies(entry, nil)
		}
	}
	for _, entry := range a.allEntries {
		if a.dynamicSet[entry] && !a.inManual[entry] {
			a.assignEntryToStaticDependencies(entry, a.dynDependent[entry])
		}
	}

	chunks := a.finalizeManual(manual)
	return append(chunks, a.groupBySignature()...)
}

// chunkAssigner carries the working state of automatic assignment. All maps
// key on module identity; determinism comes from iterating the ordered
// module and entry lists, never the maps.
type chunkAssigner struct {
	graph    *Graph
	inManual map[*Module]bool

	// allEntries is the signature column order: static entries first, then
	// dynamic entries in discovery order. dependent[m] holds the entries
	// reaching m; assigned[m] the entries m was coloured with.
	allEntries []*Module
	entrySet   map[*Module]bool
	staticSet  map[*Module]bool
	dynamicSet map[*Module]bool

	dependent    map[*Module]map[*Module]bool
	dynDependent map[*Module]map[*Module]bool

	assigned map[*Module]map[*Module]bool
}

// claimManualChunks walks each alias's seed modules and claims their static
// dependency closure. Every seed is pre-claimed so one alias can never
// absorb another's seed; contested non-seed dependencies go to the first
// alias in sorted order.
func (a *chunkAssigner) claimManualChunks() []*Chunk {
	seedsByAlias := make(map[string][]*Module)
	var aliases []string
	for _, m := range a.graph.ordered {
		if m.manualAlias == "" {
			continue
		}
		if _, ok := seedsByAlias[m.manualAlias]; !ok {
			aliases = append(aliases, m.manualAlias)
		}
		seedsByAlias[m.manualAlias] = append(seedsByAlias[m.manualAlias], m)
		a.inManual[m] = true
	}
	sort.Strings(aliases)

	var chunks []*Chunk
	for _, alias := range aliases {
		c := &Chunk{Alias: alias}
		work := append([]*Module(nil), seedsByAlias[alias]...)
		enqueued := make(map[*Module]bool, len(work))
		for _, seed := range work {
			enqueued[seed] = true
		}
		for i := 0; i < len(work); i++ {
			m := work[i]
			a.inManual[m] = true
			c.Modules = append(c.Modules, m)
			for _, dep := range m.Dependencies() {
				if target, ok := dep.(*Module); ok && !a.inManual[target] && !enqueued[target] {
					enqueued[target] = true
					work = append(work, target)
				}
			}
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// analyzeEntryDependence computes, per module, the set of entries that reach
// it through live static edges, discovering dynamic entries along the way.
// Dynamic entries found mid-walk are themselves walked as entries.
func (a *chunkAssigner) analyzeEntryDependence() {
	a.dependent = make(map[*Module]map[*Module]bool)
	a.allEntries = append([]*Module(nil), a.graph.entries...)
	for _, e := range a.allEntries {
		a.entrySet[e] = true
	}
	for i := 0; i < len(a.allEntries); i++ {
		entry := a.allEntries[i]
		work := []*Module{entry}
		seen := map[*Module]bool{entry: true}
		for len(work) > 0 {
			m := work[0]
			work = work[1:]
			set := a.dependent[m]
			if set == nil {
				set = make(map[*Module]bool)
				a.dependent[m] = set
			}
			set[entry] = true
			for _, dep := range m.liveStaticDependencies() {
				if !seen[dep] {
					seen[dep] = true
					work = append(work, dep)
				}
			}
			for _, dep := range m.DynamicDependencies() {
				target, ok := dep.(*Module)
				if !ok || len(target.includedDynamicImporters()) == 0 {
					continue
				}
				a.addDynamicEntry(target)
			}
			for _, implicit := range m.implicitlyLoadedBefore {
				a.addDynamicEntry(implicit)
			}
		}
	}
}

func (a *chunkAssigner) addDynamicEntry(m *Module) {
	a.dynamicSet[m] = true
	if !a.entrySet[m] {
		a.entrySet[m] = true
		a.allEntries = append(a.allEntries, m)
	}
}

// buildDynamicDependentEntries records, per dynamic entry, the entries that
// can cause it to load: the entries reaching its included dynamic importers
// or, for implicit entries, its dependants.
func (a *chunkAssigner) buildDynamicDependentEntries() {
	a.dynDependent = make(map[*Module]map[*Module]bool)
	for _, entry := range a.allEntries {
		if !a.dynamicSet[entry] {
			continue
		}
		set := make(map[*Module]bool)
		a.dynDependent[entry] = set
		triggers := entry.includedDynamicImporters()
		triggers = append(triggers, entry.implicitlyLoadedAfter...)
		for _, trigger := range triggers {
			for e := range a.dependent[trigger] {
				set[e] = true
			}
		}
	}
}

// assignEntryToStaticDependencies colours entry's live static closure with
// entry, stopping at manual-chunk modules. For a dynamic entry the colouring
// of a module is skipped, subtree included, when every entry able to trigger
// the load already carries the module.
func (a *chunkAssigner) assignEntryToStaticDependencies(entry *Module, dynDependent map[*Module]bool) {
	work := []*Module{entry}
	enqueued := map[*Module]bool{entry: true}
	for i := 0; i < len(work); i++ {
		m := work[i]
		colours := a.assigned[m]
		if colours == nil {
			colours = make(map[*Module]bool)
			a.assigned[m] = colours
		}
		if dynDependent != nil && a.containedOrDynamicallyDependent(dynDependent, colours) {
			continue
		}
		colours[entry] = true
		for _, dep := range m.liveStaticDependencies() {
			if !a.inManual[dep] && !enqueued[dep] {
				enqueued[dep] = true
				work = append(work, dep)
			}
		}
	}
}

// containedOrDynamicallyDependent reports whether every entry in entryPoints
// either already carries the module (containedIn) or is itself a dynamic
// entry whose triggers all do, transitively. Any reachable static entry not
// in containedIn settles it.
func (a *chunkAssigner) containedOrDynamicallyDependent(entryPoints, containedIn map[*Module]bool) bool {
	var work []*Module
	checked := make(map[*Module]bool, len(entryPoints))
	for e := range entryPoints {
		checked[e] = true
		work = append(work, e)
	}
	for i := 0; i < len(work); i++ {
		entry := work[i]
		if containedIn[entry] {
			continue
		}
		if a.staticSet[entry] {
			return false
		}
		for dep := range a.dynDependent[entry] {
			if !checked[dep] {
				checked[dep] = true
				work = append(work, dep)
			}
		}
	}
	return true
}

// finalizeManual filters manual chunks down to live modules and warns when
// an alias ends up with nothing to hold.
func (a *chunkAssigner) finalizeManual(manual []*Chunk) []*Chunk {
	var chunks []*Chunk
	for _, c := range manual {
		c.Modules = a.liveModules(c.Modules)
		if len(c.Modules) == 0 {
			a.graph.warn(errors.EmptyChunk(c.Alias))
			continue
		}
		sortByExecIndex(c.Modules)
		a.designateEntries(c)
		for _, m := range c.Modules {
			m.chunk = c
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// groupBySignature buckets coloured modules by their entry-reachability
// signature, a fixed-width string over the entry columns, and emits one
// chunk per distinct signature in first-appearance order.
func (a *chunkAssigner) groupBySignature() []*Chunk {
	bySig := make(map[string]*Chunk)
	var chunks []*Chunk
	for _, m := range a.graph.ordered {
		colours, ok := a.assigned[m]
		if !ok || a.inManual[m] {
			continue
		}
		if !a.live(m) {
			continue
		}
		var sig strings.Builder
		for _, entry := range a.allEntries {
			if colours[entry] {
				sig.WriteByte('X')
			} else {
				sig.WriteByte('_')
			}
		}
		c := bySig[sig.String()]
		if c == nil {
			c = &Chunk{}
			bySig[sig.String()] = c
			chunks = append(chunks, c)
		}
		c.Modules = append(c.Modules, m)
		m.chunk = c
	}
	for _, c := range chunks {
		a.designateEntries(c)
	}
	return chunks
}

// live reports whether a module belongs in chunk output: it survived
// inclusion, or is an entry, or is loaded on demand.
func (a *chunkAssigner) live(m *Module) bool {
	return m.IsIncluded() || m.IsEntry || a.dynamicSet[m]
}

func (a *chunkAssigner) liveModules(modules []*Module) []*Module {
	var out []*Module
	for _, m := range modules {
		if a.live(m) {
			out = append(out, m)
		}
	}
	return out
}

func (a *chunkAssigner) designateEntries(c *Chunk) {
	for _, m := range c.Modules {
		switch {
		case m.IsEntry:
			c.Entries = append(c.Entries, m)
		case a.dynamicSet[m]:
			c.DynamicEntries = append(c.DynamicEntries, m)
		}
	}
}

func sortByExecIndex(modules []*Module) {
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].ExecIndex < modules[j].ExecIndex
	})
}

// liveStaticDependencies returns the static dependency modules that carry
// weight after inclusion: included or executed targets, plus the live modules
// reached through dependencies that are neither. A pure re-export facade
// contributes no code of its own but still links its importer to the modules
// behind it.
func (m *Module) liveStaticDependencies() []*Module {
	var out []*Module
	seen := map[*Module]bool{m: true}
	var walk func(*Module)
	walk = func(from *Module) {
		for _, dep := range from.Dependencies() {
			target, ok := dep.(*Module)
			if !ok || seen[target] {
				continue
			}
			seen[target] = true
			if target.IsIncluded() || target.Executed {
				out = append(out, target)
				continue
			}
			walk(target)
		}
	}
	walk(m)
	return out
}
