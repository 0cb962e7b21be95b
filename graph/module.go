package graph

import (
	"sort"

	"github.com/wippyai/esm-bundler/ast"
)

// PreserveSignature controls whether an entry module's export surface must
// stay observable even when nothing inside the build references it. Anything
// but PreserveFalse seeds every export as live; the distinction between the
// other modes only matters to a renderer deciding whether a facade chunk is
// needed.
type PreserveSignature int

const (
	// PreserveExportsOnly keeps all exports but allows the renderer to reuse
	// an existing chunk when the signatures line up. The default.
	PreserveExportsOnly PreserveSignature = iota
	// PreserveStrict keeps the exact export surface, forcing facades when a
	// module is both an entry and a shared dependency.
	PreserveStrict
	// PreserveAllowExtension keeps all exports but tolerates additional ones
	// appearing in the emitted chunk.
	PreserveAllowExtension
	// PreserveFalse lets unreferenced exports be tree-shaken away.
	PreserveFalse
)

func (p PreserveSignature) String() string {
	switch p {
	case PreserveStrict:
		return "strict"
	case PreserveAllowExtension:
		return "allow-extension"
	case PreserveFalse:
		return "false"
	}
	return "exports-only"
}

// ModuleNode is the tagged variant over internal and external modules. Every
// consumer switches exhaustively on *Module and *External; the unexported
// marker keeps the variant closed.
type ModuleNode interface {
	ModuleID() string
	node()
}

// Module is one internal module: a resolved source file with statement-level
// facts. Identity is the canonical ID and never changes after creation; the
// loader wires edges once and later stages only flip the monotonic state
// flags (Executed, statement inclusion, chunk assignment).
type Module struct {
	ID string
	// EntryName is the user-facing name for entry modules, "" otherwise.
	EntryName string

	Facts *ast.ModuleFacts
	Body  *ast.Body

	SideEffects ast.SideEffects
	Preserve    PreserveSignature
	IsEntry     bool

	// Executed marks that the module's top-level code must run. Flips false
	// to true exactly once per build.
	Executed bool
	// ExecIndex is the module's position in the deterministic execution
	// order, dense over internal modules.
	ExecIndex int

	sources         []string              // static import sources, declaration order
	resolved        map[string]ModuleNode // source -> target
	dynamicResolved []ModuleNode          // parallel to Facts.DynamicImports, nil = runtime expression
	importsByLocal  map[string]ast.ImportRecord
	exportsByName   map[string]ast.ExportRecord

	importers        map[string]bool
	dynamicImporters []*Module

	// implicitlyLoadedAfter is set on implicit entry modules: the modules
	// that finish executing before this one loads. implicitlyLoadedBefore is
	// the inverse, set on those modules.
	implicitlyLoadedAfter  []*Module
	implicitlyLoadedBefore []*Module

	manualAlias string
	chunk       *Chunk
}

func newModule(id string, facts *ast.ModuleFacts) *Module {
	m := &Module{
		ID:             id,
		Facts:          facts,
		Body:           ast.NewBody(facts.Statements),
		sources:        facts.ImportSources,
		resolved:       make(map[string]ModuleNode, len(facts.ImportSources)),
		importsByLocal: make(map[string]ast.ImportRecord, len(facts.Imports)),
		exportsByName:  make(map[string]ast.ExportRecord, len(facts.Exports)),
		importers:      make(map[string]bool),
	}
	for _, rec := range facts.Imports {
		m.importsByLocal[rec.Local] = rec
	}
	for _, rec := range facts.Exports {
		m.exportsByName[rec.Exported] = rec
	}
	if len(facts.DynamicImports) > 0 {
		m.dynamicResolved = make([]ModuleNode, len(facts.DynamicImports))
	}
	return m
}

func (m *Module) ModuleID() string { return m.ID }
func (m *Module) node()            {}

// Dependencies returns the resolved static import targets in declaration
// order. Unresolved sources (only possible mid-load) are skipped.
func (m *Module) Dependencies() []ModuleNode {
	deps := make([]ModuleNode, 0, len(m.sources))
	for _, source := range m.sources {
		if target, ok := m.resolved[source]; ok {
			deps = append(deps, target)
		}
	}
	return deps
}

// DynamicDependencies returns the statically-known dynamic import targets in
// call-site order. Runtime-expression sites contribute nothing.
func (m *Module) DynamicDependencies() []ModuleNode {
	var deps []ModuleNode
	for _, target := range m.dynamicResolved {
		if target != nil {
			deps = append(deps, target)
		}
	}
	return deps
}

// IsIncluded reports whether any of the module's statements survived
// inclusion.
func (m *Module) IsIncluded() bool {
	return m.Body.HasIncluded()
}

// hasSideEffects resolves the tri-state side-effect flag against the
// module's own statements.
func (m *Module) hasSideEffects() bool {
	switch m.SideEffects {
	case ast.SideEffectsForce:
		return true
	case ast.SideEffectsNone:
		return false
	}
	return m.Facts.HasSideEffects()
}

// includedDynamicImporters returns the dynamic importers whose import call
// site survived inclusion, in wiring order.
func (m *Module) includedDynamicImporters() []*Module {
	var out []*Module
	for _, importer := range m.dynamicImporters {
		if importer.dynamicImportIncluded(m) {
			out = append(out, importer)
		}
	}
	return out
}

// dynamicImportIncluded reports whether any included statement of m
// dynamically imports target.
func (m *Module) dynamicImportIncluded(target *Module) bool {
	for i, resolved := range m.dynamicResolved {
		if mod, ok := resolved.(*Module); ok && mod == target {
			if m.Body.IncludedAt(m.Facts.DynamicImports[i].Pos) {
				return true
			}
		}
	}
	return false
}

// ImporterIDs returns the ids of modules statically importing this one,
// sorted for stable output.
func (m *Module) ImporterIDs() []string {
	ids := make([]string, 0, len(m.importers))
	for id := range m.importers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DynamicImporterIDs returns the ids of modules dynamically importing this
// one, sorted.
func (m *Module) DynamicImporterIDs() []string {
	ids := make([]string, 0, len(m.dynamicImporters))
	for _, importer := range m.dynamicImporters {
		ids = append(ids, importer.ID)
	}
	sort.Strings(ids)
	return ids
}

// ManualAlias returns the manual-chunk alias the module was pinned to, or "".
func (m *Module) ManualAlias() string { return m.manualAlias }

// Chunk returns the chunk the module was assigned to, nil before assignment
// or when the module was excluded.
func (m *Module) Chunk() *Chunk { return m.chunk }

// External is a module resolved outside the graph: no statements, no
// inclusion propagation. It tracks its importers and which imported names
// were actually referenced so unused imports can be reported.
type External struct {
	ID        string
	ExecIndex int

	importers map[string]bool
	// importedNames maps each name imported from this module to the ids of
	// the modules importing it. usedNames marks names referenced by included
	// statements.
	importedNames map[string]map[string]bool
	usedNames     map[string]bool
}

func newExternal(id string) *External {
	return &External{
		ID:            id,
		importers:     make(map[string]bool),
		importedNames: make(map[string]map[string]bool),
		usedNames:     make(map[string]bool),
	}
}

func (e *External) ModuleID() string { return e.ID }
func (e *External) node()            {}

func (e *External) addImportedName(name, importer string) {
	byImporter := e.importedNames[name]
	if byImporter == nil {
		byImporter = make(map[string]bool)
		e.importedNames[name] = byImporter
	}
	byImporter[importer] = true
}

func (e *External) markUsed(name string) {
	e.usedNames[name] = true
}

// ImporterIDs returns the ids of modules importing this external, sorted.
func (e *External) ImporterIDs() []string {
	ids := make([]string, 0, len(e.importers))
	for id := range e.importers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// unusedImports returns the imported names never referenced by an included
// statement, with the importers responsible, both sorted. Namespace imports
// are skipped: their member usage is not statically knowable.
func (e *External) unusedImports() (names []string, importers []string) {
	importerSet := make(map[string]bool)
	for name, byImporter := range e.importedNames {
		if name == "*" || e.usedNames[name] {
			continue
		}
		names = append(names, name)
		for id := range byImporter {
			importerSet[id] = true
		}
	}
	sort.Strings(names)
	for id := range importerSet {
		importers = append(importers, id)
	}
	sort.Strings(importers)
	return names, importers
}
