package ast

// SideEffects describes whether executing a module can be observed from the
// outside. Resolvers may override the default per module.
type SideEffects int

const (
	// SideEffectsInferred derives the answer from the module's statements.
	SideEffectsInferred SideEffects = iota
	// SideEffectsForce marks the module side-effectful even if its statements
	// all look pure.
	SideEffectsForce
	// SideEffectsNone promises the module is pure regardless of content; it
	// executes only when one of its bindings is referenced.
	SideEffectsNone
)

func (s SideEffects) String() string {
	switch s {
	case SideEffectsForce:
		return "force"
	case SideEffectsNone:
		return "none"
	}
	return "inferred"
}

// DefaultName is the synthetic local binding name scanners assign to a
// module's default export.
const DefaultName = "*default*"

// ImportRecord describes one named binding imported by a module.
type ImportRecord struct {
	Source   string // specifier as written
	Imported string // name in the exporting module; "*" for namespace imports
	Local    string // binding name inside the importing module
	Pos      int    // byte offset of the import declaration
}

// ExportRecord describes one name a module exports.
// A non-empty Source marks a re-export: the binding lives in Source's module
// and Local names it there ("*" re-exports the whole namespace object).
type ExportRecord struct {
	Exported string // name visible to importers; "default" for default exports
	Local    string // local binding name, or the name inside Source for re-exports
	Source   string // "" for own exports
	Pos      int
}

// DynamicImport describes one import() call site.
type DynamicImport struct {
	// Specifier is the statically-known target, or "" when the argument is a
	// runtime expression. Unresolved sites keep the importing chunk separate
	// at that boundary.
	Specifier string
	Pos       int
}

// Statement is one top-level statement with its dependency facts. Included is
// the only mutable field and only ever flips false to true within a build.
type Statement struct {
	Pos      int
	End      int
	Declares []string // names this statement binds at module scope
	Reads    []string // identifiers referenced, minus its own declarations
	// SideEffects reports whether executing the statement is observable:
	// calls, assignments to outer names, mutation, throw, bare expressions.
	SideEffects bool
	// IsImport marks import declarations; they never carry side effects of
	// their own and are included when one of their bindings is needed.
	IsImport bool
	Included bool
}

// ModuleFacts is everything the core needs to know about one module's source.
type ModuleFacts struct {
	// ImportSources lists static import specifiers in declaration order,
	// deduplicated, including re-export sources and export-star sources.
	ImportSources []string
	Imports       []ImportRecord
	Exports       []ExportRecord
	// ExportAllSources lists `export * from` specifiers in declaration order.
	ExportAllSources []string
	DynamicImports   []DynamicImport
	Statements       []*Statement
	// Code is the raw source, retained for diagnostics.
	Code string
}

// ExportedNames returns the explicitly exported names in declaration order.
// Star re-exports contribute nothing here; the graph resolves them against
// the target module's surface.
func (f *ModuleFacts) ExportedNames() []string {
	names := make([]string, 0, len(f.Exports))
	for _, e := range f.Exports {
		names = append(names, e.Exported)
	}
	return names
}

// HasSideEffects reports whether any statement is observable when the module
// runs. This is the inferred value; resolver overrides take precedence.
func (f *ModuleFacts) HasSideEffects() bool {
	for _, s := range f.Statements {
		if s.SideEffects {
			return true
		}
	}
	return false
}
