package wasmmod

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/cache"
)

// Handles reports whether id names a WebAssembly module.
func Handles(id string) bool {
	return strings.HasSuffix(id, ".wasm")
}

// Source loads .wasm files and derives module facts from their import and
// export surface. Safe for concurrent use.
type Source struct {
	runtime wazero.Runtime
	facts   *cache.FactsCache
}

// NewSource returns a Source backed by its own wazero runtime. Close releases
// the runtime when the source is no longer needed.
func NewSource(ctx context.Context) *Source {
	// Interpreter config: modules are compiled only for surface inspection,
	// never instantiated, so the compiling backend buys nothing.
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	return &Source{runtime: rt}
}

// WithCache attaches a facts cache keyed by id and content hash, mirroring the
// JS source's caching so watch rebuilds skip unchanged .wasm files.
func (s *Source) WithCache(c *cache.FactsCache) *Source {
	s.facts = c
	return s
}

// Load reads the file at id and returns its module facts.
func (s *Source) Load(ctx context.Context, id string) (*ast.ModuleFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(id)
	if err != nil {
		return nil, err
	}
	if s.facts == nil {
		return s.Facts(ctx, data)
	}
	hash := cache.HashContent(string(data))
	if f, ok := s.facts.Get(id, hash); ok {
		return f, nil
	}
	f, err := s.Facts(ctx, data)
	if err != nil {
		return nil, err
	}
	s.facts.Add(id, hash, f)
	return f, nil
}

// Facts compiles wasmBytes and maps its surface onto module facts following
// the ESM integration shape: each imported module name becomes a static
// import source with one record per imported binding, and each export becomes
// a declared, individually includable name. A synthetic instantiation
// statement carries the module's side effects (imports are called and a start
// section may run) and reads every imported binding so they stay live
// whenever the module executes.
func (s *Source) Facts(ctx context.Context, wasmBytes []byte) (*ast.ModuleFacts, error) {
	compiled, err := s.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	defer compiled.Close(ctx)

	f := &ast.ModuleFacts{}

	type importGroup struct {
		source string
		locals []string
	}
	var groups []*importGroup
	bySource := make(map[string]*importGroup)
	addImport := func(source, name string) {
		local := fmt.Sprintf("__wasm_import_%d", len(f.Imports))
		g := bySource[source]
		if g == nil {
			g = &importGroup{source: source}
			bySource[source] = g
			groups = append(groups, g)
			f.ImportSources = append(f.ImportSources, source)
		}
		g.locals = append(g.locals, local)
		f.Imports = append(f.Imports, ast.ImportRecord{Source: source, Imported: name, Local: local})
	}
	for _, def := range compiled.ImportedFunctions() {
		if source, name, ok := def.Import(); ok {
			addImport(source, name)
		}
	}
	for _, def := range compiled.ImportedMemories() {
		if source, name, ok := def.Import(); ok {
			addImport(source, name)
		}
	}

	// Export maps iterate in random order; export names are unique per module,
	// so sorting fixes a deterministic statement order.
	var exports []string
	for name := range compiled.ExportedFunctions() {
		exports = append(exports, name)
	}
	for name := range compiled.ExportedMemories() {
		exports = append(exports, name)
	}
	sort.Strings(exports)

	pos := 0
	next := func() (int, int) {
		p := pos
		pos++
		return p, p + 1
	}
	for _, g := range groups {
		p, e := next()
		f.Statements = append(f.Statements, &ast.Statement{Pos: p, End: e, Declares: g.locals, IsImport: true})
	}
	var reads []string
	for _, rec := range f.Imports {
		reads = append(reads, rec.Local)
	}
	p, e := next()
	f.Statements = append(f.Statements, &ast.Statement{Pos: p, End: e, Reads: reads, SideEffects: true})
	for _, name := range exports {
		p, e := next()
		f.Statements = append(f.Statements, &ast.Statement{Pos: p, End: e, Declares: []string{name}})
		f.Exports = append(f.Exports, ast.ExportRecord{Exported: name, Local: name, Pos: p})
	}
	return f, nil
}

// Close releases the underlying runtime.
func (s *Source) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}
