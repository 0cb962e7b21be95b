package graph

import (
	"testing"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/errors"
)

func TestInclude_UnreferencedPureImportSkipped(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import { helper } from './helper.js'; console.log('hi');`,
		"./helper.js": `export function helper() {}`,
	}}
	res, g := build(t, baseOptions(f, "./main.js"))

	helper := moduleByID(t, g, "./helper.js")
	if helper.Executed || helper.IsIncluded() {
		t.Error("unreferenced pure module must stay out of the build")
	}
	if len(res.Chunks) != 1 || !sameIDs(res.Chunks[0].ModuleIDs(), "./main.js") {
		t.Errorf("chunks = %v", chunkSummary(res))
	}
}

func TestInclude_NoTunnelingThroughPureModules(t *testing.T) {
	// The pure middle module is never referenced, so the effectful leaf
	// behind it must not execute either: execution reachability stops at
	// side-effect-free modules.
	f := &fixture{files: map[string]string{
		"./main.js": `import { mid } from './mid.js'; console.log('main');`,
		"./mid.js":  `import './leaf.js'; export function mid() {}`,
		"./leaf.js": `console.log('leaf');`,
	}}
	_, g := build(t, baseOptions(f, "./main.js"))

	if moduleByID(t, g, "./mid.js").Executed {
		t.Error("pure unreferenced module executed")
	}
	if moduleByID(t, g, "./leaf.js").Executed {
		t.Error("effectful leaf behind a pure module executed")
	}
}

func TestInclude_ReferencedImportRevivesSubtree(t *testing.T) {
	// Same shape as above, but the middle export is referenced: now the
	// middle executes, and its effectful dependency with it.
	f := &fixture{files: map[string]string{
		"./main.js": `import { mid } from './mid.js'; console.log(mid());`,
		"./mid.js":  `import './leaf.js'; export function mid() { return 1 }`,
		"./leaf.js": `console.log('leaf');`,
	}}
	res, g := build(t, baseOptions(f, "./main.js"))

	if !moduleByID(t, g, "./mid.js").Executed {
		t.Error("referenced module must execute")
	}
	if !moduleByID(t, g, "./leaf.js").IsIncluded() {
		t.Error("effectful dependency of an executed module must be included")
	}
	c := chunkContaining(t, res, "./main.js")
	if !sameIDs(c.ModuleIDs(), "./leaf.js", "./mid.js", "./main.js") {
		t.Errorf("chunk order = %v", c.ModuleIDs())
	}
}

func TestInclude_SideEffectOverrides(t *testing.T) {
	t.Run("none suppresses effectful statements", func(t *testing.T) {
		f := &fixture{
			files: map[string]string{
				"./main.js":     `import './polyfill.js'; console.log('app');`,
				"./polyfill.js": `patchGlobals();`,
			},
			sideEffects: map[string]ast.SideEffects{"./polyfill.js": ast.SideEffectsNone},
		}
		_, g := build(t, baseOptions(f, "./main.js"))
		if moduleByID(t, g, "./polyfill.js").Executed {
			t.Error("sideEffects:none module executed without a referenced binding")
		}
	})

	t.Run("force executes a pure module", func(t *testing.T) {
		f := &fixture{
			files: map[string]string{
				"./main.js": `import './etag.js'; console.log('app');`,
				"./etag.js": `export const tag = 'v1';`,
			},
			sideEffects: map[string]ast.SideEffects{"./etag.js": ast.SideEffectsForce},
		}
		_, g := build(t, baseOptions(f, "./main.js"))
		etag := moduleByID(t, g, "./etag.js")
		if !etag.Executed {
			t.Error("forced module must execute")
		}
		if etag.IsIncluded() {
			t.Error("execution alone should not include pure statements")
		}
	})
}

func TestInclude_PreserveFalseDropsEntryExports(t *testing.T) {
	files := map[string]string{
		"./main.js": `export const unusedExport = 1;
console.log('run');`,
	}

	f := &fixture{files: files}
	opts := baseOptions(f, "./main.js")
	opts.PreserveEntrySignatures = PreserveFalse
	_, g := build(t, opts)
	if got := len(moduleByID(t, g, "./main.js").Body.IncludedStatements()); got != 1 {
		t.Errorf("preserve=false included %d statements, want just the log", got)
	}

	f = &fixture{files: files}
	_, g = build(t, baseOptions(f, "./main.js"))
	if got := len(moduleByID(t, g, "./main.js").Body.IncludedStatements()); got != 2 {
		t.Errorf("default preserve included %d statements, want the export kept", got)
	}
}

func TestInclude_ReExportChain(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import { util } from './facade.js'; console.log(util());`,
		"./facade.js": `export { inner as util } from './impl.js';`,
		"./impl.js": `export function inner() { return 1 }
export function extra() { return 2 }`,
	}}
	res, g := build(t, baseOptions(f, "./main.js"))

	impl := moduleByID(t, g, "./impl.js")
	if got := len(impl.Body.IncludedStatements()); got != 1 {
		t.Errorf("impl included %d statements, want only inner", got)
	}
	facade := moduleByID(t, g, "./facade.js")
	if facade.IsIncluded() {
		t.Error("a pure re-export facade emits no code of its own")
	}
	c := chunkContaining(t, res, "./main.js")
	if !sameIDs(c.ModuleIDs(), "./impl.js", "./main.js") {
		t.Errorf("chunk = %v", c.ModuleIDs())
	}
}

func TestInclude_StarReExport(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import { a, b } from './barrel.js'; console.log(a, b);`,
		"./barrel.js": `export * from './one.js';
export * from './two.js';`,
		"./one.js": `export const a = 1;`,
		"./two.js": `export const b = 2;
export const unused2 = 3;`,
	}}
	res, g := build(t, baseOptions(f, "./main.js"))

	if !moduleByID(t, g, "./one.js").IsIncluded() {
		t.Error("a found through the first star source")
	}
	two := moduleByID(t, g, "./two.js")
	if got := len(two.Body.IncludedStatements()); got != 1 {
		t.Errorf("two included %d statements, want only b", got)
	}
	c := chunkContaining(t, res, "./main.js")
	if !sameIDs(c.ModuleIDs(), "./one.js", "./two.js", "./main.js") {
		t.Errorf("chunk = %v", c.ModuleIDs())
	}
}

func TestInclude_StarFirstMatchWins(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import { c } from './barrel.js'; console.log(c);`,
		"./barrel.js": `export * from './one.js';
export * from './two.js';`,
		"./one.js": `export const c = 'one';`,
		"./two.js": `export const c = 'two';`,
	}}
	_, g := build(t, baseOptions(f, "./main.js"))

	if !moduleByID(t, g, "./one.js").IsIncluded() {
		t.Error("first star source providing c must win")
	}
	two := moduleByID(t, g, "./two.js")
	if two.Executed || two.IsIncluded() {
		t.Error("later star source must stay untouched")
	}
}

func TestInclude_StarNeverConveysDefault(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import d from './barrel.js'; console.log(d);`,
		"./barrel.js": `export * from './one.js';`,
		"./one.js":    `export default 1;`,
	}}
	res, _ := build(t, baseOptions(f, "./main.js"))

	warns := warningsWithCode(res, errors.CodeNonExistentExport)
	if len(warns) != 1 {
		t.Fatalf("warnings = %+v, want one missing-export", res.Warnings)
	}
	w := warns[0]
	if !sameIDs(w.Names, "default") || w.Exporter != "./barrel.js" || w.Importer != "./main.js" {
		t.Errorf("warning = %+v", w)
	}
}

func TestInclude_NonExistentExport(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js": `import { missing, real } from './lib.js'; console.log(missing, real);`,
		"./lib.js":  `export const real = 1;`,
	}}
	res, g := build(t, baseOptions(f, "./main.js"))

	warns := warningsWithCode(res, errors.CodeNonExistentExport)
	if len(warns) != 1 {
		t.Fatalf("warnings = %+v, want exactly one", res.Warnings)
	}
	if !sameIDs(warns[0].Names, "missing") || warns[0].Exporter != "./lib.js" {
		t.Errorf("warning = %+v", warns[0])
	}
	// The build continues; the valid binding still resolves.
	if !moduleByID(t, g, "./lib.js").IsIncluded() {
		t.Error("lib must still be included for real")
	}
}

func TestInclude_NamespaceImport(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js": `import * as lib from './lib.js'; console.log(lib.anything);`,
		"./lib.js": `export const a = 1;
export const b = 2;`,
	}}
	_, g := build(t, baseOptions(f, "./main.js"))

	lib := moduleByID(t, g, "./lib.js")
	if got := len(lib.Body.IncludedStatements()); got != 2 {
		t.Errorf("namespace import included %d statements, want the full surface", got)
	}
}

func TestInclude_NamespaceReExport(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import { inner } from './barrel.js'; console.log(inner.x);`,
		"./barrel.js": `export * as inner from './inner.js';`,
		"./inner.js": `export const x = 1;
export const y = 2;`,
	}}
	_, g := build(t, baseOptions(f, "./main.js"))

	inner := moduleByID(t, g, "./inner.js")
	if got := len(inner.Body.IncludedStatements()); got != 2 {
		t.Errorf("namespace re-export included %d statements, want the full surface", got)
	}
	if !inner.Executed {
		t.Error("namespace target must execute")
	}
}

func TestInclude_UnusedExternalWarning(t *testing.T) {
	f := &fixture{
		files: map[string]string{
			"./main.js": `import { once, twice } from 'toolkit'; console.log(once());`,
		},
		externals: map[string]bool{"toolkit": true},
	}
	res, _ := build(t, baseOptions(f, "./main.js"))

	warns := warningsWithCode(res, errors.CodeUnusedExternalImport)
	if len(warns) != 1 {
		t.Fatalf("warnings = %+v, want one unused-external", res.Warnings)
	}
	w := warns[0]
	if w.ID != "toolkit" || !sameIDs(w.Names, "twice") || !sameIDs(w.IDs, "./main.js") {
		t.Errorf("warning = %+v", w)
	}
}

func TestInclude_DynamicTargetFullSurface(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":  `export function open() { return import('./panel.js') }`,
		"./panel.js": `export function show() {}
export function hide() {}`,
	}}
	_, g := build(t, baseOptions(f, "./main.js"))

	panel := moduleByID(t, g, "./panel.js")
	if got := len(panel.Body.IncludedStatements()); got != 2 {
		t.Errorf("dynamic target included %d statements, want its whole surface", got)
	}
	if !panel.Executed {
		t.Error("dynamic target must execute")
	}
}

func TestInclude_DroppedDynamicCallSite(t *testing.T) {
	// The function holding the import() is never referenced and the entry
	// does not preserve its signature, so the call site is excluded and the
	// target must not load into any chunk.
	f := &fixture{files: map[string]string{
		"./main.js": `export function open() { return import('./panel.js') }
console.log('app');`,
		"./panel.js": `export function show() {}`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.PreserveEntrySignatures = PreserveFalse
	res, g := build(t, opts)

	panel := moduleByID(t, g, "./panel.js")
	if panel.Executed || panel.IsIncluded() {
		t.Error("dropped call site must not activate the dynamic target")
	}
	for _, c := range res.Chunks {
		for _, id := range c.ModuleIDs() {
			if id == "./panel.js" {
				t.Errorf("panel leaked into chunks: %v", chunkSummary(res))
			}
		}
	}
}
