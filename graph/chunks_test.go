package graph

import (
	"testing"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/errors"
)

func TestChunks_SharedDependencyGetsOwnChunk(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./x.js": `import { s } from './s.js'; console.log(s());`,
		"./y.js": `import { s } from './s.js'; console.log(s());`,
		"./s.js": `export function s() { return 1 }`,
	}}
	res, _ := build(t, baseOptions(f, "./x.js", "./y.js"))

	if len(res.Chunks) != 3 {
		t.Fatalf("chunks = %v, want 3", chunkSummary(res))
	}
	shared := chunkContaining(t, res, "./s.js")
	if !sameIDs(shared.ModuleIDs(), "./s.js") {
		t.Errorf("shared chunk = %v", shared.ModuleIDs())
	}
	if len(shared.Entries) != 0 || len(shared.DynamicEntries) != 0 {
		t.Error("a shared chunk serves no entry of its own")
	}
	for _, id := range []string{"./x.js", "./y.js"} {
		c := chunkContaining(t, res, id)
		if !sameIDs(c.ModuleIDs(), id) || len(c.Entries) != 1 {
			t.Errorf("entry chunk for %s = %v", id, c.ModuleIDs())
		}
	}
}

func TestChunks_DynamicImportBoundary(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js": `export function open() { return import('./panel.js') }`,
		"./panel.js": `export function show() {}
export function hide() {}`,
	}}
	res, g := build(t, baseOptions(f, "./main.js"))

	if len(res.Chunks) != 2 {
		t.Fatalf("chunks = %v, want 2", chunkSummary(res))
	}
	pc := chunkContaining(t, res, "./panel.js")
	if !sameIDs(pc.ModuleIDs(), "./panel.js") {
		t.Errorf("panel chunk = %v", pc.ModuleIDs())
	}
	if len(pc.DynamicEntries) != 1 || pc.DynamicEntries[0].ID != "./panel.js" {
		t.Errorf("panel chunk dynamic entries = %v", pc.DynamicEntries)
	}
	if got := len(moduleByID(t, g, "./panel.js").Body.IncludedStatements()); got != 2 {
		t.Errorf("panel included %d statements, want its whole surface", got)
	}
}

func TestChunks_DynamicTargetAbsorbedByStaticImport(t *testing.T) {
	// The dynamic target is also statically imported by its only trigger, so
	// splitting it out would buy nothing: it stays in the entry chunk and the
	// import() resolves to that chunk at runtime.
	f := &fixture{files: map[string]string{
		"./main.js": `import { show } from './panel.js';
export function open() { return import('./panel.js') }
console.log(show());`,
		"./panel.js": `export function show() {}`,
	}}
	res, _ := build(t, baseOptions(f, "./main.js"))

	if len(res.Chunks) != 1 {
		t.Fatalf("chunks = %v, want 1", chunkSummary(res))
	}
	c := res.Chunks[0]
	if !sameIDs(c.ModuleIDs(), "./panel.js", "./main.js") {
		t.Errorf("chunk = %v", c.ModuleIDs())
	}
	if len(c.Entries) != 1 || c.Entries[0].ID != "./main.js" {
		t.Errorf("entries = %v", c.Entries)
	}
	if len(c.DynamicEntries) != 1 || c.DynamicEntries[0].ID != "./panel.js" {
		t.Errorf("dynamic entries = %v", c.DynamicEntries)
	}
}

func TestChunks_ManualVendor(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js": `import { fa } from './a.js'; import { fb } from './b.js'; console.log(fa(), fb());`,
		"./a.js":    `export function fa() { return 1 }`,
		"./b.js":    `export function fb() { return 2 }`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.ManualChunks = map[string][]string{"vendor": {"./a.js", "./b.js"}}
	res, _ := build(t, opts)

	if len(res.Chunks) != 2 {
		t.Fatalf("chunks = %v, want 2", chunkSummary(res))
	}
	vendor := res.Chunks[0]
	if vendor.Alias != "vendor" {
		t.Fatalf("first chunk alias = %q, manual chunks come first", vendor.Alias)
	}
	if !sameIDs(vendor.ModuleIDs(), "./a.js", "./b.js") {
		t.Errorf("vendor modules = %v, want execution order", vendor.ModuleIDs())
	}
	if !sameIDs(chunkContaining(t, res, "./main.js").ModuleIDs(), "./main.js") {
		t.Errorf("entry chunk = %v", chunkSummary(res))
	}
}

func TestChunks_ManualContestedDependency(t *testing.T) {
	// shared is in the static closure of both aliases; the first alias in
	// sorted order claims it.
	f := &fixture{files: map[string]string{
		"./main.js":   `import { fa } from './a.js'; import { fb } from './b.js'; console.log(fa(), fb());`,
		"./a.js":      `import { s } from './shared.js'; export function fa() { return s() }`,
		"./b.js":      `import { s } from './shared.js'; export function fb() { return s() }`,
		"./shared.js": `export function s() { return 0 }`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.ManualChunks = map[string][]string{
		"beta":  {"./b.js"},
		"alpha": {"./a.js"},
	}
	res, _ := build(t, opts)

	alpha := chunkContaining(t, res, "./a.js")
	if alpha.Alias != "alpha" || !sameIDs(alpha.ModuleIDs(), "./shared.js", "./a.js") {
		t.Errorf("alpha = %q %v", alpha.Alias, alpha.ModuleIDs())
	}
	beta := chunkContaining(t, res, "./b.js")
	if beta.Alias != "beta" || !sameIDs(beta.ModuleIDs(), "./b.js") {
		t.Errorf("beta = %q %v", beta.Alias, beta.ModuleIDs())
	}
}

func TestChunks_ManualSeedsStayPut(t *testing.T) {
	// x's closure reaches y, but y is itself a seed of another alias; one
	// alias never absorbs another's seed.
	f := &fixture{files: map[string]string{
		"./main.js": `import { fx } from './x.js'; import { fy } from './y.js'; console.log(fx(), fy());`,
		"./x.js":    `import { fy } from './y.js'; export function fx() { return fy() }`,
		"./y.js":    `export function fy() { return 2 }`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.ManualChunks = map[string][]string{
		"vendorA": {"./x.js"},
		"vendorB": {"./y.js"},
	}
	res, _ := build(t, opts)

	if c := chunkContaining(t, res, "./x.js"); c.Alias != "vendorA" || !sameIDs(c.ModuleIDs(), "./x.js") {
		t.Errorf("vendorA = %q %v", c.Alias, c.ModuleIDs())
	}
	if c := chunkContaining(t, res, "./y.js"); c.Alias != "vendorB" || !sameIDs(c.ModuleIDs(), "./y.js") {
		t.Errorf("vendorB = %q %v", c.Alias, c.ModuleIDs())
	}
}

func TestChunks_EmptyManualChunkWarns(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":  `console.log('app');`,
		"./extra.js": `export const unused = 1;`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.ManualChunks = map[string][]string{"extra": {"./extra.js"}}
	res, g := build(t, opts)

	warns := warningsWithCode(res, errors.CodeEmptyChunk)
	if len(warns) != 1 || warns[0].Alias != "extra" {
		t.Fatalf("warnings = %+v, want one empty-chunk for extra", res.Warnings)
	}
	if len(res.Chunks) != 1 || res.Chunks[0].Alias != "" {
		t.Errorf("chunks = %v, empty manual chunk must be dropped", chunkSummary(res))
	}
	// The module was still loaded and analyzed, it just produced no output.
	if _, err := g.ModuleInfo("./extra.js"); err != nil {
		t.Errorf("ModuleInfo(extra) = %v", err)
	}
}

func TestChunks_PreserveModules(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import { u } from './util.js'; import { h } from './helper.js'; console.log(u());`,
		"./util.js":   `export function u() { return 1 }`,
		"./helper.js": `export function h() { return 2 }`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.PreserveModules = true
	res, _ := build(t, opts)

	if len(res.Chunks) != 2 {
		t.Fatalf("chunks = %v, want one per surviving module", chunkSummary(res))
	}
	if !sameIDs(res.Chunks[0].ModuleIDs(), "./util.js") {
		t.Errorf("first chunk = %v", res.Chunks[0].ModuleIDs())
	}
	mc := res.Chunks[1]
	if !sameIDs(mc.ModuleIDs(), "./main.js") || len(mc.Entries) != 1 {
		t.Errorf("entry chunk = %v", mc.ModuleIDs())
	}
	// helper was shaken away entirely and gets no chunk.
	for _, c := range res.Chunks {
		for _, id := range c.ModuleIDs() {
			if id == "./helper.js" {
				t.Error("tree-shaken module must not produce a chunk")
			}
		}
	}
}

func TestChunks_InlineDynamicImports(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":  `export function open() { return import('./panel.js') }`,
		"./panel.js": `export function show() {}`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.InlineDynamicImports = true
	res, _ := build(t, opts)

	if len(res.Chunks) != 1 {
		t.Fatalf("chunks = %v, want everything inlined", chunkSummary(res))
	}
	c := res.Chunks[0]
	if !sameIDs(c.ModuleIDs(), "./main.js", "./panel.js") {
		t.Errorf("chunk = %v", c.ModuleIDs())
	}
	if len(c.Entries) != 1 || c.Entries[0].ID != "./main.js" {
		t.Errorf("entries = %v", c.Entries)
	}
}

func TestChunks_ExecutedButEmptyModuleLinksThrough(t *testing.T) {
	// mid is forced to execute but includes nothing; the effectful leaf
	// behind it must still reach the entry chunk, while mid itself emits no
	// output.
	f := &fixture{
		files: map[string]string{
			"./main.js": `import './mid.js'; console.log('app');`,
			"./mid.js":  `import './leaf.js'; export const nothing = 1;`,
			"./leaf.js": `console.log('leaf');`,
		},
		sideEffects: map[string]ast.SideEffects{"./mid.js": ast.SideEffectsForce},
	}
	res, g := build(t, baseOptions(f, "./main.js"))

	mid := moduleByID(t, g, "./mid.js")
	if !mid.Executed || mid.IsIncluded() {
		t.Fatalf("mid executed=%v included=%v, want executed and empty", mid.Executed, mid.IsIncluded())
	}
	if len(res.Chunks) != 1 || !sameIDs(res.Chunks[0].ModuleIDs(), "./leaf.js", "./main.js") {
		t.Errorf("chunks = %v, want leaf linked through without mid", chunkSummary(res))
	}
}

func TestChunks_SharedLazySubtreeNotDuplicated(t *testing.T) {
	// Both the entry and the lazy panel use shared. The dynamic entry can
	// only load after main, which already carries shared, so shared stays in
	// the entry chunk alone.
	f := &fixture{files: map[string]string{
		"./main.js": `import { s } from './shared.js';
export function open() { return import('./panel.js') }
console.log(s());`,
		"./panel.js":  `import { s } from './shared.js'; export function show() { return s() }`,
		"./shared.js": `export function s() { return 1 }`,
	}}
	res, _ := build(t, baseOptions(f, "./main.js"))

	if len(res.Chunks) != 2 {
		t.Fatalf("chunks = %v, want entry and panel only", chunkSummary(res))
	}
	if c := chunkContaining(t, res, "./shared.js"); !sameIDs(c.ModuleIDs(), "./shared.js", "./main.js") {
		t.Errorf("shared stayed with = %v", c.ModuleIDs())
	}
	if c := chunkContaining(t, res, "./panel.js"); !sameIDs(c.ModuleIDs(), "./panel.js") {
		t.Errorf("panel chunk = %v", c.ModuleIDs())
	}
}
