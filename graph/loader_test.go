package graph

import (
	"fmt"
	"testing"

	"github.com/wippyai/esm-bundler/errors"
)

func TestLoader_DedupesSharedModule(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":   `import { fa } from './a.js'; import { fb } from './b.js'; console.log(fa(), fb());`,
		"./a.js":      `import { s } from './shared.js'; export function fa() { return s() }`,
		"./b.js":      `import { s } from './shared.js'; export function fb() { return s() }`,
		"./shared.js": `export function s() { return 0 }`,
	}}
	_, g := build(t, baseOptions(f, "./main.js"))

	info, err := g.ModuleInfo("./shared.js")
	if err != nil {
		t.Fatalf("ModuleInfo: %v", err)
	}
	if !sameIDs(info.Importers, "./a.js", "./b.js") {
		t.Errorf("importers = %v, want both requesters on one instance", info.Importers)
	}
}

func TestLoader_UnresolvedRelativeIsFatal(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js": `import { x } from './missing.js'; console.log(x);`,
	}}
	err := buildErr(t, baseOptions(f, "./main.js"))
	if buildCode(err) != errors.CodeUnresolvedImport {
		t.Errorf("err = %v, want unresolved import", err)
	}
}

func TestLoader_LoadFailureIsFatal(t *testing.T) {
	f := &fixture{
		files: map[string]string{
			"./main.js":   `import './broken.js'; console.log('app');`,
			"./broken.js": `console.log('never read');`,
		},
		loadErr: map[string]error{"./broken.js": fmt.Errorf("disk gone")},
	}
	err := buildErr(t, baseOptions(f, "./main.js"))
	if buildCode(err) != errors.CodeLoadFailed {
		t.Errorf("err = %v, want load failure", err)
	}
}

func TestLoader_ManualChunkFailuresWarn(t *testing.T) {
	// A manual-chunk list item that cannot be obtained must not kill the
	// build: the chunk just misses that module.
	f := &fixture{
		files: map[string]string{
			"./main.js": `console.log('app');`,
		},
		externals: map[string]bool{"jquery": true},
	}
	opts := baseOptions(f, "./main.js")
	opts.ManualChunks = map[string][]string{"vendor": {"./gone.js", "jquery"}}
	res, _ := build(t, opts)

	warns := warningsWithCode(res, errors.CodeChunkLoadFailed)
	if len(warns) != 2 {
		t.Fatalf("warnings = %+v, want one per failed item", res.Warnings)
	}
	for _, w := range warns {
		if w.Alias != "vendor" {
			t.Errorf("warning alias = %q", w.Alias)
		}
	}
	if len(res.Chunks) != 1 {
		t.Errorf("chunks = %v, want just the entry", chunkSummary(res))
	}
}

func TestLoader_DuplicateManualAliasIsFatal(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js": `import { x } from './x.js'; console.log(x);`,
		"./x.js":    `export const x = 1;`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.ManualChunks = map[string][]string{
		"v1": {"./x.js"},
		"v2": {"./x.js"},
	}
	err := buildErr(t, opts)
	if buildCode(err) != errors.CodeDuplicateChunkAlias {
		t.Errorf("err = %v, want duplicate alias", err)
	}
}

func TestLoader_EntryCannotBeExternal(t *testing.T) {
	f := &fixture{externals: map[string]bool{"react": true}}
	err := buildErr(t, baseOptions(f, "react"))
	if buildCode(err) != errors.CodeInvalidOption {
		t.Errorf("err = %v, want invalid option", err)
	}
}

func TestLoader_ImplicitEntry(t *testing.T) {
	f := &fixture{files: map[string]string{
		"./main.js":    `console.log('app');`,
		"./overlay.js": `console.log('overlay');`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.Entries = append(opts.Entries, EntryPoint{
		Specifier:             "./overlay.js",
		Name:                  "overlay",
		ImplicitlyLoadedAfter: []string{"./main.js"},
	})
	res, g := build(t, opts)

	if len(res.Chunks) != 2 {
		t.Fatalf("chunks = %v, want entry plus implicit", chunkSummary(res))
	}
	oc := chunkContaining(t, res, "./overlay.js")
	if len(oc.Entries) != 0 || len(oc.DynamicEntries) != 1 {
		t.Errorf("overlay chunk entries = %v dynamic = %v, implicit entries load on demand", oc.Entries, oc.DynamicEntries)
	}

	overlay, err := g.ModuleInfo("./overlay.js")
	if err != nil {
		t.Fatalf("ModuleInfo: %v", err)
	}
	if overlay.IsEntry {
		t.Error("implicit entry must not report as a real entry")
	}
	if !sameIDs(overlay.ImplicitlyLoadedAfter, "./main.js") {
		t.Errorf("ImplicitlyLoadedAfter = %v", overlay.ImplicitlyLoadedAfter)
	}
	main, err := g.ModuleInfo("./main.js")
	if err != nil {
		t.Fatalf("ModuleInfo: %v", err)
	}
	if !sameIDs(main.ImplicitlyLoadedBefore, "./overlay.js") {
		t.Errorf("ImplicitlyLoadedBefore = %v", main.ImplicitlyLoadedBefore)
	}
}

func TestLoader_ImplicitEntryPromotion(t *testing.T) {
	// The same module is configured both as an implicit entry and as a real
	// one; the real designation wins and the implicit relationship dissolves.
	f := &fixture{files: map[string]string{
		"./main.js":   `console.log('app');`,
		"./shared.js": `console.log('shared');`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.Entries = append(opts.Entries,
		EntryPoint{Specifier: "./shared.js", ImplicitlyLoadedAfter: []string{"./main.js"}},
		EntryPoint{Specifier: "./shared.js", Name: "shared"},
	)
	res, g := build(t, opts)

	info, err := g.ModuleInfo("./shared.js")
	if err != nil {
		t.Fatalf("ModuleInfo: %v", err)
	}
	if !info.IsEntry {
		t.Error("promoted module must be a real entry")
	}
	if len(info.ImplicitlyLoadedAfter) != 0 {
		t.Errorf("ImplicitlyLoadedAfter = %v, want dissolved", info.ImplicitlyLoadedAfter)
	}
	for _, c := range res.Chunks {
		if len(c.DynamicEntries) != 0 {
			t.Errorf("chunk has dynamic entries %v after promotion", c.DynamicEntries)
		}
	}
}

func TestLoader_MissingImplicitDependantIsFatal(t *testing.T) {
	// overlay promises to load after dep, but dep is neither an entry nor
	// included by anything, so the ordering guarantee is unsatisfiable.
	f := &fixture{files: map[string]string{
		"./main.js":    `console.log('app');`,
		"./overlay.js": `console.log('overlay');`,
		"./dep.js":     `export const d = 1;`,
	}}
	opts := baseOptions(f, "./main.js")
	opts.Entries = append(opts.Entries, EntryPoint{
		Specifier:             "./overlay.js",
		ImplicitlyLoadedAfter: []string{"./dep.js"},
	})
	err := buildErr(t, opts)
	if buildCode(err) != errors.CodeMissingImplicitDependant {
		t.Errorf("err = %v, want missing implicit dependant", err)
	}
}

func TestLoader_BareAndRelativeSpecifiersDiffer(t *testing.T) {
	// An unresolvable bare specifier degrades to an implied external; an
	// unresolvable relative one is always a broken reference.
	f := &fixture{files: map[string]string{
		"./main.js": `import stuff from 'some-pkg'; console.log(stuff);`,
	}}
	res, g := build(t, baseOptions(f, "./main.js"))

	warns := warningsWithCode(res, errors.CodeImpliedExternal)
	if len(warns) != 1 || warns[0].ID != "some-pkg" || warns[0].Importer != "./main.js" {
		t.Fatalf("warnings = %+v, want one implied external", res.Warnings)
	}
	info, err := g.ModuleInfo("some-pkg")
	if err != nil {
		t.Fatalf("ModuleInfo: %v", err)
	}
	if !info.IsExternal {
		t.Error("implied external must join the graph as external")
	}
}
