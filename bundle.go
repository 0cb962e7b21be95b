package esmbundler

import (
	"context"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/cache"
	"github.com/wippyai/esm-bundler/graph"
	"github.com/wippyai/esm-bundler/resolve"
	"github.com/wippyai/esm-bundler/scan"
	"github.com/wippyai/esm-bundler/wasmmod"
)

// Sources routes module loading by id: WebAssembly modules go to the wasm
// source, everything else to the script source. Both sides may share one
// facts cache; records are keyed by id and content hash so they never
// collide.
type Sources struct {
	script graph.Source
	wasm   graph.Source
}

var _ graph.Source = (*Sources)(nil)

// NewSources builds the dispatching source. wasm may be nil, in which case
// every id goes to script.
func NewSources(script, wasm graph.Source) *Sources {
	return &Sources{script: script, wasm: wasm}
}

// Load implements graph.Source.
func (s *Sources) Load(ctx context.Context, id string) (*ast.ModuleFacts, error) {
	if s.wasm != nil && wasmmod.Handles(id) {
		return s.wasm.Load(ctx, id)
	}
	return s.script.Load(ctx, id)
}

// Build runs one build over the filesystem with default collaborators filled
// in: a node-style resolver rooted at root and a dispatching source covering
// scripts and wasm modules, warmed from opts.Cache when present. Explicitly
// set Resolver or Source fields are left untouched, so callers can swap
// either side.
func Build(ctx context.Context, root string, opts graph.Options) (*graph.Result, error) {
	if opts.Resolver == nil {
		ropts := resolve.DefaultOptions()
		ropts.Root = root
		opts.Resolver = resolve.New(ropts)
	}
	if opts.Source == nil {
		facts, err := cache.NewFactsCache(cache.DefaultFactsCapacity)
		if err != nil {
			return nil, err
		}
		if opts.Cache != nil {
			facts.Seed(opts.Cache)
		}
		wasmSrc := wasmmod.NewSource(ctx).WithCache(facts)
		defer wasmSrc.Close(ctx)
		opts.Source = NewSources(scan.NewSource().WithCache(facts), wasmSrc)
	}
	g, err := graph.New(opts)
	if err != nil {
		return nil, err
	}
	return g.Build(ctx)
}
