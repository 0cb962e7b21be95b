// Package esmbundler resolves, orders, tree-shakes and chunks JavaScript
// module graphs.
//
// Given a set of entry points, the bundler discovers the full import graph,
// computes a deterministic execution order with cycle detection, runs a
// fixed-point inclusion analysis that drops unreferenced statements and
// modules, and partitions the surviving modules into output chunks. Emission
// of JavaScript text is out of scope; the product is the analyzed graph and
// its chunk assignment.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	esmbundler/          Root package: one-call Build and source dispatch
//	├── graph/           Build coordinator: load, order, include, assign
//	├── scan/            Statement scanner producing per-module facts
//	├── resolve/         Node-style specifier resolution
//	├── cache/           Facts LRU, plugin cache, build snapshots
//	├── wasmmod/         WebAssembly modules as graph citizens
//	├── watch/           Debounced filesystem rebuild triggers
//	├── ast/             Module facts data model
//	└── errors/          Structured build errors and warnings
//
// # Quick Start
//
// Bundle an application rooted in the current directory:
//
//	opts := graph.DefaultOptions()
//	opts.Entries = []graph.EntryPoint{{Specifier: "./src/main.js"}}
//
//	res, err := esmbundler.Build(ctx, ".", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, chunk := range res.Chunks {
//	    fmt.Println(chunk.ModuleIDs())
//	}
//
// Fine-grained control comes from constructing the collaborators directly:
// build a resolve.Resolver with externals and extension settings, a
// scan.Source (optionally cached), and hand both to graph.New.
//
// # Chunking
//
// Automatic chunking colours every included module with the set of entries
// that reach it; modules sharing a colour share a chunk, so no module is
// duplicated and no chunk mixes modules with different reachability. Dynamic
// import targets and implicit entries start new colours. Manual chunks pin
// named module lists, PreserveModules emits one chunk per module, and
// InlineDynamicImports collapses a single-entry build into one chunk.
//
// # Caching
//
// Result.Cache is a snapshot of per-module analysis facts keyed by content
// hash plus the plugin key/value store. Feeding it to the next build's
// Options.Cache skips re-analysis of unchanged modules; entries unused for
// CacheExpiry consecutive builds are swept. Watch-mode rebuilds pass the
// snapshot along automatically.
//
// # Thread Safety
//
// A Graph is single-use and confined to the building goroutine; the Resolver
// and Source collaborators must tolerate concurrent calls because module
// fetches fan out per load round. Results are plain data.
package esmbundler
