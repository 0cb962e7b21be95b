// Package graph builds and analyzes the module dependency graph.
//
// A Graph is configured once with Options (entry points, resolver and source
// collaborators, tree-shaking and chunking switches) and driven to completion
// by a single Build call, which advances through fixed phases:
//
//   - load: discover modules in concurrent rounds from the entry specifiers,
//     resolving and scanning in parallel but wiring sequentially, so the
//     resulting graph does not depend on fetch interleaving
//   - order: depth-first post-order over static imports, producing the
//     deterministic execution order and the set of import cycles
//   - include: mark executed modules and included statements until a fixed
//     point, honoring side-effect overrides and entry signature preservation
//   - assign: partition included modules into chunks (automatic grouping by
//     entry reachability, manual aliases, per-module, or single-chunk)
//
// # Collaborators
//
// The Resolver turns specifiers into canonical module ids and flags
// externals; the Source loads a module id into statement-level facts. Both
// are interfaces so tests and callers can swap filesystem access for
// in-memory fixtures.
//
// # Diagnostics
//
// Recoverable conditions (cycles, missing exports, unused external imports,
// manual-chunk load failures, implied externals) surface as structured
// warnings through the OnWarn handler and on the Result. Fatal conditions
// abort Build with a structured *errors.Error carrying phase and code.
//
// # Thread Safety
//
// A Graph is single-use and not safe for concurrent mutation: Build runs
// once, and query methods (ModuleInfo, ModuleIDs) are valid only after Build
// returns. Internal load concurrency is contained behind the sequential
// wiring step.
package graph
