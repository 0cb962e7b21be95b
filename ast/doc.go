// Package ast defines the statement-level facts the bundler core consumes.
//
// A source collaborator (the scan package for JavaScript, wasmmod for
// WebAssembly) analyzes one module and produces a ModuleFacts: the ordered
// static import sources, dynamic-import sites, the export surface, and a flat
// list of top-level statements annotated with the names they declare, the
// names they read, and whether they carry observable side effects.
//
// The package also implements the per-module half of inclusion propagation:
// Body marks statements included, monotonically and idempotently, and reports
// which non-local names the included statements still need. The cross-module
// half lives in the graph package.
package ast
