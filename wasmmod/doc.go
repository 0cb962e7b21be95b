// Package wasmmod makes .wasm files first-class modules in the dependency
// graph.
//
// A WebAssembly module's imports and exports are statically declared in its
// binary, so the full dependency surface is available without executing
// anything: wazero compiles the module and the import section's module names
// become static import sources while the export section becomes the export
// surface. Tree-shaking then treats the module like any other: unreferenced
// .wasm modules drop out entirely, and instantiation side effects keep the
// imported bindings alive when the module stays in.
//
// The Source type satisfies the same Load contract as the JS scanner, so the
// two are composed behind one dispatching source keyed on file extension.
package wasmmod
