// Package errors provides structured error and warning types for the bundler.
//
// Errors are categorized by Phase (which build stage failed) and Code (a
// stable machine-readable identifier). Warnings share the same Code space so
// tooling can filter diagnostics programmatically regardless of severity.
//
// Use convenience constructors for the common cases:
//
//	err := errors.UnresolvedImport("./missing", "/src/main.js", cause)
//	err := errors.DuplicateChunkAlias("/src/util.js", "vendor", "shared")
//
// Warnings are plain values delivered through a Handler:
//
//	warn := errors.CircularDependency([]string{"/a.js", "/b.js", "/a.js"})
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
