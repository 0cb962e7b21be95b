// Package scan turns JavaScript module source into the facts the dependency
// graph consumes: imports, exports, dynamic import call sites, and top-level
// statements annotated with declared names, referenced names, and a
// side-effect verdict.
//
// # Pipeline
//
// Tokenize splits source into tokens, tracking template literals, regular
// expressions, and pure-call annotations. Analyze groups tokens into
// top-level statements and extracts records from import and export
// declarations. Source wraps both behind the loader interface, reading files
// from disk with an optional content-hash cache in front of analysis.
//
// # Precision
//
// The scanner is a heuristic analyzer, not a parser. It errs on the side of
// over-approximation: referenced names may include property keys or
// contextual keywords, and a statement whose purity is unclear counts as
// side-effectful. Both biases keep more code alive than a full parser would,
// never less, so dead-code elimination stays safe on sources the scanner
// only partially understands.
//
// # Thread Safety
//
// Tokenize and Analyze are pure functions. Source is safe for concurrent
// Load calls.
package scan
