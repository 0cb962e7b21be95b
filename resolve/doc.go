// Package resolve maps import specifiers to canonical module ids.
//
// Resolution follows node conventions: relative and absolute specifiers
// probe the filesystem with configurable extensions, directory imports read
// package.json (the module field preferred over main, index fallback), and
// bare specifiers walk node_modules directories upward toward the root.
// Node core modules and configured externals resolve external without
// touching the filesystem.
//
// A package.json sideEffects declaration travels with the resolution so the
// graph can prune whole subtrees: false marks every file in the package
// pure, a glob list marks only the matching files effectful.
package resolve
