// Package watch triggers rebuilds when source files change on disk.
//
// A Watcher registers every directory under a root recursively with the
// operating system's file notification facility, filters events through
// doublestar glob patterns, and coalesces bursts of events into a single
// rebuild callback after a quiet period. Directories created while watching
// are picked up automatically, so a rebuild sees files added anywhere under
// the root.
//
// # Debouncing
//
// Editors and package managers touch many files in rapid succession. Events
// accumulate in a pending set and the rebuild fires only after Debounce has
// elapsed with no further events. If a rebuild is still running when the
// window closes, the timer re-arms instead of running rebuilds concurrently;
// changed paths observed in the meantime stay in the pending set and are
// delivered with the next invocation.
//
// # Ignores
//
// A built-in ignore list drops version-control metadata and editor
// temporaries. Callers add their own globs through Config.Ignore; the output
// paths a rebuild writes must be ignored or each build would schedule the
// next one.
package watch
