// Package cache carries build state across runs.
//
// # Main Types
//
//   - Snapshot: serializable carry-over produced by one build and fed to the
//     next (module analysis facts plus plugin key/value groups)
//   - Store / PluginCache: live per-build key/value store with scoped views
//     and access-count expiry
//   - FactsCache: bounded LRU of analysis results keyed by id and content
//     hash, for watch-mode rebuilds
//
// # Expiry Model
//
// Every plugin-cache entry ages by one build when a store is seeded and
// resets to zero on read. The sweep at snapshot time drops entries whose age
// reached the expiry and removes empty groups, so abandoned keys cannot
// accumulate across long watch sessions.
//
// # Thread Safety
//
// Store, PluginCache and FactsCache are safe for concurrent use.
package cache
