package cache

import "sync"

// Store holds the live plugin caches for one build. Seeding from a snapshot
// ages every entry by one build; reads reset the age, so an entry only
// expires after going unread for the configured number of builds.
type Store struct {
	mu     sync.Mutex
	expiry int
	groups map[string]map[string]*Entry
}

// NewStore seeds a store from a previous build's snapshot. A nil snapshot
// starts empty. expiry must be positive.
func NewStore(seed *Snapshot, expiry int) *Store {
	s := &Store{expiry: expiry, groups: make(map[string]map[string]*Entry)}
	if seed == nil {
		return s
	}
	for name, group := range seed.Plugins {
		dst := make(map[string]*Entry, len(group))
		for key, e := range group {
			dst[key] = &Entry{Uses: e.Uses + 1, Value: e.Value}
		}
		s.groups[name] = dst
	}
	return s
}

// Plugin returns the named scoped cache, creating its group on first use.
func (s *Store) Plugin(name string) *PluginCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[name] == nil {
		s.groups[name] = make(map[string]*Entry)
	}
	return &PluginCache{store: s, name: name}
}

// Sweep evicts entries that went unread for expiry builds, drops empty
// groups and returns the survivors in snapshot form. Returns nil when
// nothing survived.
func (s *Store) Sweep() map[string]map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]Entry)
	for name, group := range s.groups {
		kept := make(map[string]Entry, len(group))
		for key, e := range group {
			if e.Uses >= s.expiry {
				continue
			}
			kept[key] = *e
		}
		if len(kept) > 0 {
			out[name] = kept
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// PluginCache is one plugin's view of the store. Safe for concurrent use.
type PluginCache struct {
	store *Store
	name  string
}

// Get returns the value under key and marks the entry used this build.
func (c *PluginCache) Get(key string) (any, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e := c.store.groups[c.name][key]
	if e == nil {
		return nil, false
	}
	e.Uses = 0
	return e.Value, true
}

// Has reports whether key is present, marking the entry used like Get.
func (c *PluginCache) Has(key string) bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e := c.store.groups[c.name][key]
	if e == nil {
		return false
	}
	e.Uses = 0
	return true
}

// Set stores value under key with a fresh age.
func (c *PluginCache) Set(key string, value any) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	group := c.store.groups[c.name]
	if group == nil {
		group = make(map[string]*Entry)
		c.store.groups[c.name] = group
	}
	group[key] = &Entry{Value: value}
}

// Delete removes key, reporting whether it was present.
func (c *PluginCache) Delete(key string) bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	group := c.store.groups[c.name]
	if _, ok := group[key]; !ok {
		return false
	}
	delete(group, key)
	return true
}
