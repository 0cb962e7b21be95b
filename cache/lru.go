package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wippyai/esm-bundler/ast"
)

// DefaultFactsCapacity bounds the parse-facts cache when no capacity is
// given.
const DefaultFactsCapacity = 512

// FactsCache is a bounded LRU of module analysis results keyed by id and
// content hash. Sources consult it so watch-mode rebuilds skip re-analysis
// of unchanged files; a changed file misses on the hash and re-parses.
type FactsCache struct {
	entries *lru.Cache[string, *ast.ModuleFacts]
}

// NewFactsCache creates a cache holding up to capacity entries;
// non-positive capacity selects DefaultFactsCapacity.
func NewFactsCache(capacity int) (*FactsCache, error) {
	if capacity <= 0 {
		capacity = DefaultFactsCapacity
	}
	entries, err := lru.New[string, *ast.ModuleFacts](capacity)
	if err != nil {
		return nil, err
	}
	return &FactsCache{entries: entries}, nil
}

func factsKey(id, contentHash string) string {
	return id + "\x00" + contentHash
}

// Get returns the facts cached for id at the given content hash.
func (c *FactsCache) Get(id, contentHash string) (*ast.ModuleFacts, bool) {
	return c.entries.Get(factsKey(id, contentHash))
}

// Add stores facts for id at the given content hash, evicting the least
// recently used entry when full.
func (c *FactsCache) Add(id, contentHash string, facts *ast.ModuleFacts) {
	c.entries.Add(factsKey(id, contentHash), facts)
}

// Seed primes the cache from a snapshot's module records. Records whose
// source changed since the snapshot simply never hit.
func (c *FactsCache) Seed(snap *Snapshot) {
	if snap == nil {
		return
	}
	for _, rec := range snap.Modules {
		if rec.Facts != nil {
			c.Add(rec.ID, rec.ContentHash, rec.Facts)
		}
	}
}

// Len returns the number of cached entries.
func (c *FactsCache) Len() int {
	return c.entries.Len()
}
