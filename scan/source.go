package scan

import (
	"context"
	"os"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/cache"
)

// Source loads modules from the filesystem and analyzes them. It is safe for
// concurrent use; analysis is pure and the optional facts cache synchronizes
// internally.
type Source struct {
	facts *cache.FactsCache
}

// NewSource returns a filesystem Source without caching.
func NewSource() *Source {
	return &Source{}
}

// WithCache attaches a facts cache keyed by id and content hash, so repeated
// builds re-analyze only modules whose content changed. Seed the cache from a
// previous build's snapshot to carry analysis across processes.
func (s *Source) WithCache(c *cache.FactsCache) *Source {
	s.facts = c
	return s
}

// Load reads the file at id and returns its module facts.
func (s *Source) Load(ctx context.Context, id string) (*ast.ModuleFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(id)
	if err != nil {
		return nil, err
	}
	code := string(data)
	if s.facts == nil {
		return Analyze(code), nil
	}
	hash := cache.HashContent(code)
	if f, ok := s.facts.Get(id, hash); ok {
		return f, nil
	}
	f := Analyze(code)
	s.facts.Add(id, hash, f)
	return f, nil
}
