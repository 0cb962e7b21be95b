package graph

import (
	"sort"
	"sync"
)

// table is the resolved-id table: the single canonical id -> node map and the
// ownership root of the whole graph. Every other structure references nodes
// through it. Insertion is first-writer-wins so concurrent loaders resolving
// the same file share one record; the mutex only matters during the loading
// phase, all later phases read single-threaded.
type table struct {
	mu    sync.Mutex
	nodes map[string]ModuleNode
	order []string // insertion order, for deterministic iteration
}

func newTable() *table {
	return &table{nodes: make(map[string]ModuleNode)}
}

// insert registers m under its id unless another loader already did. Returns
// the node that won and whether m was it. Losing loaders discard their copy;
// the duplicate load is wasted work, not an error.
func (t *table) insert(m *Module) (node ModuleNode, fresh bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.nodes[m.ID]; ok {
		return existing, false
	}
	t.nodes[m.ID] = m
	t.order = append(t.order, m.ID)
	return m, true
}

// claimExternal returns the external registered under id, creating it on
// first claim. Claiming an id already held by an internal module returns that
// module instead; resolution decides internality first, so this only happens
// when one specifier is configured external and another resolves the same id
// internally, and the internal record wins.
func (t *table) claimExternal(id string) ModuleNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.nodes[id]; ok {
		return existing
	}
	e := newExternal(id)
	t.nodes[id] = e
	t.order = append(t.order, id)
	return e
}

// lookup returns the node for id, or nil.
func (t *table) lookup(id string) ModuleNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes[id]
}

// ids returns every registered id, sorted.
func (t *table) ids() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, len(t.order))
	copy(ids, t.order)
	sort.Strings(ids)
	return ids
}

// modules returns the internal modules in insertion order.
func (t *table) modules() []*Module {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Module
	for _, id := range t.order {
		if m, ok := t.nodes[id].(*Module); ok {
			out = append(out, m)
		}
	}
	return out
}

// externals returns the external modules in insertion order.
func (t *table) externals() []*External {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*External
	for _, id := range t.order {
		if e, ok := t.nodes[id].(*External); ok {
			out = append(out, e)
		}
	}
	return out
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}
