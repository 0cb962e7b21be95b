package cache

import (
	"testing"

	"github.com/wippyai/esm-bundler/ast"
)

func TestFactsCache_HashValidation(t *testing.T) {
	c, err := NewFactsCache(4)
	if err != nil {
		t.Fatal(err)
	}
	facts := &ast.ModuleFacts{Code: "export const a = 1"}
	hash := HashContent(facts.Code)
	c.Add("/src/a.js", hash, facts)

	got, ok := c.Get("/src/a.js", hash)
	if !ok || got != facts {
		t.Fatalf("Get with matching hash = %v, %v", got, ok)
	}
	if _, ok := c.Get("/src/a.js", HashContent("export const a = 2")); ok {
		t.Error("Get with stale hash should miss")
	}
}

func TestFactsCache_Seed(t *testing.T) {
	c, err := NewFactsCache(0)
	if err != nil {
		t.Fatal(err)
	}
	facts := &ast.ModuleFacts{Code: "side()"}
	c.Seed(&Snapshot{Modules: []ModuleRecord{
		{ID: "/a.js", ContentHash: HashContent("side()"), Facts: facts},
		{ID: "/broken.js", ContentHash: "x"},
	}})

	got, ok := c.Get("/a.js", HashContent("side()"))
	if !ok || got != facts {
		t.Fatalf("seeded record missing: %v, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (nil-facts record skipped)", c.Len())
	}
}

func TestFactsCache_Eviction(t *testing.T) {
	c, err := NewFactsCache(2)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"/a", "/b", "/c"} {
		c.Add(id, "h", &ast.ModuleFacts{})
	}
	if _, ok := c.Get("/a", "h"); ok {
		t.Error("oldest entry survived past capacity")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}
