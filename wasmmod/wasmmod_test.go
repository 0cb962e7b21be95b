package wasmmod

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// WASM importing "log" from "./env.js" and exporting "run"
var importExportWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	// Type section: () -> ()
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	// Import section: "./env.js" "log" func type 0
	0x02, 0x10, 0x01,
	0x08, 0x2e, 0x2f, 0x65, 0x6e, 0x76, 0x2e, 0x6a, 0x73,
	0x03, 0x6c, 0x6f, 0x67,
	0x00, 0x00,
	// Function section: func uses type 0
	0x03, 0x02, 0x01, 0x00,
	// Export section: "run" -> func 1
	0x07, 0x07, 0x01, 0x03, 0x72, 0x75, 0x6e, 0x00, 0x01,
	// Code section: empty body
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

// WASM with two exports and no imports
var twoExportWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	// Type section: () -> ()
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	// Function section: two funcs of type 0
	0x03, 0x03, 0x02, 0x00, 0x00,
	// Export section: "aa" -> func 0, "bb" -> func 1
	0x07, 0x0b, 0x02,
	0x02, 0x61, 0x61, 0x00, 0x00,
	0x02, 0x62, 0x62, 0x00, 0x01,
	// Code section: two empty bodies
	0x0a, 0x07, 0x02, 0x02, 0x00, 0x0b, 0x02, 0x00, 0x0b,
}

func TestFacts_ImportAndExportSurface(t *testing.T) {
	ctx := context.Background()
	s := NewSource(ctx)
	defer s.Close(ctx)

	facts, err := s.Facts(ctx, importExportWASM)
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if len(facts.ImportSources) != 1 || facts.ImportSources[0] != "./env.js" {
		t.Errorf("ImportSources = %v", facts.ImportSources)
	}
	if len(facts.Imports) != 1 {
		t.Fatalf("Imports = %+v", facts.Imports)
	}
	imp := facts.Imports[0]
	if imp.Source != "./env.js" || imp.Imported != "log" || imp.Local == "" {
		t.Errorf("import record = %+v", imp)
	}
	if len(facts.Exports) != 1 || facts.Exports[0].Exported != "run" {
		t.Errorf("Exports = %+v", facts.Exports)
	}
	if !facts.HasSideEffects() {
		t.Error("instantiation must count as a side effect")
	}

	// One import statement, the instantiation, one export declaration.
	if len(facts.Statements) != 3 {
		t.Fatalf("statements = %d, want 3", len(facts.Statements))
	}
	if !facts.Statements[0].IsImport || facts.Statements[0].Declares[0] != imp.Local {
		t.Errorf("import statement = %+v", facts.Statements[0])
	}
	inst := facts.Statements[1]
	if !inst.SideEffects || len(inst.Reads) != 1 || inst.Reads[0] != imp.Local {
		t.Errorf("instantiation statement = %+v", inst)
	}
	if facts.Statements[2].Declares[0] != "run" {
		t.Errorf("export statement = %+v", facts.Statements[2])
	}
}

func TestFacts_ExportsSortedAndNoImports(t *testing.T) {
	ctx := context.Background()
	s := NewSource(ctx)
	defer s.Close(ctx)

	facts, err := s.Facts(ctx, twoExportWASM)
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if len(facts.ImportSources) != 0 {
		t.Errorf("ImportSources = %v, want none", facts.ImportSources)
	}
	got := facts.ExportedNames()
	if len(got) != 2 || got[0] != "aa" || got[1] != "bb" {
		t.Errorf("exports = %v, want sorted", got)
	}
	// Instantiation plus one declaration per export.
	if len(facts.Statements) != 3 {
		t.Errorf("statements = %d, want 3", len(facts.Statements))
	}
}

func TestFacts_InvalidBinary(t *testing.T) {
	ctx := context.Background()
	s := NewSource(ctx)
	defer s.Close(ctx)

	if _, err := s.Facts(ctx, []byte{0x00, 0x61, 0x73}); err == nil {
		t.Error("expected a compile error for truncated bytes")
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	ctx := context.Background()
	s := NewSource(ctx)
	defer s.Close(ctx)

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.wasm")
	if err := os.WriteFile(path, importExportWASM, 0o644); err != nil {
		t.Fatal(err)
	}
	facts, err := s.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(facts.Exports) != 1 || facts.Exports[0].Exported != "run" {
		t.Errorf("Exports = %+v", facts.Exports)
	}
	if _, err := s.Load(ctx, filepath.Join(dir, "missing.wasm")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestHandles(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"./lib/math.wasm", true},
		{"/abs/path/mod.wasm", true},
		{"./main.js", false},
		{"./wasm.js", false},
	}
	for _, tt := range tests {
		if got := Handles(tt.id); got != tt.want {
			t.Errorf("Handles(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
