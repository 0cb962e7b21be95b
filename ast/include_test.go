package ast

import "testing"

func stmt(declares, reads []string, sideEffects bool) *Statement {
	return &Statement{Declares: declares, Reads: reads, SideEffects: sideEffects}
}

func TestIncludeStatements_SideEffectSeeding(t *testing.T) {
	pure := stmt([]string{"a"}, nil, false)
	effect := stmt(nil, nil, true)
	b := NewBody([]*Statement{pure, effect})

	if !b.IncludeStatements() {
		t.Fatal("expected first include pass to report changes")
	}
	if pure.Included {
		t.Error("pure unreferenced statement should not be included")
	}
	if !effect.Included {
		t.Error("side-effecting statement should be included")
	}
}

func TestIncludeStatements_DeclarationClosure(t *testing.T) {
	// const a = b; const b = c; const c = 1; console.log(a)
	declA := stmt([]string{"a"}, []string{"b"}, false)
	declB := stmt([]string{"b"}, []string{"c"}, false)
	declC := stmt([]string{"c"}, nil, false)
	unused := stmt([]string{"d"}, nil, false)
	call := stmt(nil, []string{"console", "a"}, true)
	b := NewBody([]*Statement{declA, declB, declC, unused, call})

	b.IncludeStatements()

	for i, s := range []*Statement{declA, declB, declC, call} {
		if !s.Included {
			t.Errorf("statement %d should be included", i)
		}
	}
	if unused.Included {
		t.Error("unused declaration should not be included")
	}
}

func TestIncludeStatements_Idempotent(t *testing.T) {
	declA := stmt([]string{"a"}, nil, false)
	call := stmt(nil, []string{"a"}, true)
	b := NewBody([]*Statement{declA, call})

	if !b.IncludeStatements() {
		t.Fatal("first pass should change")
	}
	if b.IncludeStatements() {
		t.Error("second pass at fixed point should report no changes")
	}
}

func TestIncludeDeclaration(t *testing.T) {
	declA := stmt([]string{"a"}, []string{"helper"}, false)
	declHelper := stmt([]string{"helper"}, nil, false)
	b := NewBody([]*Statement{declA, declHelper})

	if !b.IncludeDeclaration("a") {
		t.Fatal("including a declared name should report a change")
	}
	if !declA.Included || !declHelper.Included {
		t.Error("declaration closure should include transitive reads")
	}
	if b.IncludeDeclaration("a") {
		t.Error("re-including should be a no-op")
	}
	if b.IncludeDeclaration("missing") {
		t.Error("unknown name should be a no-op")
	}
}

func TestReferencedNames(t *testing.T) {
	imp := &Statement{Declares: []string{"x"}, IsImport: true}
	use := stmt(nil, []string{"x", "window", "x"}, true)
	skip := stmt(nil, []string{"never"}, false)
	b := NewBody([]*Statement{imp, use, skip})

	b.IncludeStatements()

	names := b.ReferencedNames()
	if len(names) != 2 || names[0] != "x" || names[1] != "window" {
		t.Errorf("ReferencedNames = %v, want [x window]", names)
	}
	if !imp.Included {
		t.Error("import statement should be included through its binding")
	}
}

func TestIncludeAll(t *testing.T) {
	a := stmt([]string{"a"}, nil, false)
	c := stmt(nil, nil, true)
	b := NewBody([]*Statement{a, c})

	if !b.IncludeAll() {
		t.Fatal("IncludeAll should report changes on fresh body")
	}
	if !a.Included || !c.Included {
		t.Error("all statements should be included")
	}
	if b.IncludeAll() {
		t.Error("IncludeAll at fixed point should report no changes")
	}
	if got := len(b.IncludedStatements()); got != 2 {
		t.Errorf("IncludedStatements length = %d, want 2", got)
	}
}

func TestModuleFactsHelpers(t *testing.T) {
	facts := &ModuleFacts{
		Exports: []ExportRecord{
			{Exported: "default", Local: DefaultName},
			{Exported: "helper", Local: "helper"},
		},
		Statements: []*Statement{stmt(nil, nil, false)},
	}

	names := facts.ExportedNames()
	if len(names) != 2 || names[0] != "default" || names[1] != "helper" {
		t.Errorf("ExportedNames = %v", names)
	}
	if facts.HasSideEffects() {
		t.Error("facts with only pure statements should have no side effects")
	}
	facts.Statements = append(facts.Statements, stmt(nil, nil, true))
	if !facts.HasSideEffects() {
		t.Error("facts with an effectful statement should have side effects")
	}
}
