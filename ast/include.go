package ast

// Body wraps a module's statements with the indexes the inclusion step needs.
// All marking is monotonic: Included flags only flip false to true, so every
// method is idempotent and the enclosing fixed-point loop terminates.
type Body struct {
	statements []*Statement
	declared   map[string]*Statement
}

// NewBody builds the declaration index for a module's statements. When two
// statements declare the same name the first one wins; scanners only emit
// duplicates for pathological sources.
func NewBody(statements []*Statement) *Body {
	declared := make(map[string]*Statement)
	for _, s := range statements {
		for _, name := range s.Declares {
			if _, ok := declared[name]; !ok {
				declared[name] = s
			}
		}
	}
	return &Body{statements: statements, declared: declared}
}

// Statements returns the underlying statement list.
func (b *Body) Statements() []*Statement {
	return b.statements
}

// IncludeStatements runs one local inclusion step: every statement with
// observable side effects is included, then the declaration closure of all
// included statements. Reports whether anything new was included.
func (b *Body) IncludeStatements() bool {
	changed := false
	for _, s := range b.statements {
		if s.SideEffects && !s.Included {
			s.Included = true
			changed = true
		}
	}
	if b.closeOverReads() {
		changed = true
	}
	return changed
}

// IncludeDeclaration includes the statement declaring name, plus the
// declaration closure that pulls in. Reports whether anything new was
// included; a name with no local declaration is a no-op.
func (b *Body) IncludeDeclaration(name string) bool {
	d := b.declared[name]
	if d == nil || d.Included {
		return false
	}
	d.Included = true
	b.closeOverReads()
	return true
}

// IncludeAll includes every statement unconditionally. Used when tree-shaking
// is disabled for the build or for a single module.
func (b *Body) IncludeAll() bool {
	changed := false
	for _, s := range b.statements {
		if !s.Included {
			s.Included = true
			changed = true
		}
	}
	return changed
}

// DeclaresName reports whether any statement declares name at module scope.
func (b *Body) DeclaresName(name string) bool {
	_, ok := b.declared[name]
	return ok
}

// ReferencedNames returns every name read by an included statement, in first
// appearance order without duplicates. The caller filters these against its
// import map to find cross-module triggers; unmatched names are globals.
func (b *Body) ReferencedNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range b.statements {
		if !s.Included {
			continue
		}
		for _, name := range s.Reads {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// IncludedAt reports whether the statement spanning pos is included. Used to
// gate dynamic imports on their call site surviving inclusion.
func (b *Body) IncludedAt(pos int) bool {
	for _, s := range b.statements {
		if s.Pos <= pos && pos < s.End {
			return s.Included
		}
	}
	return false
}

// HasIncluded reports whether at least one statement is included.
func (b *Body) HasIncluded() bool {
	for _, s := range b.statements {
		if s.Included {
			return true
		}
	}
	return false
}

// IncludedStatements returns the included statements in source order.
func (b *Body) IncludedStatements() []*Statement {
	var out []*Statement
	for _, s := range b.statements {
		if s.Included {
			out = append(out, s)
		}
	}
	return out
}

// closeOverReads includes declarations of names read by included statements
// until no statement changes. Newly included declarations may read further
// names, hence the repeat.
func (b *Body) closeOverReads() bool {
	changed := false
	for again := true; again; {
		again = false
		for _, s := range b.statements {
			if !s.Included {
				continue
			}
			for _, name := range s.Reads {
				if d := b.declared[name]; d != nil && !d.Included {
					d.Included = true
					again = true
					changed = true
				}
			}
		}
	}
	return changed
}
