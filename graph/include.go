package graph

import (
	"go.uber.org/zap"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/errors"
)

// includeStatements runs the inclusion stage over the ordered module list:
// it decides which modules execute and which statements survive. With
// tree-shaking off every reachable statement is included; with it on, the
// engine iterates passes until a fixed point, with cross-module binding
// references re-triggering exporting modules. All flags are monotonic, so
// the loop terminates.
func (g *Graph) includeStatements() error {
	seeds := make([]*Module, 0, len(g.entries)+len(g.implicitEntries))
	seeds = append(seeds, g.entries...)
	seeds = append(seeds, g.implicitEntries...)

	for _, m := range seeds {
		markExecutedWithDependencies(m)
	}

	if !g.opts.TreeShake {
		for _, m := range g.ordered {
			if !m.Executed {
				m.Executed = true
			}
			m.Body.IncludeAll()
		}
	} else {
		pass := 1
		for {
			needsPass := false
			for _, m := range g.ordered {
				if !m.Executed {
					continue
				}
				if g.includeModule(m) {
					needsPass = true
				}
			}
			if pass == 1 {
				// Entry export surfaces join the live set only after the
				// first pass gave side effects a chance to settle.
				for _, m := range seeds {
					if m.Preserve != PreserveFalse {
						if g.includeAllExports(m, make(map[*Module]bool)) {
							needsPass = true
						}
					}
				}
			}
			Logger().Debug("tree-shaking pass complete",
				zap.Int("pass", pass),
				zap.Bool("needs_another", needsPass))
			if !needsPass {
				break
			}
			pass++
		}
	}

	if g.opts.TreeShake {
		for _, e := range g.table.externals() {
			names, importers := e.unusedImports()
			if len(names) > 0 {
				g.warn(errors.UnusedExternalImport(e.ID, names, importers))
			}
		}
	}

	// Implicit entries promise their dependants run first; a dependant that
	// was tree-shaken away or never loaded would break that contract.
	for _, implicit := range g.implicitEntries {
		for _, dependant := range implicit.implicitlyLoadedAfter {
			if !dependant.IsEntry && !dependant.IsIncluded() {
				return errors.MissingImplicitDependant(dependant.ID, implicitIDs(dependant.implicitlyLoadedBefore))
			}
		}
	}
	return nil
}

func implicitIDs(modules []*Module) []string {
	ids := make([]string, len(modules))
	for i, m := range modules {
		ids[i] = m.ID
	}
	return ids
}

// markExecutedWithDependencies marks root executed together with every
// transitive static dependency that carries side effects. Implicit
// dependants are walked unconditionally: they were requested for their
// effects on load order. Externals execute outside the graph and are
// skipped.
func markExecutedWithDependencies(root *Module) bool {
	changed := !root.Executed
	root.Executed = true
	queue := []*Module{root}
	visited := map[string]bool{root.ID: true}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		deps := m.Dependencies()
		implicitStart := len(deps)
		for _, implicit := range m.implicitlyLoadedBefore {
			deps = append(deps, implicit)
		}
		for i, dep := range deps {
			target, ok := dep.(*Module)
			if !ok || target.Executed || visited[target.ID] {
				continue
			}
			if i < implicitStart && !target.hasSideEffects() {
				continue
			}
			visited[target.ID] = true
			target.Executed = true
			changed = true
			queue = append(queue, target)
		}
	}
	return changed
}

// includeModule runs one local inclusion step for an executed module plus
// the cross-module triggers it causes: any imported binding read by an
// included statement pulls the exporting statement in the source module, and
// the source module joins the executed set if that was its first inclusion.
// Dynamic imports whose call site survived become live entries with their
// full export surface, since namespace member access happens at runtime.
func (g *Graph) includeModule(m *Module) bool {
	changed := m.Body.IncludeStatements()
	for _, name := range m.Body.ReferencedNames() {
		rec, ok := m.importsByLocal[name]
		if !ok {
			continue // module-local or global name
		}
		if g.includeImportedName(m, rec) {
			changed = true
		}
	}
	for i, target := range m.dynamicResolved {
		if target == nil || !m.Body.IncludedAt(m.Facts.DynamicImports[i].Pos) {
			continue
		}
		switch t := target.(type) {
		case *Module:
			if g.includeAllExports(t, make(map[*Module]bool)) {
				changed = true
			}
		case *External:
			t.markUsed("*")
		}
	}
	return changed
}

func (g *Graph) includeImportedName(importer *Module, rec ast.ImportRecord) bool {
	target, ok := importer.resolved[rec.Source]
	if !ok {
		return false
	}
	switch t := target.(type) {
	case *External:
		t.markUsed(rec.Imported)
		return false
	case *Module:
		if rec.Imported == "*" {
			return g.includeAllExports(t, make(map[*Module]bool))
		}
		return g.includeExport(t, rec.Imported, importer, rec.Pos, make(map[*Module]bool))
	}
	return false
}

// includeExport marks the statement exporting name inside exporter, chasing
// re-export chains and export-star sources. A name that cannot be found
// resolves to an undefined binding and warns once, per ECMAScript module
// semantics, instead of failing the build.
func (g *Graph) includeExport(exporter *Module, name string, importer *Module, pos int, seen map[*Module]bool) bool {
	if seen[exporter] {
		return false
	}
	seen[exporter] = true

	if rec, ok := exporter.exportsByName[name]; ok {
		switch {
		case rec.Source == "":
			changed := exporter.Body.IncludeDeclaration(rec.Local)
			if !exporter.Executed {
				if markExecutedWithDependencies(exporter) {
					changed = true
				}
			}
			return changed
		case rec.Local == "*":
			// export * as ns: the whole source surface becomes observable.
			if target, ok := exporter.resolved[rec.Source].(*Module); ok {
				return g.includeAllExports(target, make(map[*Module]bool))
			}
			if ext, ok := exporter.resolved[rec.Source].(*External); ok {
				ext.markUsed("*")
			}
			return false
		default:
			switch target := exporter.resolved[rec.Source].(type) {
			case *Module:
				return g.includeExport(target, rec.Local, importer, pos, seen)
			case *External:
				target.markUsed(rec.Local)
				return false
			}
			return false
		}
	}

	// Star re-exports: first source that provides the name wins; default is
	// never conveyed by a star.
	if name != "default" {
		for _, source := range exporter.Facts.ExportAllSources {
			switch target := exporter.resolved[source].(type) {
			case *Module:
				if g.exportsName(target, name, make(map[*Module]bool)) {
					return g.includeExport(target, name, importer, pos, seen)
				}
			case *External:
				// Unverifiable: assume the external provides it.
				target.markUsed(name)
				return false
			}
		}
	}

	g.warnMissingExport(name, importer, exporter, pos)
	return false
}

// exportsName reports whether m exports name, directly or through star
// re-exports. External star sources count as providing anything.
func (g *Graph) exportsName(m *Module, name string, seen map[*Module]bool) bool {
	if seen[m] {
		return false
	}
	seen[m] = true
	if _, ok := m.exportsByName[name]; ok {
		return true
	}
	if name == "default" {
		return false
	}
	for _, source := range m.Facts.ExportAllSources {
		switch target := m.resolved[source].(type) {
		case *Module:
			if g.exportsName(target, name, seen) {
				return true
			}
		case *External:
			return true
		}
	}
	return false
}

// includeAllExports makes a module's entire export surface live: every own
// export, every re-export, and everything reachable through export-star
// sources. Used for entry signatures and namespace imports.
func (g *Graph) includeAllExports(m *Module, seen map[*Module]bool) bool {
	if seen[m] {
		return false
	}
	seen[m] = true

	changed := false
	if !m.Executed {
		if markExecutedWithDependencies(m) {
			changed = true
		}
	}
	for _, rec := range m.Facts.Exports {
		switch {
		case rec.Source == "":
			if m.Body.IncludeDeclaration(rec.Local) {
				changed = true
			}
		case rec.Local == "*":
			if target, ok := m.resolved[rec.Source].(*Module); ok {
				if g.includeAllExports(target, seen) {
					changed = true
				}
			} else if ext, ok := m.resolved[rec.Source].(*External); ok {
				ext.markUsed("*")
			}
		default:
			switch target := m.resolved[rec.Source].(type) {
			case *Module:
				if g.includeExport(target, rec.Local, m, rec.Pos, make(map[*Module]bool)) {
					changed = true
				}
			case *External:
				target.markUsed(rec.Local)
			}
		}
	}
	for _, source := range m.Facts.ExportAllSources {
		switch target := m.resolved[source].(type) {
		case *Module:
			if g.includeAllExports(target, seen) {
				changed = true
			}
		case *External:
			target.markUsed("*")
		}
	}
	return changed
}

func (g *Graph) warnMissingExport(name string, importer, exporter *Module, pos int) {
	key := importer.ID + "\x00" + name + "\x00" + exporter.ID
	if g.warnedExports[key] {
		return
	}
	g.warnedExports[key] = true
	g.warn(errors.NonExistentExport(name, importer.ID, exporter.ID, pos))
}
