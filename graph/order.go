package graph

// analyseExecution computes the deterministic execution order over the graph
// reachable from entries: a depth-first post-order over static import edges,
// following entry declaration order and then declaration order within each
// module. A dependency already on the active recursion stack is a back-edge;
// it is recorded as a cycle path and skipped so cyclic graphs still produce a
// total order. Dynamic-import targets and implicit entries are visited after
// the explicit entries so they receive positions without being anchored to
// their trigger sites.
//
// Every reachable internal module appears in the returned order exactly once
// with a dense ExecIndex; externals receive indices but are not emitted.
// Cycle paths repeat the starting module id at the close.
func analyseExecution(entries []*Module) (ordered []*Module, cycles [][]string) {
	var (
		nextIndex int
		analysed  = make(map[ModuleNode]bool)
		// parents doubles as the visited set: a node with a recorded parent
		// that is not yet analysed is on the active stack.
		parents = make(map[ModuleNode]ModuleNode)
		// deferred collects dynamic-import targets and implicitly-loaded
		// implicit entries, in first-trigger order.
		deferred     []*Module
		deferredSeen = make(map[*Module]bool)
	)

	deferVisit := func(m *Module) {
		if !deferredSeen[m] {
			deferredSeen[m] = true
			deferred = append(deferred, m)
		}
	}

	var analyse func(node ModuleNode)
	analyse = func(node ModuleNode) {
		if m, ok := node.(*Module); ok {
			for _, dep := range m.Dependencies() {
				if _, seen := parents[dep]; seen {
					if !analysed[dep] {
						cycles = append(cycles, cyclePath(dep, m, parents))
					}
					continue
				}
				parents[dep] = m
				analyse(dep)
			}
			for _, implicit := range m.implicitlyLoadedBefore {
				deferVisit(implicit)
			}
			for _, target := range m.DynamicDependencies() {
				if dyn, ok := target.(*Module); ok {
					deferVisit(dyn)
				}
			}
			ordered = append(ordered, m)
		}
		switch n := node.(type) {
		case *Module:
			n.ExecIndex = nextIndex
		case *External:
			n.ExecIndex = nextIndex
		}
		nextIndex++
		analysed[node] = true
	}

	for _, entry := range entries {
		if _, seen := parents[entry]; !seen {
			parents[entry] = nil
			analyse(entry)
		}
	}
	// deferred grows while being iterated: dynamic targets can themselves
	// trigger further dynamic imports.
	for i := 0; i < len(deferred); i++ {
		entry := deferred[i]
		if _, seen := parents[entry]; !seen {
			parents[entry] = nil
			analyse(entry)
		}
	}

	return ordered, cycles
}

// cyclePath reconstructs the import cycle closed by the back-edge from
// importer to head, walking the parent chain. The returned ids start and end
// with the head module.
func cyclePath(head ModuleNode, importer *Module, parents map[ModuleNode]ModuleNode) []string {
	path := []string{head.ModuleID()}
	var next ModuleNode = importer
	for next != head {
		path = append(path, next.ModuleID())
		next = parents[next]
	}
	path = append(path, path[0])
	// The parent chain was collected innermost-first; reverse into import
	// order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
