package depwell

// DependencyGraph is an adjacency snapshot of a compiled plan, exported for
// tooling and debug rendering. It is immutable after construction.
type DependencyGraph struct {
	upstream   map[Identity][]Identity // dependent -> dependencies
	downstream map[Identity][]Identity // dependency -> dependents
	root       Identity
}

// Graph builds the adjacency snapshot for the plan.
func (p *ResolutionPlan) Graph() *DependencyGraph {
	g := &DependencyGraph{
		upstream:   make(map[Identity][]Identity, len(p.descriptors)),
		downstream: make(map[Identity][]Identity, len(p.descriptors)),
		root:       p.root,
	}
	for id, desc := range p.descriptors {
		for _, dep := range desc.Dependencies {
			g.upstream[id] = appendUnique(g.upstream[id], dep.Identity)
			g.downstream[dep.Identity] = appendUnique(g.downstream[dep.Identity], id)
		}
	}
	return g
}

// Root returns the plan root the graph was built from.
func (g *DependencyGraph) Root() Identity {
	return g.root
}

// Dependencies returns the direct dependencies of id.
func (g *DependencyGraph) Dependencies(id Identity) []Identity {
	return copyIdentities(g.upstream[id])
}

// Dependents returns the direct dependents of id.
func (g *DependencyGraph) Dependents(id Identity) []Identity {
	return copyIdentities(g.downstream[id])
}

// TransitiveDependents walks downstream from id and returns every provider
// that directly or indirectly depends on it. Uses an explicit stack so deep
// graphs cannot overflow.
func (g *DependencyGraph) TransitiveDependents(id Identity) []Identity {
	stack := make([]Identity, 0, 32)
	stack = append(stack, id)

	visited := make(map[Identity]bool, 32)
	dependents := make([]Identity, 0, 32)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}
		visited[current] = true

		if current != id {
			dependents = append(dependents, current)
		}

		for _, dep := range g.downstream[current] {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}

	return dependents
}

// Export returns a copy of the dependent -> dependencies adjacency map.
func (g *DependencyGraph) Export() map[Identity][]Identity {
	out := make(map[Identity][]Identity, len(g.upstream))
	for id, deps := range g.upstream {
		out[id] = copyIdentities(deps)
	}
	return out
}

func copyIdentities(ids []Identity) []Identity {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Identity, len(ids))
	copy(out, ids)
	return out
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}
