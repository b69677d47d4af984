package depwell

import (
	"errors"
	"sync"
)

// ResolutionPlan is the immutable product of planning one root identity:
// the transitive provider set partitioned into levels, where every entry of
// level i depends only on entries of levels 0..i-1. Entries within one level
// are independent of each other and safe to evaluate concurrently.
type ResolutionPlan struct {
	root        Identity
	levels      [][]Identity
	descriptors map[Identity]*ProviderDescriptor
}

// Root returns the identity the plan resolves.
func (p *ResolutionPlan) Root() Identity {
	return p.root
}

// Levels returns a copy of the level partition, dependencies first.
func (p *ResolutionPlan) Levels() [][]Identity {
	out := make([][]Identity, len(p.levels))
	for i, level := range p.levels {
		out[i] = make([]Identity, len(level))
		copy(out[i], level)
	}
	return out
}

// Descriptor returns the descriptor snapshot captured at plan time.
func (p *ResolutionPlan) Descriptor(id Identity) (*ProviderDescriptor, bool) {
	d, ok := p.descriptors[id]
	return d, ok
}

// Size returns the number of distinct providers in the plan.
func (p *ResolutionPlan) Size() int {
	return len(p.descriptors)
}

// Planner compiles and caches resolution plans. Plans are cached per root
// identity; descriptors are immutable once registered, so cached plans never
// need invalidation.
type Planner struct {
	source DescriptorSource
	plans  sync.Map // Identity -> *ResolutionPlan
}

// NewPlanner creates a planner over the given descriptor source.
func NewPlanner(source DescriptorSource) *Planner {
	return &Planner{source: source}
}

// Plan returns the resolution plan for root, building and caching it on
// first use. It fails with a CycleError if the dependency graph revisits an
// identity still under construction, and with an UnknownDependencyError if a
// declared dependency has no descriptor. No provider is invoked during
// planning.
func (pl *Planner) Plan(root Identity) (*ResolutionPlan, error) {
	if cached, ok := pl.plans.Load(root); ok {
		return cached.(*ResolutionPlan), nil
	}

	b := &planBuilder{
		source:      pl.source,
		levels:      make(map[Identity]int),
		descriptors: make(map[Identity]*ProviderDescriptor),
		inBuild:     make(map[Identity]bool),
	}
	rootLevel, err := b.visit(root, "")
	if err != nil {
		return nil, err
	}

	levels := make([][]Identity, rootLevel+1)
	for id, lvl := range b.levels {
		levels[lvl] = append(levels[lvl], id)
	}

	plan := &ResolutionPlan{
		root:        root,
		levels:      levels,
		descriptors: b.descriptors,
	}

	// Two goroutines may race to plan the same root; both build equivalent
	// plans, the first stored one wins.
	actual, _ := pl.plans.LoadOrStore(root, plan)
	return actual.(*ResolutionPlan), nil
}

type planBuilder struct {
	source      DescriptorSource
	levels      map[Identity]int
	descriptors map[Identity]*ProviderDescriptor
	inBuild     map[Identity]bool
	path        []Identity
}

// visit places id at the earliest level strictly greater than the maximum
// level of its dependencies, memoizing completed nodes so shared
// dependencies are traversed once.
func (b *planBuilder) visit(id Identity, requiredBy Identity) (int, error) {
	if lvl, done := b.levels[id]; done {
		return lvl, nil
	}
	if b.inBuild[id] {
		return 0, &CycleError{Path: b.cyclePath(id)}
	}

	desc, err := b.source.Lookup(id)
	if err != nil {
		var unknown *UnknownDependencyError
		if errors.As(err, &unknown) && unknown.RequiredBy == "" {
			return 0, &UnknownDependencyError{Identity: id, RequiredBy: requiredBy}
		}
		return 0, err
	}
	if desc == nil {
		return 0, &UnknownDependencyError{Identity: id, RequiredBy: requiredBy}
	}

	b.inBuild[id] = true
	b.path = append(b.path, id)

	max := -1
	for _, dep := range desc.Dependencies {
		lvl, err := b.visit(dep.Identity, id)
		if err != nil {
			return 0, err
		}
		if lvl > max {
			max = lvl
		}
	}

	b.path = b.path[:len(b.path)-1]
	delete(b.inBuild, id)

	lvl := max + 1
	b.levels[id] = lvl
	b.descriptors[id] = desc
	return lvl, nil
}

// cyclePath slices the active traversal path from the first occurrence of
// the revisited identity, closing the loop at the end.
func (b *planBuilder) cyclePath(id Identity) []Identity {
	start := 0
	for i, p := range b.path {
		if p == id {
			start = i
			break
		}
	}
	cycle := make([]Identity, 0, len(b.path)-start+1)
	cycle = append(cycle, b.path[start:]...)
	cycle = append(cycle, id)
	return cycle
}
