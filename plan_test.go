package depwell

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// value registers a plain provider returning a fixed value.
func value(t *testing.T, r *Registry, id Identity, v any, deps ...DependencyRef) {
	t.Helper()
	err := Provide(r, id, deps, func(ctx context.Context, args Args) (any, error) {
		return v, nil
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func sortedLevel(level []Identity) []string {
	out := make([]string, len(level))
	for i, id := range level {
		out[i] = string(id)
	}
	sort.Strings(out)
	return out
}

func TestPlan_DiamondLevels(t *testing.T) {
	reg := NewRegistry()
	value(t, reg, "d", 1)
	value(t, reg, "b", 2, Depends("d", "d"))
	value(t, reg, "c", 3, Depends("d", "d"))
	value(t, reg, "a", 4, Depends("b", "b"), Depends("c", "c"))

	plan, err := NewPlanner(reg).Plan("a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	levels := plan.Levels()
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if got := sortedLevel(levels[0]); len(got) != 1 || got[0] != "d" {
		t.Errorf("level 0: expected [d], got %v", got)
	}
	if got := sortedLevel(levels[1]); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("level 1: expected [b c], got %v", got)
	}
	if got := sortedLevel(levels[2]); len(got) != 1 || got[0] != "a" {
		t.Errorf("level 2: expected [a], got %v", got)
	}
	if plan.Root() != "a" {
		t.Errorf("expected root a, got %s", plan.Root())
	}
}

func TestPlan_CoarsestPartition(t *testing.T) {
	// a -> b -> c and a -> d: d has no deps and must sit at level 0
	// alongside c, not in a level of its own.
	reg := NewRegistry()
	value(t, reg, "c", 1)
	value(t, reg, "d", 2)
	value(t, reg, "b", 3, Depends("c", "c"))
	value(t, reg, "a", 4, Depends("b", "b"), Depends("d", "d"))

	plan, err := NewPlanner(reg).Plan("a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	levels := plan.Levels()
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if got := sortedLevel(levels[0]); len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Errorf("level 0: expected [c d], got %v", got)
	}
}

func TestPlan_CycleDetected(t *testing.T) {
	reg := NewRegistry()
	value(t, reg, "a", 1, Depends("b", "b"))
	value(t, reg, "b", 2, Depends("c", "c"))
	value(t, reg, "c", 3, Depends("a", "a"))

	_, err := NewPlanner(reg).Plan("a")

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Path) != 4 {
		t.Fatalf("expected cycle path of 4 entries, got %v", cycle.Path)
	}
	if cycle.Path[0] != cycle.Path[len(cycle.Path)-1] {
		t.Errorf("expected cycle path to close on itself, got %v", cycle.Path)
	}
}

func TestPlan_SelfCycle(t *testing.T) {
	reg := NewRegistry()
	value(t, reg, "a", 1, Depends("a", "a"))

	_, err := NewPlanner(reg).Plan("a")

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestPlan_TransientParticipatesInCycleDetection(t *testing.T) {
	reg := NewRegistry()
	err := Provide(reg, "a", []DependencyRef{Depends("a", "a")},
		func(ctx context.Context, args Args) (int, error) { return 0, nil },
		AsTransient())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = NewPlanner(reg).Plan("a")

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError for transient self-reference, got %v", err)
	}
}

func TestPlan_UnknownDependency(t *testing.T) {
	reg := NewRegistry()
	value(t, reg, "a", 1, Depends("gone", "missing"))

	_, err := NewPlanner(reg).Plan("a")

	var unknown *UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unknown.Identity != "missing" {
		t.Errorf("expected missing identity, got %s", unknown.Identity)
	}
	if unknown.RequiredBy != "a" {
		t.Errorf("expected required-by a, got %s", unknown.RequiredBy)
	}
}

func TestPlan_UnknownRoot(t *testing.T) {
	reg := NewRegistry()

	_, err := NewPlanner(reg).Plan("nope")

	var unknown *UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unknown.Identity != "nope" {
		t.Errorf("expected nope, got %s", unknown.Identity)
	}
}

func TestPlan_CachedPerRoot(t *testing.T) {
	reg := NewRegistry()
	value(t, reg, "a", 1)

	planner := NewPlanner(reg)
	first, err := planner.Plan("a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := planner.Plan("a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first != second {
		t.Error("expected the cached plan instance on repeat planning")
	}
}

func TestPlan_NoInvocationDuringPlanning(t *testing.T) {
	reg := NewRegistry()
	invoked := 0
	err := Provide(reg, "a", nil, func(ctx context.Context, args Args) (int, error) {
		invoked++
		return 1, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := NewPlanner(reg).Plan("a"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if invoked != 0 {
		t.Errorf("expected no invocations during planning, got %d", invoked)
	}
}

func TestPlan_CycleReportedBeforeAnyInvocation(t *testing.T) {
	reg := NewRegistry()
	invoked := 0
	err := Provide(reg, "a", []DependencyRef{Depends("b", "b")},
		func(ctx context.Context, args Args) (int, error) {
			invoked++
			return 0, nil
		})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	err = Provide(reg, "b", []DependencyRef{Depends("a", "a")},
		func(ctx context.Context, args Args) (int, error) {
			invoked++
			return 0, nil
		})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	engine := New(reg, reg)
	_, _, rerr := engine.Resolve(context.Background(), "a")

	var cycle *CycleError
	if !errors.As(rerr, &cycle) {
		t.Fatalf("expected CycleError, got %v", rerr)
	}
	if invoked != 0 {
		t.Errorf("expected no provider invoked on cyclic graph, got %d", invoked)
	}
}

func TestPlan_GraphExport(t *testing.T) {
	reg := NewRegistry()
	value(t, reg, "d", 1)
	value(t, reg, "b", 2, Depends("d", "d"))
	value(t, reg, "c", 3, Depends("d", "d"))
	value(t, reg, "a", 4, Depends("b", "b"), Depends("c", "c"))

	plan, err := NewPlanner(reg).Plan("a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	graph := plan.Graph()
	if deps := graph.Dependencies("a"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies of a, got %v", deps)
	}
	if dependents := graph.Dependents("d"); len(dependents) != 2 {
		t.Errorf("expected 2 dependents of d, got %v", dependents)
	}
	transitive := graph.TransitiveDependents("d")
	if len(transitive) != 3 {
		t.Errorf("expected 3 transitive dependents of d, got %v", transitive)
	}
}
