package extensions

import (
	"fmt"
	"log/slog"

	"github.com/m1gwings/treedrawer/tree"

	"github.com/depwell/depwell"
)

// PlanDebugExtension logs a drawing of the resolution plan when a provider
// fails, marking the failing identity. Useful while wiring a graph; too
// chatty for production scopes.
type PlanDebugExtension struct {
	depwell.BaseExtension
	logger *slog.Logger
}

// NewPlanDebugExtension creates a plan debug extension over the given slog
// handler.
func NewPlanDebugExtension(handler slog.Handler) *PlanDebugExtension {
	return &PlanDebugExtension{
		BaseExtension: depwell.NewBaseExtension("plan-debug"),
		logger:        slog.New(handler),
	}
}

// OnError draws the failed resolution's dependency tree.
func (e *PlanDebugExtension) OnError(err error, op *depwell.Operation, scope *depwell.Scope) {
	if op.Plan == nil {
		return
	}

	e.logger.Error("resolution failed",
		"identity", string(op.Identity),
		"error", err.Error(),
		"plan", DrawPlan(op.Plan, op.Identity),
	)
}

// DrawPlan renders the plan's dependency tree rooted at the plan root. The
// failed identity, if any, is marked. Diamond dependencies appear once per
// dependent; cycles cannot occur in a compiled plan.
func DrawPlan(plan *depwell.ResolutionPlan, failed depwell.Identity) string {
	graph := plan.Graph()

	t := tree.NewTree(tree.NodeString(label(plan.Root(), failed)))
	addChildren(t, graph, plan.Root(), failed)

	return fmt.Sprint(t)
}

func addChildren(t *tree.Tree, graph *depwell.DependencyGraph, id depwell.Identity, failed depwell.Identity) {
	deps := graph.Dependencies(id)
	for i, dep := range deps {
		t.AddChild(tree.NodeString(label(dep, failed)))
		child, err := t.Child(i)
		if err != nil {
			continue
		}
		addChildren(child, graph, dep, failed)
	}
}

func label(id depwell.Identity, failed depwell.Identity) string {
	if id == failed {
		return string(id) + " [FAILED]"
	}
	return string(id)
}
