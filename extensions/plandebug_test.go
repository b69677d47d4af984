package extensions

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/depwell/depwell"
)

func diamondRegistry(t *testing.T, failing bool) *depwell.Registry {
	t.Helper()
	reg := depwell.NewRegistry()

	provide := func(id depwell.Identity, deps []depwell.DependencyRef, fail bool) {
		err := depwell.Provide(reg, id, deps,
			func(ctx context.Context, args depwell.Args) (string, error) {
				if fail {
					return "", errors.New("synthetic failure")
				}
				return string(id), nil
			})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	provide("d", nil, failing)
	provide("b", []depwell.DependencyRef{depwell.Depends("d", "d")}, false)
	provide("c", []depwell.DependencyRef{depwell.Depends("d", "d")}, false)
	provide("a", []depwell.DependencyRef{depwell.Depends("b", "b"), depwell.Depends("c", "c")}, false)

	return reg
}

func TestDrawPlan_ContainsAllIdentities(t *testing.T) {
	reg := diamondRegistry(t, false)
	plan, err := depwell.NewPlanner(reg).Plan("a")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	drawing := DrawPlan(plan, "")
	for _, id := range []string{"a", "b", "c", "d"} {
		if !strings.Contains(drawing, id) {
			t.Errorf("expected drawing to contain %s:\n%s", id, drawing)
		}
	}
}

func TestDrawPlan_MarksFailedIdentity(t *testing.T) {
	reg := diamondRegistry(t, false)
	plan, err := depwell.NewPlanner(reg).Plan("a")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	drawing := DrawPlan(plan, "d")
	if !strings.Contains(drawing, "d [FAILED]") {
		t.Errorf("expected failed marker in drawing:\n%s", drawing)
	}
}

func TestPlanDebug_LogsOnResolutionError(t *testing.T) {
	reg := diamondRegistry(t, true)

	var buf bytes.Buffer
	ext := NewPlanDebugExtension(slog.NewTextHandler(&buf, nil))

	engine := depwell.New(reg, reg,
		depwell.WithScopeDefaults(depwell.WithExtension(ext)))

	_, _, err := engine.Resolve(context.Background(), "a")
	if err == nil {
		t.Fatal("expected resolution failure")
	}

	out := buf.String()
	if !strings.Contains(out, "resolution failed") {
		t.Errorf("expected error log, got:\n%s", out)
	}
	if !strings.Contains(out, "d") {
		t.Errorf("expected failing identity in log, got:\n%s", out)
	}
}
