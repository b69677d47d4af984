package depwell

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingExtension struct {
	BaseExtension
	mu       sync.Mutex
	wrapped  []Identity
	failures []Identity
}

func (e *recordingExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	e.mu.Lock()
	e.wrapped = append(e.wrapped, op.Identity)
	e.mu.Unlock()
	return next()
}

func (e *recordingExtension) OnError(err error, op *Operation, scope *Scope) {
	e.mu.Lock()
	e.failures = append(e.failures, op.Identity)
	e.mu.Unlock()
}

func TestExtension_WrapSeesEveryInvocation(t *testing.T) {
	reg := NewRegistry()
	value(t, reg, "d", 1)
	value(t, reg, "a", 2, Depends("d", "d"))

	ext := &recordingExtension{BaseExtension: NewBaseExtension("recorder")}

	engine := New(reg, reg, WithScopeDefaults(WithExtension(ext)))
	_, scope, err := engine.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer scope.Close(context.Background())

	if len(ext.wrapped) != 2 {
		t.Errorf("expected 2 wrapped invocations, got %v", ext.wrapped)
	}
}

func TestExtension_OnErrorCalledForFailingProvider(t *testing.T) {
	reg := NewRegistry()

	boom := errors.New("boom")
	err := Provide(reg, "bad", nil, func(ctx context.Context, args Args) (int, error) {
		return 0, boom
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ext := &recordingExtension{BaseExtension: NewBaseExtension("recorder")}

	engine := New(reg, reg, WithScopeDefaults(WithExtension(ext)))
	_, _, rerr := engine.Resolve(context.Background(), "bad")
	if !errors.Is(rerr, boom) {
		t.Fatalf("expected boom, got %v", rerr)
	}

	if len(ext.failures) != 1 || ext.failures[0] != "bad" {
		t.Errorf("expected failure reported for bad, got %v", ext.failures)
	}
}

type shortCircuitExtension struct {
	BaseExtension
}

func (e *shortCircuitExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	if op.Identity == "intercepted" {
		return "replaced", nil
	}
	return next()
}

func TestExtension_WrapMayShortCircuit(t *testing.T) {
	reg := NewRegistry()

	err := Provide(reg, "intercepted", nil, func(ctx context.Context, args Args) (string, error) {
		t.Error("intercepted provider must not run")
		return "original", nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ext := &shortCircuitExtension{BaseExtension: NewBaseExtension("short-circuit")}

	engine := New(reg, reg, WithScopeDefaults(WithExtension(ext)))
	val, scope, rerr := engine.Resolve(context.Background(), "intercepted")
	if rerr != nil {
		t.Fatalf("resolve: %v", rerr)
	}
	defer scope.Close(context.Background())

	if val != "replaced" {
		t.Errorf("expected replaced, got %v", val)
	}
}
