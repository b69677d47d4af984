package extensions

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/depwell/depwell"
)

func TestLogging_RecordsInvocationsAndFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ext := NewLoggingExtension(zap.New(core))

	reg := depwell.NewRegistry()
	err := depwell.Provide(reg, "ok", nil,
		func(ctx context.Context, args depwell.Args) (int, error) {
			return 1, nil
		})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	err = depwell.Provide(reg, "bad", []depwell.DependencyRef{depwell.Depends("ok", "ok")},
		func(ctx context.Context, args depwell.Args) (int, error) {
			return 0, errors.New("boom")
		})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	engine := depwell.New(reg, reg,
		depwell.WithScopeDefaults(depwell.WithExtension(ext)))

	if _, _, err := engine.Resolve(context.Background(), "bad"); err == nil {
		t.Fatal("expected failure")
	}

	if n := logs.FilterMessage("provider resolved").Len(); n != 1 {
		t.Errorf("expected 1 resolved log, got %d", n)
	}
	if n := logs.FilterMessage("provider failed").Len(); n != 1 {
		t.Errorf("expected 1 failed log, got %d", n)
	}
}

func TestLogging_TeardownFailureLoggedNotClaimed(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ext := NewLoggingExtension(zap.New(core))

	scope := depwell.NewScope(depwell.WithExtension(ext))

	reg := depwell.NewRegistry()
	err := depwell.ProvideResource(reg, "res", nil,
		func(ctx context.Context, args depwell.Args) (string, depwell.Cleanup, error) {
			return "res", func(ctx context.Context) error {
				return errors.New("close failed")
			}, nil
		})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	engine := depwell.New(reg, reg)
	plan, err := engine.Plan("res")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := engine.Execute(context.Background(), plan, scope); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cerr := scope.Close(context.Background())

	var teardown *depwell.TeardownError
	if !errors.As(cerr, &teardown) {
		t.Fatalf("expected TeardownError to survive logging, got %v", cerr)
	}
	if n := logs.FilterMessage("cleanup failed").Len(); n != 1 {
		t.Errorf("expected 1 cleanup failure log, got %d", n)
	}
}
