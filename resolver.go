package depwell

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Engine resolves targets declared in a descriptor source by compiling them
// into level-partitioned plans and executing the plans against scopes. An
// Engine is safe for concurrent use; each resolution gets its own scope.
type Engine struct {
	planner   *Planner
	invoker   Invoker
	scopeOpts []ScopeOption
}

// EngineOption is a modifier for engines.
type EngineOption func(*Engine)

// WithScopeDefaults sets scope options applied to every scope the engine
// opens. Per-call options are appended after these.
func WithScopeDefaults(opts ...ScopeOption) EngineOption {
	return func(e *Engine) {
		e.scopeOpts = append(e.scopeOpts, opts...)
	}
}

// New creates an engine over a descriptor source and an invoker. A *Registry
// satisfies both interfaces, so the common form is New(reg, reg).
func New(source DescriptorSource, invoker Invoker, opts ...EngineOption) *Engine {
	e := &Engine{
		planner: NewPlanner(source),
		invoker: invoker,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan compiles (or returns the cached) resolution plan for root.
func (e *Engine) Plan(root Identity) (*ResolutionPlan, error) {
	return e.planner.Plan(root)
}

// Resolve plans and executes root in a fresh scope. On success the caller
// owns the returned scope and must Close it once done with the value. On
// failure the scope is closed before returning: everything acquired up to
// the failure is torn down, and any teardown failure is appended to (never
// replaces) the primary error.
func (e *Engine) Resolve(ctx context.Context, root Identity, opts ...ScopeOption) (any, *Scope, error) {
	plan, err := e.planner.Plan(root)
	if err != nil {
		return nil, nil, err
	}

	scopeOpts := make([]ScopeOption, 0, len(e.scopeOpts)+len(opts))
	scopeOpts = append(scopeOpts, e.scopeOpts...)
	scopeOpts = append(scopeOpts, opts...)
	scope := NewScope(scopeOpts...)

	value, err := e.Execute(ctx, plan, scope)
	if err != nil {
		if cerr := scope.Close(ctx); cerr != nil && !errors.Is(cerr, ErrScopeClosed) {
			err = multierr.Append(err, cerr)
		}
		return nil, nil, err
	}
	return value, scope, nil
}

// WithResolution resolves root, invokes body with the value, and guarantees
// the scope is closed on every exit path. Teardown failures are appended to
// body's error.
func (e *Engine) WithResolution(ctx context.Context, root Identity, body func(ctx context.Context, value any) error, opts ...ScopeOption) (err error) {
	value, scope, err := e.Resolve(ctx, root, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := scope.Close(ctx); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}()
	return body(ctx, value)
}

// ResolveAs resolves root and asserts the result to T.
func ResolveAs[T any](ctx context.Context, e *Engine, root Identity, opts ...ScopeOption) (T, *Scope, error) {
	value, scope, err := e.Resolve(ctx, root, opts...)
	if err != nil {
		var zero T
		return zero, nil, err
	}
	typed, err := As[T](value)
	if err != nil {
		var zero T
		if cerr := scope.Close(ctx); cerr != nil {
			err = multierr.Append(err, cerr)
		}
		return zero, nil, err
	}
	return typed, scope, nil
}

// Execute runs a compiled plan against a scope, level by level, and returns
// the root target's value. Each level is a join barrier: level i+1 starts
// only after every invocation in level i has produced a value or failed.
func (e *Engine) Execute(ctx context.Context, plan *ResolutionPlan, scope *Scope) (any, error) {
	levels := plan.levels
	for i := 0; i < len(levels)-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.runLevel(ctx, plan, scope, levels[i]); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.resolveProvider(ctx, plan, scope, plan.descriptors[plan.root])
}

// runLevel evaluates one level. Providers already cached (or preset) are
// skipped; Transient providers are not evaluated at their own level but per
// occurrence when a dependent gathers arguments. A level with no Async
// member runs inline on the calling goroutine; otherwise the pending
// providers fan out on an errgroup and the first failure cancels the
// remaining in-flight siblings.
func (e *Engine) runLevel(ctx context.Context, plan *ResolutionPlan, scope *Scope, level []Identity) error {
	pending := make([]*ProviderDescriptor, 0, len(level))
	hasAsync := false
	for _, id := range level {
		desc := plan.descriptors[id]
		if desc.CacheScope == Transient {
			continue
		}
		if scope.IsCached(id) {
			continue
		}
		pending = append(pending, desc)
		if desc.Mode == ModeAsync {
			hasAsync = true
		}
	}

	if len(pending) == 0 {
		return nil
	}

	if !hasAsync {
		for _, desc := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := e.resolveProvider(ctx, plan, scope, desc); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, desc := range pending {
		desc := desc
		g.Go(func() error {
			_, err := e.resolveProvider(gctx, plan, scope, desc)
			return err
		})
	}
	return g.Wait()
}

// resolveProvider produces a value for one descriptor within a scope.
// PerResolution providers go through the scope's collapsing cache; Transient
// providers are invoked unconditionally, registering any cleanup but caching
// nothing.
func (e *Engine) resolveProvider(ctx context.Context, plan *ResolutionPlan, scope *Scope, desc *ProviderDescriptor) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if desc.CacheScope == Transient {
		if v, ok := scope.Peek(desc.Identity); ok {
			// Presets override even transient providers.
			return v, nil
		}
		value, cleanup, err := e.invoke(ctx, plan, scope, desc)
		if err != nil {
			return nil, wrapProviderErr(desc.Identity, err)
		}
		if cleanup != nil {
			if rerr := scope.registerCleanup(desc.Identity, cleanup); rerr != nil {
				_ = cleanup(context.WithoutCancel(ctx))
				return nil, rerr
			}
		}
		return value, nil
	}

	value, err := scope.GetOrCreate(ctx, desc.Identity, func(ctx context.Context) (any, Cleanup, error) {
		return e.invoke(ctx, plan, scope, desc)
	})
	if err != nil {
		return nil, wrapProviderErr(desc.Identity, err)
	}
	return value, nil
}

// wrapProviderErr turns an invocation failure into a ResolutionError naming
// the failing provider. Scope lifecycle and context errors propagate as-is.
func wrapProviderErr(id Identity, err error) error {
	if errors.Is(err, ErrScopeClosing) || errors.Is(err, ErrScopeClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return newResolutionError(id, err)
}

// invoke gathers the descriptor's resolved arguments and performs the call,
// threading it through the scope's extension chain. The returned cleanup has
// not yet been registered.
func (e *Engine) invoke(ctx context.Context, plan *ResolutionPlan, scope *Scope, desc *ProviderDescriptor) (any, Cleanup, error) {
	args, err := e.gatherArgs(ctx, plan, scope, desc)
	if err != nil {
		return nil, nil, err
	}

	exts := scope.snapshotExtensions()
	op := &Operation{
		Identity:   desc.Identity,
		Descriptor: desc,
		Plan:       plan,
		Scope:      scope,
	}

	var cleanup Cleanup
	next := func() (any, error) {
		v, c, err := e.invoker.Invoke(ctx, desc, args)
		if err != nil {
			return nil, err
		}
		cleanup = c
		return v, nil
	}

	// Last registered wraps first.
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}

	value, err := next()
	if err != nil {
		for _, ext := range exts {
			ext.OnError(err, op, scope)
		}
		return nil, nil, err
	}
	return value, cleanup, nil
}

// gatherArgs collects resolved values for the descriptor's dependencies.
// PerResolution dependencies live in strictly earlier levels and are read
// from the scope; Transient dependencies are invoked once per occurrence
// right here, which is what makes two dependents of the same transient
// identity receive distinct values.
func (e *Engine) gatherArgs(ctx context.Context, plan *ResolutionPlan, scope *Scope, desc *ProviderDescriptor) (Args, error) {
	if len(desc.Dependencies) == 0 {
		return nil, nil
	}

	args := make(Args, len(desc.Dependencies))
	for _, ref := range desc.Dependencies {
		if v, ok := scope.Peek(ref.Identity); ok {
			args[ref.Param] = v
			continue
		}

		depDesc, ok := plan.descriptors[ref.Identity]
		if !ok {
			return nil, &UnknownDependencyError{Identity: ref.Identity, RequiredBy: desc.Identity}
		}

		v, err := e.resolveProvider(ctx, plan, scope, depDesc)
		if err != nil {
			return nil, err
		}
		args[ref.Param] = v
	}
	return args, nil
}
