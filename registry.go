package depwell

import (
	"context"
	"fmt"
	"sync"
)

// FactoryFunc is the raw calling convention behind a registered provider:
// it receives the resolved arguments and returns a value plus an optional
// cleanup.
type FactoryFunc func(ctx context.Context, args Args) (any, Cleanup, error)

// Registry is an in-memory provider registry. It implements both sides of
// the engine's consumed boundary: DescriptorSource for planning and Invoker
// for execution. There is deliberately no process-wide default registry;
// callers construct one and hand it to New.
type Registry struct {
	mu        sync.RWMutex
	descs     map[Identity]*ProviderDescriptor
	factories map[Identity]FactoryFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descs:     make(map[Identity]*ProviderDescriptor),
		factories: make(map[Identity]FactoryFunc),
	}
}

// Lookup implements DescriptorSource.
func (r *Registry) Lookup(id Identity) (*ProviderDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descs[id]
	if !ok {
		return nil, &UnknownDependencyError{Identity: id}
	}
	return desc, nil
}

// Invoke implements Invoker.
func (r *Registry) Invoke(ctx context.Context, desc *ProviderDescriptor, args Args) (any, Cleanup, error) {
	r.mu.RLock()
	fn, ok := r.factories[desc.Identity]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, &UnknownDependencyError{Identity: desc.Identity}
	}
	return fn(ctx, args)
}

// Identities returns every registered identity.
func (r *Registry) Identities() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, 0, len(r.descs))
	for id := range r.descs {
		out = append(out, id)
	}
	return out
}

// RegisterFactory registers a provider from its normalized descriptor and
// raw factory. Registering the same identity twice fails with
// ErrDuplicateProvider; descriptors are immutable once registered.
func (r *Registry) RegisterFactory(desc ProviderDescriptor, fn FactoryFunc) error {
	if desc.Identity == "" {
		return fmt.Errorf("register provider: empty identity")
	}
	if fn == nil {
		return fmt.Errorf("register provider %s: nil factory", desc.Identity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descs[desc.Identity]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, desc.Identity)
	}

	stored := desc
	stored.Dependencies = make([]DependencyRef, len(desc.Dependencies))
	copy(stored.Dependencies, desc.Dependencies)

	r.descs[desc.Identity] = &stored
	r.factories[desc.Identity] = fn
	return nil
}

// ProviderOption adjusts a descriptor at registration time.
type ProviderOption func(*ProviderDescriptor)

// AsTransient marks the provider Transient: re-invoked on every occurrence,
// never cached.
func AsTransient() ProviderOption {
	return func(d *ProviderDescriptor) {
		d.CacheScope = Transient
	}
}

// AsAsync marks the provider Async: it may block on I/O and is fanned out on
// its own goroutine within its plan level.
func AsAsync() ProviderOption {
	return func(d *ProviderDescriptor) {
		d.Mode = ModeAsync
	}
}

// Provide registers a value provider.
func Provide[T any](r *Registry, id Identity, deps []DependencyRef, factory func(ctx context.Context, args Args) (T, error), opts ...ProviderOption) error {
	desc := ProviderDescriptor{
		Identity:     id,
		Dependencies: deps,
		Kind:         KindValue,
		Mode:         ModeSync,
		CacheScope:   PerResolution,
	}
	for _, opt := range opts {
		opt(&desc)
	}
	desc.Kind = KindValue

	return r.RegisterFactory(desc, func(ctx context.Context, args Args) (any, Cleanup, error) {
		v, err := factory(ctx, args)
		if err != nil {
			return nil, nil, err
		}
		return v, nil, nil
	})
}

// ProvideResource registers a resource provider. The factory returns a value
// and the cleanup that releases it; the cleanup is registered on the scope
// the moment the value is produced.
func ProvideResource[T any](r *Registry, id Identity, deps []DependencyRef, factory func(ctx context.Context, args Args) (T, Cleanup, error), opts ...ProviderOption) error {
	desc := ProviderDescriptor{
		Identity:     id,
		Dependencies: deps,
		Kind:         KindResource,
		Mode:         ModeSync,
		CacheScope:   PerResolution,
	}
	for _, opt := range opts {
		opt(&desc)
	}
	desc.Kind = KindResource

	return r.RegisterFactory(desc, func(ctx context.Context, args Args) (any, Cleanup, error) {
		v, cleanup, err := factory(ctx, args)
		if err != nil {
			return nil, nil, err
		}
		if cleanup == nil {
			return nil, nil, fmt.Errorf("resource provider %s returned nil cleanup", id)
		}
		return v, cleanup, nil
	})
}

// MustProvide is Provide that panics on registration error, for wiring done
// at startup.
func MustProvide[T any](r *Registry, id Identity, deps []DependencyRef, factory func(ctx context.Context, args Args) (T, error), opts ...ProviderOption) {
	if err := Provide(r, id, deps, factory, opts...); err != nil {
		panic(err)
	}
}

// MustProvideResource is ProvideResource that panics on registration error.
func MustProvideResource[T any](r *Registry, id Identity, deps []DependencyRef, factory func(ctx context.Context, args Args) (T, Cleanup, error), opts ...ProviderOption) {
	if err := ProvideResource(r, id, deps, factory, opts...); err != nil {
		panic(err)
	}
}

// As performs a safe type assertion with a descriptive error.
func As[T any](value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("type assertion error: expected %T, got %T (value: %v)", zero, value, value)
	}
	return typed, nil
}

// Arg extracts a typed argument by parameter name.
func Arg[T any](args Args, param string) (T, error) {
	v, ok := args[param]
	if !ok {
		var zero T
		return zero, fmt.Errorf("missing argument %q", param)
	}
	return As[T](v)
}
