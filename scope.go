package depwell

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

type scopeState int32

const (
	scopeOpen scopeState = iota
	scopeClosing
	scopeClosed
)

type cleanupEntry struct {
	identity Identity
	fn       Cleanup
}

// Scope owns the values and cleanup actions of one resolution. Values are
// cached per identity for PerResolution providers; cleanup actions are
// appended strictly in acquisition order and run in reverse on Close. A
// scope is unusable after Close.
type Scope struct {
	mu         sync.RWMutex
	state      scopeState
	cache      map[Identity]any
	cleanups   []cleanupEntry
	presets    map[Identity]any
	extensions []Extension

	flight singleflight.Group
}

// ScopeOption is a modifier for scopes.
type ScopeOption func(*Scope)

// WithPreset seeds the scope with a pre-resolved value for an identity. The
// provider behind that identity is never invoked in this scope; dependents
// receive the preset instead. This is the argument-override and test-double
// mechanism.
func WithPreset(id Identity, value any) ScopeOption {
	return func(s *Scope) {
		s.presets[id] = value
	}
}

// WithExtension registers an extension on the scope.
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// NewScope creates an open scope.
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		cache:   make(map[Identity]any),
		presets: make(map[Identity]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UseExtension registers an extension and calls its Init hook. Extensions
// run in ascending Order.
func (s *Scope) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()

	return ext.Init(s)
}

func (s *Scope) snapshotExtensions() []Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.extensions) == 0 {
		return nil
	}
	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	return exts
}

// Peek returns the cached value for id without invoking anything.
func (s *Scope) Peek(id Identity) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.presets[id]; ok {
		return v, true
	}
	v, ok := s.cache[id]
	return v, ok
}

// IsCached reports whether id has a value in this scope.
func (s *Scope) IsCached(id Identity) bool {
	_, ok := s.Peek(id)
	return ok
}

func (s *Scope) checkUsable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case scopeClosing:
		return ErrScopeClosing
	case scopeClosed:
		return ErrScopeClosed
	default:
		return nil
	}
}

// GetOrCreate returns the cached value for id, or runs factory and caches
// its result. Concurrent callers for the same identity collapse to a single
// underlying invocation: the first caller's in-flight factory is awaited by
// the rest, so a PerResolution provider is invoked at most once per scope.
// A cleanup returned by the factory is registered before the value is
// published.
func (s *Scope) GetOrCreate(ctx context.Context, id Identity, factory func(ctx context.Context) (any, Cleanup, error)) (any, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}

	if v, ok := s.Peek(id); ok {
		return v, nil
	}

	v, err, _ := s.flight.Do(string(id), func() (any, error) {
		// A concurrent caller may have finished between the fast path and
		// entering the flight group.
		if v, ok := s.Peek(id); ok {
			return v, nil
		}

		value, cleanup, err := factory(ctx)
		if err != nil {
			return nil, err
		}

		if cleanup != nil {
			if err := s.registerCleanup(id, cleanup); err != nil {
				// The scope began closing mid-invocation; release the
				// orphaned resource immediately rather than leaking it.
				_ = cleanup(context.WithoutCancel(ctx))
				return nil, err
			}
		}

		s.mu.Lock()
		if s.state == scopeOpen {
			s.cache[id] = value
		}
		s.mu.Unlock()

		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// registerCleanup appends a pending cleanup in acquisition order. Fails once
// the scope has started closing.
func (s *Scope) registerCleanup(id Identity, fn Cleanup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case scopeClosing:
		return ErrScopeClosing
	case scopeClosed:
		return ErrScopeClosed
	}
	s.cleanups = append(s.cleanups, cleanupEntry{identity: id, fn: fn})
	return nil
}

// PendingCleanups returns the number of cleanup actions registered so far.
func (s *Scope) PendingCleanups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cleanups)
}

// Handle is a typed accessor for one identity's value within a scope.
type Handle[T any] struct {
	scope    *Scope
	identity Identity
}

// Accessor creates a typed handle over an identity in a scope.
func Accessor[T any](s *Scope, id Identity) *Handle[T] {
	return &Handle[T]{scope: s, identity: id}
}

// Peek returns the cached value without invoking anything.
func (h *Handle[T]) Peek() (T, bool) {
	v, ok := h.scope.Peek(h.identity)
	if !ok {
		var zero T
		return zero, false
	}
	typed, err := As[T](v)
	if err != nil {
		var zero T
		return zero, false
	}
	return typed, true
}

// Value returns the cached value, failing if it is absent or of the wrong
// type.
func (h *Handle[T]) Value() (T, error) {
	v, ok := h.scope.Peek(h.identity)
	if !ok {
		var zero T
		return zero, fmt.Errorf("no value cached for %s", h.identity)
	}
	return As[T](v)
}

// IsCached reports whether the identity has a value in the scope.
func (h *Handle[T]) IsCached() bool {
	return h.scope.IsCached(h.identity)
}
