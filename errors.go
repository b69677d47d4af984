package depwell

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	// ErrScopeClosing is returned when a value is requested from a scope
	// whose teardown has already begun.
	ErrScopeClosing = errors.New("scope is closing")

	// ErrScopeClosed is returned when a closed scope is used, including a
	// second call to Close.
	ErrScopeClosed = errors.New("scope already closed")

	// ErrDuplicateProvider is returned when a provider for an identity is
	// registered more than once.
	ErrDuplicateProvider = errors.New("duplicate provider")
)

// CycleError reports a circular dependency chain found while building a
// resolution plan. Path holds the offending identities in visit order; the
// first and last entries are the same identity.
type CycleError struct {
	Path []Identity
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	parts := make([]string, len(e.Path))
	for i := range e.Path {
		parts[i] = string(e.Path[i])
	}
	return "dependency cycle detected: " + strings.Join(parts, " -> ")
}

// UnknownDependencyError reports a declared dependency with no resolvable
// descriptor. RequiredBy is empty when the root itself is unknown.
type UnknownDependencyError struct {
	Identity   Identity
	RequiredBy Identity
}

func (e *UnknownDependencyError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("unknown provider: %s", e.Identity)
	}
	return fmt.Sprintf("unknown provider: %s (required by %s)", e.Identity, e.RequiredBy)
}

// ResolutionError wraps a provider invocation failure with the identity of
// the failing provider and the stack at the point of failure.
type ResolutionError struct {
	Identity   Identity
	Cause      error
	StackTrace []byte
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving provider %s: %v", e.Identity, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

func newResolutionError(id Identity, cause error) error {
	// Keep the innermost failing identity; a dependency failure already
	// carries its own ResolutionError.
	var re *ResolutionError
	if errors.As(cause, &re) {
		return cause
	}
	return &ResolutionError{
		Identity:   id,
		Cause:      cause,
		StackTrace: debug.Stack(),
	}
}

// TeardownError aggregates one or more cleanup failures collected while
// closing a scope. Err is the multierr-combined set of failures.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("scope teardown: %v", e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}

// TeardownFailure describes a single cleanup failure, handed to extensions
// before it is aggregated into a TeardownError.
type TeardownFailure struct {
	Identity Identity
	Err      error
}

func (e *TeardownFailure) Error() string {
	return fmt.Sprintf("cleanup for %s: %v", e.Identity, e.Err)
}

func (e *TeardownFailure) Unwrap() error {
	return e.Err
}
