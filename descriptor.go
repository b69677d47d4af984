package depwell

import "context"

// Identity is the stable key of one logical provider. Two descriptors with
// equal identity must be semantically interchangeable: same dependencies,
// same kind, same mode.
type Identity string

// DependencyRef names one dependency of a provider and the parameter it
// binds to when the provider is invoked.
type DependencyRef struct {
	Param    string
	Identity Identity
}

// Depends builds a DependencyRef binding the provider named by id to the
// given parameter name.
func Depends(param string, id Identity) DependencyRef {
	return DependencyRef{Param: param, Identity: id}
}

// Kind distinguishes plain value providers from resource providers whose
// result carries a cleanup action.
type Kind int

const (
	// KindValue providers return a result directly.
	KindValue Kind = iota

	// KindResource providers yield a result plus a cleanup action that the
	// owning scope runs on close.
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Mode is a scheduling hint: Async providers are fanned out on their own
// goroutine within a plan level, Sync providers run inline on the resolver
// goroutine and never suspend.
type Mode int

const (
	ModeSync Mode = iota
	ModeAsync
)

func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	default:
		return "unknown"
	}
}

// CacheScope controls how often a provider is invoked within one resolution.
type CacheScope int

const (
	// PerResolution is the default. The provider is invoked at most once per
	// scope and the value is shared by every dependent.
	PerResolution CacheScope = iota

	// Transient providers bypass the scope cache and are invoked once per
	// occurrence, even when two dependents reference the same identity.
	Transient
)

func (c CacheScope) String() string {
	switch c {
	case PerResolution:
		return "per-resolution"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// ProviderDescriptor is the immutable description of one dependency source.
// The engine never inspects how a descriptor was declared; it only consumes
// the normalized form.
type ProviderDescriptor struct {
	Identity     Identity
	Dependencies []DependencyRef
	Kind         Kind
	Mode         Mode
	CacheScope   CacheScope
}

// Args carries resolved dependency values into a provider invocation, keyed
// by the parameter names declared in the descriptor's DependencyRefs.
type Args map[string]any

// Cleanup releases a resource acquired by a KindResource provider. The scope
// runs cleanups in reverse acquisition order; the context passed in is never
// cancelled mid-teardown.
type Cleanup func(ctx context.Context) error

// DescriptorSource supplies normalized descriptors to the planner. It is the
// boundary to the declaration layer; lookups for unknown identities must
// fail with an UnknownDependencyError.
type DescriptorSource interface {
	Lookup(id Identity) (*ProviderDescriptor, error)
}

// Invoker performs the actual provider call. For KindValue descriptors the
// returned Cleanup is nil; for KindResource it must be non-nil on success.
type Invoker interface {
	Invoke(ctx context.Context, desc *ProviderDescriptor, args Args) (any, Cleanup, error)
}
