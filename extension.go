package depwell

import "context"

// Extension provides hooks into the resolution lifecycle. Extensions are
// registered per scope and run in ascending Order.
type Extension interface {
	// Name returns the extension's name.
	Name() string

	// Order determines extension execution order (lower = earlier).
	Order() int

	// Init is called when the extension is registered to a scope.
	Init(scope *Scope) error

	// Wrap intercepts a provider invocation.
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnError is called after a provider invocation fails.
	OnError(err error, op *Operation, scope *Scope)

	// OnTeardownError handles a cleanup failure during Close. Returning true
	// marks the failure handled; it is then left out of the TeardownError.
	OnTeardownError(failure *TeardownFailure) bool

	// Dispose is called after the scope has finished closing.
	Dispose(scope *Scope) error
}

// Operation describes one provider invocation as seen by extensions.
type Operation struct {
	Identity   Identity
	Descriptor *ProviderDescriptor
	Plan       *ResolutionPlan
	Scope      *Scope
}

// BaseExtension provides default implementations for Extension methods.
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a base extension with the given name.
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(scope *Scope) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, scope *Scope) {
}

func (e *BaseExtension) OnTeardownError(failure *TeardownFailure) bool {
	return false
}

func (e *BaseExtension) Dispose(scope *Scope) error {
	return nil
}
