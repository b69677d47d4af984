// Package depwell is a scoped dependency-resolution engine for Go.
//
// # Overview
//
// Depwell organizes resolution around four core concepts:
//
//  1. Providers: units of computation described by immutable descriptors
//     (identity, dependencies, value vs. resource, sync vs. async)
//  2. Plans: acyclic level partitions compiled once per root target
//  3. Scopes: lifetime containers that cache resolved values and own the
//     cleanup actions of acquired resources
//  4. Engine: executes a plan against a scope, evaluating each level's
//     providers concurrently and invoking the root target with its
//     resolved arguments
//
// # Basic Usage
//
// Register providers in a registry, then resolve through an engine:
//
//	reg := depwell.NewRegistry()
//
//	depwell.MustProvide(reg, "config", nil,
//	    func(ctx context.Context, args depwell.Args) (*Config, error) {
//	        return LoadConfig()
//	    })
//
//	depwell.MustProvideResource(reg, "db",
//	    []depwell.DependencyRef{depwell.Depends("cfg", "config")},
//	    func(ctx context.Context, args depwell.Args) (*DB, depwell.Cleanup, error) {
//	        cfg, err := depwell.Arg[*Config](args, "cfg")
//	        if err != nil {
//	            return nil, nil, err
//	        }
//	        db, err := OpenDB(ctx, cfg.DSN)
//	        if err != nil {
//	            return nil, nil, err
//	        }
//	        return db, func(ctx context.Context) error { return db.Close() }, nil
//	    },
//	    depwell.AsAsync())
//
//	engine := depwell.New(reg, reg)
//
//	value, scope, err := engine.Resolve(ctx, "db")
//	if err != nil {
//	    return err
//	}
//	defer scope.Close(ctx)
//
// Or use the scoped-call form, which closes the scope on every exit path:
//
//	err := engine.WithResolution(ctx, "db", func(ctx context.Context, v any) error {
//	    db := v.(*DB)
//	    return db.Ping(ctx)
//	})
//
// # Plans and Concurrency
//
// Plan(root) walks descriptors depth-first, rejects cycles with a CycleError
// and missing descriptors with an UnknownDependencyError, and assigns every
// provider to the earliest level after all of its dependencies. Providers in
// one level are independent by construction: levels containing Async
// providers fan out concurrently, the level boundary is a join barrier, and
// the first failure in a level cancels its in-flight siblings. Plans are
// cached per root identity and reused across resolutions.
//
// # Scopes and Resources
//
// A scope caches each PerResolution provider's value so a diamond-shaped
// graph invokes the shared dependency once; concurrent requests for the same
// identity collapse to a single invocation. Transient providers bypass the
// cache and are re-invoked per occurrence.
//
// Resource providers return a value and a cleanup. Cleanups are registered
// in acquisition order the moment the value is produced, and Close runs them
// in reverse, whether the resolution succeeded, failed, or was cancelled.
// Cleanup failures are aggregated into a TeardownError that is attached to,
// never replaces, the primary error. A scope closes at most once.
//
// # Overrides
//
// Presets replace a provider's value in one scope without invoking it:
//
//	_, scope, err := engine.Resolve(ctx, "service",
//	    depwell.WithPreset("db", mockDB))
//
// # Extensions
//
// Extensions hook invocation and teardown for cross-cutting concerns:
//
//	scope-level middleware wraps every provider call, observes errors, and
//	may claim cleanup failures before they are aggregated. See the
//	extensions subpackage for structured logging (zap) and plan rendering.
//
// # Thread Safety
//
// Engines, planners, and registries are safe for concurrent use. A scope's
// cache and cleanup stack are synchronized; the engine never invokes the
// same identity's factory concurrently with itself within one scope.
package depwell
