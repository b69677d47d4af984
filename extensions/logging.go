// Package extensions provides ready-made scope extensions for depwell:
// structured operation logging and plan debugging.
package extensions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/depwell/depwell"
)

// LoggingExtension logs provider invocations and teardown failures through a
// zap logger.
type LoggingExtension struct {
	depwell.BaseExtension
	logger *zap.Logger
}

// NewLoggingExtension creates a logging extension. Pass zap.NewNop() to
// silence it in tests.
func NewLoggingExtension(logger *zap.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: depwell.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *depwell.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Error("provider failed",
			zap.String("identity", string(op.Identity)),
			zap.Stringer("kind", op.Descriptor.Kind),
			zap.Stringer("mode", op.Descriptor.Mode),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return result, err
	}

	e.logger.Debug("provider resolved",
		zap.String("identity", string(op.Identity)),
		zap.Stringer("kind", op.Descriptor.Kind),
		zap.Stringer("mode", op.Descriptor.Mode),
		zap.Stringer("cache", op.Descriptor.CacheScope),
		zap.Duration("elapsed", elapsed),
	)
	return result, err
}

func (e *LoggingExtension) OnTeardownError(failure *depwell.TeardownFailure) bool {
	e.logger.Error("cleanup failed",
		zap.String("identity", string(failure.Identity)),
		zap.Error(failure.Err),
	)
	// Log only; the failure still lands in the TeardownError.
	return false
}
