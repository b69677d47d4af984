package depwell

import (
	"context"

	"go.uber.org/multierr"
)

// Close tears the scope down: every registered cleanup runs in strict
// reverse order of acquisition, regardless of whether the resolution
// succeeded, failed, or was cancelled. A cleanup failure never stops the
// remaining cleanups; failures are aggregated into a TeardownError.
// Cancellation of ctx does not abandon remaining cleanups either; they run
// against an uncancellable context derived from ctx.
//
// A scope may be closed at most once. A second Close fails with
// ErrScopeClosed.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state != scopeOpen {
		s.mu.Unlock()
		return ErrScopeClosed
	}
	s.state = scopeClosing
	entries := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	exts := s.snapshotExtensions()

	// Teardown must run to completion even if the caller was cancelled.
	cleanupCtx := context.WithoutCancel(ctx)

	var agg error
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if err := entry.fn(cleanupCtx); err != nil {
			failure := &TeardownFailure{Identity: entry.identity, Err: err}
			handled := false
			for _, ext := range exts {
				if ext.OnTeardownError(failure) {
					handled = true
					break
				}
			}
			if !handled {
				agg = multierr.Append(agg, failure)
			}
		}
	}

	s.mu.Lock()
	s.state = scopeClosed
	s.cache = nil
	s.presets = nil
	s.mu.Unlock()

	for _, ext := range exts {
		if err := ext.Dispose(s); err != nil {
			agg = multierr.Append(agg, err)
		}
	}

	if agg != nil {
		return &TeardownError{Err: agg}
	}
	return nil
}
