package access

import (
	"context"
)

// strategy is one entry of an ordered fallback list: a named, pure access
// path that either yields a transport-level result or reports that the path
// itself is unavailable.
type strategy[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// runStrategies evaluates strategies in order until one yields a
// transport-level result. A strategy counts as unavailable, handing control
// to the next one, only when its error is policy-denied or transient; both a
// success and a business outcome (not-found, conflict) stop the chain and are
// returned along with the winning strategy's name. When every strategy is
// unavailable the last transport error is returned.
func runStrategies[T any](ctx context.Context, log Logger, strategies []strategy[T]) (T, string, error) {
	var zero T
	var lastErr error

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, s.name, NewStoreError(StoreTransient, s.name, err)
		}

		result, err := s.run(ctx)
		if err == nil {
			return result, s.name, nil
		}

		if !isStoreUnavailable(err) {
			return zero, s.name, err
		}

		log.Warn("access path %q unavailable, trying next: %v", s.name, err)
		lastErr = err
	}

	return zero, "", lastErr
}
