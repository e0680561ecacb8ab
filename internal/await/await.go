// Package await bounds calls into collaborators that may never return.
package await

import "context"

// Do runs fn in its own goroutine and returns either its result or ctx.Err(),
// whichever comes first. fn keeps running after a timeout; its late result
// is discarded.
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
