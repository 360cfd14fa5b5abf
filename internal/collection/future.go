package collection

import "context"

// Callback receives the outcome of an asynchronous operation.
type Callback[T any] func(T, error)

// Future is the result of an operation started with Async.
//
// The outcome is delivered once: every callback passed to Async runs with it
// before Done is closed, so a caller awaiting the future observes callback
// side effects.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Async runs fn in a new goroutine and returns its future.
func Async[T any](ctx context.Context, fn func(context.Context) (T, error), callbacks ...Callback[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
		for _, cb := range callbacks {
			if cb != nil {
				cb(f.value, f.err)
			}
		}
	}()
	return f
}

// Done is closed once the outcome and all callbacks are complete.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the operation completes or ctx is done. Abandoning a
// wait does not cancel the operation itself.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
