package future

import (
	"context"
	"sync"
)

// Future is a one-shot container for the result of an asynchronous
// operation. It resolves exactly once, either with a value or with an
// error, and stays immutable afterwards.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New creates an unresolved future.
func New[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

// Complete resolves the future with a value. It returns false if the
// future was already resolved.
func (f *Future[T]) Complete(value T) bool {
	resolved := false

	f.once.Do(func() {
		f.value = value
		close(f.done)
		resolved = true
	})

	return resolved
}

// Fail resolves the future with an error. It returns false if the future
// was already resolved.
func (f *Future[T]) Fail(err error) bool {
	resolved := false

	f.once.Do(func() {
		f.err = err
		close(f.done)
		resolved = true
	})

	return resolved
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome of a resolved future. The returned values are
// only meaningful after the Done channel is closed.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero T
		return zero, ErrNotResolved
	}
}

// Wait blocks until the future resolves or the context is cancelled.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
