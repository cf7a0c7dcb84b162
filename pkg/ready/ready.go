// Package ready provides a one-shot, broadcast readiness signal for
// resources loaded once per session, such as the dataset and the world
// geometry.
//
// A [Future] settles exactly once. Any number of goroutines may wait on it
// before or after it settles; all of them observe the same value or error.
package ready

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is returned when a settled Future is resolved again.
var ErrAlreadySettled = errors.New("future already settled")

// Future is a value that becomes available later.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New returns an unsettled Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go starts fn in a goroutine and settles the returned Future with its
// result. ctx is handed to fn; cancelling it is fn's concern.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			_ = f.Reject(err)
			return
		}
		_ = f.Resolve(v)
	}()
	return f
}

// Resolved returns a Future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	_ = f.Resolve(v)
	return f
}

// Resolve settles the Future with v.
func (f *Future[T]) Resolve(v T) error {
	return f.settle(v, nil)
}

// Reject settles the Future with err.
func (f *Future[T]) Reject(err error) error {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) error {
	settled := false
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
		settled = true
	})
	if !settled {
		return ErrAlreadySettled
	}
	return nil
}

// Done is closed once the Future settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Settled reports whether the Future has settled without blocking.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future settles or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled value; ok is false while still pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	if !f.Settled() {
		return v, nil, false
	}
	return f.value, f.err, true
}
