// Package future provides single-assignment asynchronous results.
//
// A Future is completed exactly once, with either a value or an error.
// Callbacks registered with WhenComplete run after settlement, in
// registration order, each on its own goroutine; registering after
// settlement runs the callback immediately. This is the result type
// every remote control operation returns: the caller can block on it
// with Get, select on Done, or attach observers.
package future

import (
	"context"
	"sync"
)

// Future is a single-assignment asynchronous result of type T.
// The zero value is not usable; create one with New, Completed or Failed.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	callbacks []func(T, error)
}

// New returns a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future already settled with value.
func Completed[T any](value T) *Future[T] {
	f := New[T]()
	f.Complete(value)
	return f
}

// Failed returns a future already settled with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Complete settles the future with a value. Returns false if the
// future was already settled, in which case the value is discarded.
func (f *Future[T]) Complete(value T) bool {
	return f.settle(value, nil)
}

// Fail settles the future with an error. Returns false if the future
// was already settled, in which case the error is discarded.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(value T, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		go cb(value, err)
	}
	return true
}

// Done returns a channel closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future settles or ctx is cancelled.
// A cancelled context returns ctx.Err(); the future itself stays
// pending and can still be waited on again.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// WhenComplete registers fn to run once the future settles, whether
// with a value or an error. fn runs on its own goroutine; a future
// that is already settled runs fn immediately.
func (f *Future[T]) WhenComplete(fn func(T, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		value, err := f.value, f.err
		f.mu.Unlock()
		go fn(value, err)
		return
	default:
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Then returns a future settled by applying fn to f's value once f
// completes. If f fails, the error passes through untransformed; if
// fn returns an error, the returned future fails with it.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.WhenComplete(func(value T, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		mapped, err := fn(value)
		if err != nil {
			out.Fail(err)
			return
		}
		out.Complete(mapped)
	})
	return out
}
