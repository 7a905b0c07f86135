package exprtk

import (
	"context"
	"fmt"
	"sync"
)

// PanicError wraps a panic value recovered at the worker-loop boundary. The
// worker goroutine survives; the panic is delivered as the job's error.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("exprtk: job panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type,
// enabling [errors.Is] and [errors.As] matching through the cause chain.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Deferred is the completion bridge for one asynchronous job: a single-shot
// channel settled exactly once with either a value or an error.
//
// Results may be consumed promise-style, via [Deferred.Wait] or
// [Deferred.Done] plus [Deferred.Result], or callback-style via
// [Deferred.OnComplete]. Both adapters share the one underlying settlement;
// there is no separate scheduling path per adapter.
type Deferred[R any] struct {
	eng *Engine

	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     R
	err       error
	callbacks []func(R, error)

	// buffers that must stay alive until completion
	pins []any
}

func newDeferred[R any](eng *Engine) *Deferred[R] {
	return &Deferred[R]{eng: eng, done: make(chan struct{})}
}

// pin retains a reference to an externally-owned buffer for the lifetime of
// the job, so it cannot be reclaimed mid-flight.
func (x *Deferred[R]) pin(buf any) {
	x.mu.Lock()
	x.pins = append(x.pins, buf)
	x.mu.Unlock()
}

// settle resolves the deferred. Only the first call has any effect.
// Registered callbacks are handed to the engine's callback goroutine.
func (x *Deferred[R]) settle(value R, err error) {
	x.mu.Lock()
	if x.settled {
		x.mu.Unlock()
		return
	}
	x.settled = true
	x.value = value
	x.err = err
	callbacks := x.callbacks
	x.callbacks = nil
	x.pins = nil
	close(x.done)
	x.mu.Unlock()

	for _, fn := range callbacks {
		x.dispatch(fn, value, err)
	}
}

func (x *Deferred[R]) dispatch(fn func(R, error), value R, err error) {
	x.eng.deliver(func() { fn(value, err) })
}

// Done returns a channel closed when the deferred settles.
func (x *Deferred[R]) Done() <-chan struct{} { return x.done }

// Settled reports whether the deferred has settled.
func (x *Deferred[R]) Settled() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.settled
}

// Result returns the settled value or error. While pending it returns the
// zero value and [ErrPending].
func (x *Deferred[R]) Result() (R, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.settled {
		var zero R
		return zero, ErrPending
	}
	return x.value, x.err
}

// Wait blocks until the deferred settles or ctx is canceled.
func (x *Deferred[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	case <-x.done:
		return x.Result()
	}
}

// OnComplete registers a completion callback, delivered on the engine's
// single callback goroutine (already-settled deferreds deliver immediately
// through the same goroutine). Callbacks for distinct jobs may run in any
// order, but each is an independent, atomically-delivered event.
//
// A panic escaping fn is treated as unrecoverable and aborts the process;
// swallowing it would leave the exactly-once delivery contract violated.
func (x *Deferred[R]) OnComplete(fn func(R, error)) {
	x.mu.Lock()
	if !x.settled {
		x.callbacks = append(x.callbacks, fn)
		x.mu.Unlock()
		return
	}
	value, err := x.value, x.err
	x.mu.Unlock()
	x.dispatch(fn, value, err)
}
