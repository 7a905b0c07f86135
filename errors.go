package exprtk

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineShutdown is returned when a job is submitted to an [Engine]
	// after [Engine.Shutdown] has begun. Jobs already queued at that point
	// still run to completion; later submissions are rejected with this
	// diagnostic rather than silently dropped.
	ErrEngineShutdown = errors.New(`exprtk: engine is shut down`)

	// ErrPending is returned by [Deferred.Result] while the deferred has not
	// yet settled.
	ErrPending = errors.New(`exprtk: deferred has not settled`)
)

// CompileError indicates malformed expression text, or a free variable that
// was referenced but not declared. It is fatal to [Expression] construction
// and never retried.
type CompileError struct {
	// Text is the offending expression source.
	Text string
	// Message describes the failure; for syntax errors it includes the
	// parser's own position information.
	Message string
	// Position is the 1-based offset of the offending token within Text,
	// when known, and 0 otherwise.
	Position int
}

func (e *CompileError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("exprtk: failed compiling expression %q at %d: %s", e.Text, e.Position, e.Message)
	}
	return fmt.Sprintf("exprtk: failed compiling expression %q: %s", e.Text, e.Message)
}

// BindingError indicates a bad argument set: wrong argument count, an
// undeclared or mistyped variable, or a buffer size mismatch. The expression
// remains fully usable.
type BindingError struct {
	// Name is the offending variable name, when the error concerns one.
	Name    string
	Message string
}

func (e *BindingError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("exprtk: %s %s", e.Name, e.Message)
	}
	return "exprtk: " + e.Message
}

// CapacityError indicates a parallelism bound violation: a maxParallel value
// outside (0, ceiling], or a cwise split requesting more instances than the
// engine permits.
type CapacityError struct {
	Message string
}

func (e *CapacityError) Error() string { return "exprtk: " + e.Message }

// RuntimeError wraps a failure raised by the expression core during
// evaluation, including panics recovered at the worker-loop boundary. The
// evaluator instance involved is returned to its pool in a well-defined
// idle state.
type RuntimeError struct {
	Cause   error
	Message string
}

func (e *RuntimeError) Error() string {
	if e.Message == "" {
		if e.Cause != nil {
			return "exprtk: evaluation failed: " + e.Cause.Error()
		}
		return "exprtk: evaluation failed"
	}
	return "exprtk: " + e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and
// [errors.As].
func (e *RuntimeError) Unwrap() error { return e.Cause }

func newBindingError(name, message string) *BindingError {
	return &BindingError{Name: name, Message: message}
}
