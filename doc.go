// Package exprtk evaluates precompiled numeric expressions on background
// goroutines, synchronously or asynchronously, without ever allowing two
// goroutines to touch the same evaluator's state concurrently.
//
// # Architecture
//
// An [Expression] is a compiled program plus a pool of evaluator clones.
// The underlying evaluation primitive (a [github.com/dop251/goja] runtime)
// is fundamentally single-threaded: one clone supports exactly one
// evaluation at a time. Parallelism comes from cloning, not locking - each
// Expression lazily grows a pool of up to [Expression.MaxParallel]
// independent clones, and the scheduler hands every job exclusive use of
// exactly one clone for the job's duration.
//
// Jobs run on a process-wide [Engine]: a fixed set of worker goroutines
// draining one shared FIFO queue across all expressions. When a worker
// finishes a job and the expression has locally-pending jobs, the same
// worker immediately runs the next pending job against the clone that just
// freed, without a round trip through the shared queue.
//
// # Synchronous and asynchronous forms
//
// Every operation has both forms. Synchronous calls block the caller until
// a clone is available, then run on the caller's goroutine. Asynchronous
// calls return a [Deferred], settled exactly once; results may be consumed
// promise-style ([Deferred.Wait], [Deferred.Done]) or callback-style
// ([Deferred.OnComplete], delivered on the engine's single callback
// goroutine, preserving a single-threaded host contract).
//
// # Operations
//
//	expr, _ := exprtk.New[float64]("(a + b) / 2")
//	v, _ := expr.Eval(exprtk.Args{"a": 5, "b": 10}) // 7.5
//
// [Expression.Map] evaluates once per element of an input slice,
// [Expression.Reduce] folds a slice through an accumulator variable, and
// [Expression.Cwise] traverses any number of numeric buffers of possibly
// different element types element-wise, coercing on the fly and optionally
// splitting the work across several clones ([WithParallel]).
//
// # Numeric types
//
// Expressions come in eight flavors, one per element type: int8, uint8,
// int16, uint16, int32, uint32, float32 and float64. The type parameter of
// [New] selects the flavor; [Expression.Cwise] additionally accepts input
// and output buffers of any of the eight types, converted per element
// through a fixed coercion table.
//
// # Error types
//
//   - [CompileError]: malformed expression text, fatal to construction
//   - [BindingError]: wrong argument count, name, type or size
//   - [CapacityError]: parallelism limits exceeded
//   - [RuntimeError]: evaluation failure, including recovered panics
//
// All four are recoverable at the call boundary; a failing job never
// corrupts the clone pool's bookkeeping.
package exprtk
