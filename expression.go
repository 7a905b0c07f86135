package exprtk

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/joeycumines/logiface"
	"github.com/mmomtchev/exprtk.go/internal/exprcore"
)

type (
	// Expression is a compiled numeric expression of element type T. The
	// compiled program is immutable and shared; evaluation state lives in a
	// pool of cloned evaluator instances, so any number of goroutines may
	// call the operation methods concurrently, and the asynchronous forms
	// may overlap freely up to the expression's maxParallel.
	Expression[T Numeric] struct {
		core *exprcore.Expression
		eng  *Engine
		log  *logiface.Logger[logiface.Event]
		typ  Type
		pool *instancePool[T]

		scalarSet  map[string]struct{}
		vectorSize map[string]int

		descOnce descriptorOnce
	}

	// Args carries the variable bindings for one evaluation: scalar values
	// (any Go numeric type) and vector buffers (any supported slice type).
	// Every declared variable must be bound, except those an operation binds
	// internally (the iterator of [Expression.Map], for example).
	Args map[string]any

	// Vector describes a declared vector variable.
	Vector struct {
		Name string
		Size int
	}

	exprOptions struct {
		eng         *Engine
		scalars     []string
		scalarsSet  bool
		vectors     []exprcore.VectorDecl
		maxParallel int
	}

	// Option configures expression construction.
	Option interface {
		applyExpr(*exprOptions)
	}

	exprOptionImpl struct {
		applyExprFunc func(*exprOptions)
	}
)

func (x *exprOptionImpl) applyExpr(opts *exprOptions) { x.applyExprFunc(opts) }

// WithScalars declares the expression's scalar variables explicitly, in
// order. Without this option every free variable of the expression (in first
// reference order, excluding declared vectors) becomes a scalar. An empty
// call declares no scalars.
func WithScalars(names ...string) Option {
	if names == nil {
		names = []string{}
	}
	return &exprOptionImpl{func(opts *exprOptions) {
		opts.scalars = names
		opts.scalarsSet = true
	}}
}

// WithVector declares a vector variable with a fixed element count. Vectors
// appear in the declaration order of their options.
func WithVector(name string, size int) Option {
	return &exprOptionImpl{func(opts *exprOptions) {
		opts.vectors = append(opts.vectors, exprcore.VectorDecl{Name: name, Size: size})
	}}
}

// WithEngine binds the expression to an explicit [Engine] instead of the
// shared default.
func WithEngine(eng *Engine) Option {
	return &exprOptionImpl{func(opts *exprOptions) { opts.eng = eng }}
}

// WithMaxParallel sets the initial bound on concurrently evaluating
// instances of this expression. The default is the detected hardware
// parallelism, capped by the engine's ceiling.
func WithMaxParallel(n int) Option {
	return &exprOptionImpl{func(opts *exprOptions) { opts.maxParallel = n }}
}

// New compiles text into an [Expression] of element type T.
//
// Compilation failures (malformed text, a reference to an undeclared
// variable, a declaration shadowing a builtin) are reported as a
// [*CompileError] and are never retried; the returned expression, once
// built, cannot fail to evaluate for structural reasons.
func New[T Numeric](text string, opts ...Option) (*Expression[T], error) {
	cfg := exprOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyExpr(&cfg)
	}

	eng := cfg.eng
	if eng == nil {
		eng = DefaultEngine()
	}

	maxParallel := cfg.maxParallel
	if maxParallel == 0 {
		maxParallel = runtime.NumCPU()
		if maxParallel > eng.ceiling {
			maxParallel = eng.ceiling
		}
	} else if maxParallel < 0 || maxParallel > eng.ceiling {
		return nil, &CapacityError{Message: fmt.Sprintf(`maxParallel %d is outside (0, %d]`, maxParallel, eng.ceiling)}
	}

	var scalars []string
	if cfg.scalarsSet {
		scalars = cfg.scalars
	}

	core, err := exprcore.Compile(text, scalars, cfg.vectors)
	if err != nil {
		return nil, compileError(text, err)
	}

	x := &Expression[T]{
		core:       core,
		eng:        eng,
		log:        eng.log,
		typ:        typeOf[T](),
		scalarSet:  make(map[string]struct{}, len(core.Scalars())),
		vectorSize: make(map[string]int, len(core.Vectors())),
	}
	for _, name := range core.Scalars() {
		x.scalarSet[name] = struct{}{}
	}
	for _, v := range core.Vectors() {
		x.vectorSize[v.Name] = v.Size
	}
	x.pool = newInstancePool[T](eng, core, maxParallel)

	x.log.Debug().
		Str(`expression`, text).
		Str(`type`, x.typ.String()).
		Int(`maxParallel`, maxParallel).
		Log(`expression compiled`)

	return x, nil
}

func compileError(text string, err error) error {
	var undeclared *exprcore.UndeclaredError
	if errors.As(err, &undeclared) {
		return &CompileError{
			Text:     text,
			Message:  fmt.Sprintf(`undefined symbol %s`, undeclared.Name),
			Position: undeclared.Position,
		}
	}
	return &CompileError{Text: text, Message: err.Error()}
}

// Text returns the expression source.
func (x *Expression[T]) Text() string { return x.core.Text() }

// Type returns the expression's element type tag.
func (x *Expression[T]) Type() Type { return x.typ }

// Scalars returns the declared scalar names in declaration order.
func (x *Expression[T]) Scalars() []string {
	return append([]string(nil), x.core.Scalars()...)
}

// Vectors returns the declared vectors in declaration order.
func (x *Expression[T]) Vectors() []Vector {
	decls := x.core.Vectors()
	out := make([]Vector, len(decls))
	for i, v := range decls {
		out[i] = Vector{Name: v.Name, Size: v.Size}
	}
	return out
}

// Engine returns the engine this expression schedules on.
func (x *Expression[T]) Engine() *Engine { return x.eng }

// MaxParallel returns the current bound on concurrently evaluating
// instances of this expression.
func (x *Expression[T]) MaxParallel() int { return x.pool.getMaxParallel() }

// SetMaxParallel adjusts the bound on concurrently evaluating instances.
// Values outside (0, engine ceiling] fail with a [*CapacityError]. Shrinking
// below the current in-flight count never interrupts running evaluations;
// the bound applies to future acquisitions only.
func (x *Expression[T]) SetMaxParallel(n int) error { return x.pool.setMaxParallel(n) }

// MaxActive returns the number of instances evaluating right now.
func (x *Expression[T]) MaxActive() int { return x.pool.maxActive() }

// importPlan is the validated, ready-to-apply form of one evaluation's
// variable bindings. Building the plan performs every argument check, so a
// bad argument set is rejected on the caller's goroutine before any
// scheduling happens.
type importPlan struct {
	sets []func(*exprcore.Instance) error
	pins []any
}

func (p *importPlan) apply(inst *exprcore.Instance) error {
	for _, set := range p.sets {
		if err := set(inst); err != nil {
			return err
		}
	}
	return nil
}

// plan validates args against the declarations, excluding names an
// operation binds internally.
func (x *Expression[T]) plan(args Args, exclude ...string) (*importPlan, error) {
	expected := len(x.scalarSet) + len(x.vectorSize) - len(exclude)
	if len(args) != expected {
		return nil, &BindingError{Message: `wrong number of input arguments`}
	}
	p := &importPlan{sets: make([]func(*exprcore.Instance) error, 0, len(args))}
	for name, value := range args {
		for _, ex := range exclude {
			if name == ex {
				return nil, newBindingError(name, `is bound by the operation and may not be passed as an argument`)
			}
		}
		if _, ok := x.scalarSet[name]; ok {
			v, ok := scalarTo[T](value)
			if !ok {
				return nil, newBindingError(name, fmt.Sprintf(`requires a numeric value, got %T`, value))
			}
			name := name
			p.sets = append(p.sets, func(inst *exprcore.Instance) error {
				return inst.SetScalar(name, float64(v))
			})
			continue
		}
		if size, ok := x.vectorSize[name]; ok {
			_, n, ok := bufferInfo[T](value)
			if !ok {
				return nil, newBindingError(name, fmt.Sprintf(`requires a numeric vector, got %T`, value))
			}
			if n != size {
				return nil, newBindingError(name, fmt.Sprintf(`vector size mismatch: declared %d, got %d`, size, n))
			}
			name, value := name, value
			p.sets = append(p.sets, func(inst *exprcore.Instance) error {
				return inst.RebindVector(name, value)
			})
			p.pins = append(p.pins, value)
			continue
		}
		return nil, newBindingError(name, `is not a declared variable`)
	}
	return p, nil
}

// requireScalar checks that name is a declared scalar, for operations that
// bind one internally.
func (x *Expression[T]) requireScalar(name string) error {
	if _, ok := x.scalarSet[name]; !ok {
		return newBindingError(name, `is not a declared scalar variable`)
	}
	return nil
}

func (x *Expression[T]) evalBody(p *importPlan) func(*exprcore.Instance) (T, error) {
	return func(inst *exprcore.Instance) (T, error) {
		if err := p.apply(inst); err != nil {
			return 0, &RuntimeError{Cause: err}
		}
		v, err := inst.Evaluate()
		if err != nil {
			return 0, &RuntimeError{Cause: err}
		}
		return T(v), nil
	}
}

// Eval computes the expression with the given bindings and returns the
// scalar result. It blocks the calling goroutine; use [Expression.EvalAsync]
// to offload to the engine's workers.
func (x *Expression[T]) Eval(args Args) (T, error) {
	p, err := x.plan(args)
	if err != nil {
		return 0, err
	}
	return runSync(x.pool, x.evalBody(p))
}

// EvalAsync computes the expression on the engine's worker pool. Argument
// validation still happens on the caller's goroutine; a bad argument set
// settles the deferred immediately.
func (x *Expression[T]) EvalAsync(args Args) *Deferred[T] {
	d := newDeferred[T](x.eng)
	p, err := x.plan(args)
	if err != nil {
		d.settle(0, err)
		return d
	}
	for _, buf := range p.pins {
		d.pin(buf)
	}
	runAsync(x.pool, d, x.evalBody(p))
	return d
}

func (x *Expression[T]) mapBody(iterator string, input any, p *importPlan) (func(*exprcore.Instance) ([]T, error), error) {
	read, ok := readerFor[T](input)
	if !ok {
		return nil, newBindingError(iterator, fmt.Sprintf(`requires a numeric vector to iterate, got %T`, input))
	}
	_, n, _ := bufferInfo[T](input)
	if n == 0 {
		return nil, newBindingError(iterator, `requires a non-zero length vector to iterate`)
	}
	return func(inst *exprcore.Instance) ([]T, error) {
		if err := p.apply(inst); err != nil {
			return nil, &RuntimeError{Cause: err}
		}
		out := make([]T, n)
		for i := 0; i < n; i++ {
			if err := inst.SetScalar(iterator, float64(read(i))); err != nil {
				return nil, &RuntimeError{Cause: err}
			}
			v, err := inst.Evaluate()
			if err != nil {
				return nil, &RuntimeError{Cause: err}
			}
			out[i] = T(v)
		}
		return out, nil
	}, nil
}

// Map evaluates the expression once per element of input, binding the
// element to the declared scalar named iterator each time, and returns the
// results as a new vector. All remaining variables come from args and stay
// fixed across the traversal. The input may be any supported numeric slice
// type; elements are coerced to T on read.
func (x *Expression[T]) Map(input any, iterator string, args Args) ([]T, error) {
	if err := x.requireScalar(iterator); err != nil {
		return nil, err
	}
	p, err := x.plan(args, iterator)
	if err != nil {
		return nil, err
	}
	body, err := x.mapBody(iterator, input, p)
	if err != nil {
		return nil, err
	}
	return runSync(x.pool, body)
}

// MapAsync is [Expression.Map] on the engine's worker pool. The whole
// traversal runs as one job on one instance.
func (x *Expression[T]) MapAsync(input any, iterator string, args Args) *Deferred[[]T] {
	d := newDeferred[[]T](x.eng)
	if err := x.requireScalar(iterator); err != nil {
		d.settle(nil, err)
		return d
	}
	p, err := x.plan(args, iterator)
	if err != nil {
		d.settle(nil, err)
		return d
	}
	body, err := x.mapBody(iterator, input, p)
	if err != nil {
		d.settle(nil, err)
		return d
	}
	d.pin(input)
	for _, buf := range p.pins {
		d.pin(buf)
	}
	runAsync(x.pool, d, body)
	return d
}

func (x *Expression[T]) reduceBody(iterator, accumulator string, initializer T, input any, p *importPlan) (func(*exprcore.Instance) (T, error), error) {
	read, ok := readerFor[T](input)
	if !ok {
		return nil, newBindingError(iterator, fmt.Sprintf(`requires a numeric vector to iterate, got %T`, input))
	}
	_, n, _ := bufferInfo[T](input)
	if n == 0 {
		return nil, newBindingError(iterator, `requires a non-zero length vector to iterate`)
	}
	return func(inst *exprcore.Instance) (T, error) {
		if err := p.apply(inst); err != nil {
			return 0, &RuntimeError{Cause: err}
		}
		acc := initializer
		for i := 0; i < n; i++ {
			if err := inst.SetScalar(accumulator, float64(acc)); err != nil {
				return 0, &RuntimeError{Cause: err}
			}
			if err := inst.SetScalar(iterator, float64(read(i))); err != nil {
				return 0, &RuntimeError{Cause: err}
			}
			v, err := inst.Evaluate()
			if err != nil {
				return 0, &RuntimeError{Cause: err}
			}
			acc = T(v)
		}
		return acc, nil
	}, nil
}

// Reduce folds input through the expression: for each element the declared
// scalar named iterator is bound to the element and the declared scalar
// named accumulator to the running value (starting at initializer); the
// expression's result becomes the new running value. Returns the final
// accumulator.
func (x *Expression[T]) Reduce(input any, iterator, accumulator string, initializer T, args Args) (T, error) {
	if err := x.requireScalar(iterator); err != nil {
		return 0, err
	}
	if err := x.requireScalar(accumulator); err != nil {
		return 0, err
	}
	if iterator == accumulator {
		return 0, newBindingError(accumulator, `may not serve as both iterator and accumulator`)
	}
	p, err := x.plan(args, iterator, accumulator)
	if err != nil {
		return 0, err
	}
	body, err := x.reduceBody(iterator, accumulator, initializer, input, p)
	if err != nil {
		return 0, err
	}
	return runSync(x.pool, body)
}

// ReduceAsync is [Expression.Reduce] on the engine's worker pool.
func (x *Expression[T]) ReduceAsync(input any, iterator, accumulator string, initializer T, args Args) *Deferred[T] {
	d := newDeferred[T](x.eng)
	if err := x.requireScalar(iterator); err != nil {
		d.settle(0, err)
		return d
	}
	if err := x.requireScalar(accumulator); err != nil {
		d.settle(0, err)
		return d
	}
	if iterator == accumulator {
		d.settle(0, newBindingError(accumulator, `may not serve as both iterator and accumulator`))
		return d
	}
	p, err := x.plan(args, iterator, accumulator)
	if err != nil {
		d.settle(0, err)
		return d
	}
	body, err := x.reduceBody(iterator, accumulator, initializer, input, p)
	if err != nil {
		d.settle(0, err)
		return d
	}
	d.pin(input)
	for _, buf := range p.pins {
		d.pin(buf)
	}
	runAsync(x.pool, d, body)
	return d
}
