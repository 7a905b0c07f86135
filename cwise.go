package exprtk

import (
	"fmt"
	"sync"

	"github.com/mmomtchev/exprtk.go/internal/exprcore"
)

type (
	cwiseOptions struct {
		dest     any
		parallel int
	}

	// CwiseOption configures one [Expression.Cwise] traversal.
	CwiseOption interface {
		applyCwise(*cwiseOptions)
	}

	cwiseOptionImpl struct {
		applyCwiseFunc func(*cwiseOptions)
	}

	cwiseVec[T Numeric] struct {
		name    string
		read    func(i int) T
		strided *Strided
	}

	// cwisePlan is a fully validated traversal: the fixed scalar bindings,
	// the vector accessors, the element count every vector agreed on, and
	// the destination.
	cwisePlan[T Numeric] struct {
		elems       int
		fixed       []func(*exprcore.Instance) error
		vecs        []cwiseVec[T]
		dest        any
		write       func(i int, v T)
		destStrided *Strided
	}
)

func (x *cwiseOptionImpl) applyCwise(opts *cwiseOptions) { x.applyCwiseFunc(opts) }

// WithDest writes the traversal's results into an existing buffer instead
// of allocating a []T. The buffer may be any supported numeric slice type
// (results are coerced per element) or a [*Strided] view; its element count
// must match the traversal length.
func WithDest(dest any) CwiseOption {
	return &cwiseOptionImpl{func(opts *cwiseOptions) { opts.dest = dest }}
}

// WithParallel splits the traversal into n contiguous chunks evaluated on
// separate instances. The default (0) picks a split from the engine's
// thread count and the expression's maxParallel. n is capped by the element
// count; values above the engine's ceiling fail with a [*CapacityError].
func WithParallel(n int) CwiseOption {
	return &cwiseOptionImpl{func(opts *cwiseOptions) { opts.parallel = n }}
}

// cwisePlan validates args and options into a ready traversal. Every check
// happens here, on the caller's goroutine, before any scheduling.
func (x *Expression[T]) cwisePlan(args Args, opts []CwiseOption) (*cwisePlan[T], int, error) {
	var cfg cwiseOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyCwise(&cfg)
	}

	if len(x.vectorSize) > 0 {
		return nil, 0, &BindingError{Message: `cwise is only supported with scalar-only expressions`}
	}
	if len(args) != len(x.scalarSet) {
		return nil, 0, &BindingError{Message: `wrong number of input arguments`}
	}

	pl := &cwisePlan[T]{elems: -1}
	for name, value := range args {
		if _, ok := x.scalarSet[name]; !ok {
			return nil, 0, newBindingError(name, `is not a declared scalar variable`)
		}
		vec, n, err := resolveCwiseArg[T](name, value)
		if err != nil {
			return nil, 0, err
		}
		if vec == nil {
			v, _ := scalarTo[T](value)
			name := name
			pl.fixed = append(pl.fixed, func(inst *exprcore.Instance) error {
				return inst.SetScalar(name, float64(v))
			})
			continue
		}
		if pl.elems >= 0 && n != pl.elems {
			return nil, 0, &BindingError{Message: `all vectors must have the same number of elements`}
		}
		pl.elems = n
		pl.vecs = append(pl.vecs, *vec)
	}
	if pl.elems <= 0 {
		return nil, 0, &BindingError{Message: `at least one argument must be a non-zero length vector`}
	}

	if err := pl.bindDest(cfg.dest); err != nil {
		return nil, 0, err
	}

	parallel := cfg.parallel
	if parallel < 0 || parallel > x.eng.ceiling {
		return nil, 0, &CapacityError{Message: fmt.Sprintf(`cwise parallelism %d is outside [0, %d]`, parallel, x.eng.ceiling)}
	}
	if parallel == 0 {
		parallel = x.eng.threads
		if mp := x.pool.getMaxParallel(); parallel > mp {
			parallel = mp
		}
	}
	if parallel > pl.elems {
		parallel = pl.elems
	}
	return pl, parallel, nil
}

// resolveCwiseArg classifies one argument. A nil vec with a nil error means
// the argument is a broadcast scalar.
func resolveCwiseArg[T Numeric](name string, value any) (*cwiseVec[T], int, error) {
	if s, ok := value.(*Strided); ok {
		read, ok := readerFor[T](s.Data)
		if !ok {
			return nil, 0, newBindingError(name, fmt.Sprintf(`strided view requires a numeric buffer, got %T`, s.Data))
		}
		_, dataLen, _ := bufferInfo[T](s.Data)
		if err := s.validate(dataLen); err != nil {
			return nil, 0, newBindingError(name, err.Error())
		}
		return &cwiseVec[T]{name: name, read: read, strided: s}, s.Elements(), nil
	}
	if read, ok := readerFor[T](value); ok {
		_, n, _ := bufferInfo[T](value)
		return &cwiseVec[T]{name: name, read: read}, n, nil
	}
	if _, ok := scalarTo[T](value); ok {
		return nil, 0, nil
	}
	return nil, 0, newBindingError(name, fmt.Sprintf(`requires a numeric scalar or vector, got %T`, value))
}

// bindDest validates the destination buffer, allocating a []T when none was
// supplied.
func (pl *cwisePlan[T]) bindDest(dest any) error {
	if dest == nil {
		out := make([]T, pl.elems)
		pl.dest = out
		pl.write = func(i int, v T) { out[i] = v }
		return nil
	}
	if s, ok := dest.(*Strided); ok {
		write, ok := writerFor[T](s.Data)
		if !ok {
			return &BindingError{Message: fmt.Sprintf(`destination strided view requires a numeric buffer, got %T`, s.Data)}
		}
		_, dataLen, _ := bufferInfo[T](s.Data)
		if err := s.validate(dataLen); err != nil {
			return &BindingError{Message: `destination ` + err.Error()}
		}
		if s.Elements() != pl.elems {
			return &BindingError{Message: fmt.Sprintf(`destination has %d elements, traversal has %d`, s.Elements(), pl.elems)}
		}
		pl.dest = s
		pl.write = write
		pl.destStrided = s
		return nil
	}
	write, ok := writerFor[T](dest)
	if !ok {
		return &BindingError{Message: fmt.Sprintf(`destination requires a numeric buffer, got %T`, dest)}
	}
	_, n, _ := bufferInfo[T](dest)
	if n != pl.elems {
		return &BindingError{Message: fmt.Sprintf(`destination has %d elements, traversal has %d`, n, pl.elems)}
	}
	pl.dest = dest
	pl.write = write
	return nil
}

// chunk builds the body evaluating elements [lo, hi) on one instance.
// Strided arguments get a cursor positioned at lo and advanced once per
// element, so chunked traversals visit exactly the same indices as a single
// pass.
func (pl *cwisePlan[T]) chunk(lo, hi int) func(*exprcore.Instance) error {
	return func(inst *exprcore.Instance) error {
		for _, set := range pl.fixed {
			if err := set(inst); err != nil {
				return &RuntimeError{Cause: err}
			}
		}
		get := make([]func(k int) T, len(pl.vecs))
		for i, v := range pl.vecs {
			if v.strided == nil {
				get[i] = v.read
				continue
			}
			cur := newStridedCursor(v.strided, lo)
			read := v.read
			get[i] = func(int) T {
				v := read(cur.index())
				cur.next()
				return v
			}
		}
		put := pl.write
		if pl.destStrided != nil {
			cur := newStridedCursor(pl.destStrided, lo)
			write := pl.write
			put = func(_ int, v T) {
				write(cur.index(), v)
				cur.next()
			}
		}
		for k := lo; k < hi; k++ {
			for i := range pl.vecs {
				if err := inst.SetScalar(pl.vecs[i].name, float64(get[i](k))); err != nil {
					return &RuntimeError{Cause: err}
				}
			}
			r, err := inst.Evaluate()
			if err != nil {
				return &RuntimeError{Cause: err}
			}
			put(k, T(r))
		}
		return nil
	}
}

// chunkBounds returns the [lo, hi) range of chunk c out of n over elems
// elements. The split is balanced, with any remainder spread one element at
// a time over the leading chunks, rather than ceil-sized chunks with a
// short tail; either way the chunks are contiguous, disjoint, and cover
// [0, elems), which is all the traversal relies on.
func chunkBounds(elems, n, c int) (int, int) {
	size := elems / n
	rem := elems % n
	lo := c*size + min(c, rem)
	hi := lo + size
	if c < rem {
		hi++
	}
	return lo, hi
}

// cwiseChunkJob adapts one chunk body into a pool job reporting to done.
func (x *Expression[T]) cwiseChunkJob(body func(*exprcore.Instance) error, done func(error)) *job[T] {
	return &job[T]{
		run: func(inst *instance[T]) {
			_, err := runBody(inst.core, func(core *exprcore.Instance) (struct{}, error) {
				return struct{}{}, body(core)
			})
			done(err)
		},
		fail: done,
	}
}

// Cwise evaluates the expression once per element position across the
// vector arguments, writing each result to the destination. Scalar
// arguments broadcast across the traversal; vector arguments (plain slices
// of any supported element type, or [*Strided] views) advance together and
// must agree on element count. The expression itself must declare only
// scalars.
//
// Returns the destination buffer: the [WithDest] buffer when one was given,
// a freshly allocated []T otherwise.
//
// With a parallel split above one, the calling goroutine evaluates the
// first chunk itself while the rest run on the engine's workers.
func (x *Expression[T]) Cwise(args Args, opts ...CwiseOption) (any, error) {
	pl, parallel, err := x.cwisePlan(args, opts)
	if err != nil {
		return nil, err
	}

	if parallel <= 1 {
		if _, err := runSync(x.pool, noResult(pl.chunk(0, pl.elems))); err != nil {
			return nil, err
		}
		return pl.dest, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	done := func(err error) {
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
		wg.Done()
	}
	wg.Add(parallel - 1)
	for c := 1; c < parallel; c++ {
		lo, hi := chunkBounds(pl.elems, parallel, c)
		x.pool.dispatch(x.cwiseChunkJob(pl.chunk(lo, hi), done))
	}

	lo, hi := chunkBounds(pl.elems, parallel, 0)
	_, err = runSync(x.pool, noResult(pl.chunk(lo, hi)))
	wg.Wait()
	if err == nil {
		err = firstErr
	}
	if err != nil {
		return nil, err
	}
	return pl.dest, nil
}

// CwiseAsync is [Expression.Cwise] with every chunk on the engine's worker
// pool; the deferred settles with the destination buffer once the last
// chunk completes.
func (x *Expression[T]) CwiseAsync(args Args, opts ...CwiseOption) *Deferred[any] {
	d := newDeferred[any](x.eng)
	pl, parallel, err := x.cwisePlan(args, opts)
	if err != nil {
		d.settle(nil, err)
		return d
	}
	for name := range args {
		d.pin(args[name])
	}
	d.pin(pl.dest)

	var (
		mu       sync.Mutex
		firstErr error
		left     = parallel
	)
	done := func(err error) {
		mu.Lock()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		left--
		settleNow := left == 0
		settleErr := firstErr
		mu.Unlock()
		if settleNow {
			if settleErr != nil {
				d.settle(nil, settleErr)
			} else {
				d.settle(pl.dest, nil)
			}
		}
	}
	for c := 0; c < parallel; c++ {
		lo, hi := chunkBounds(pl.elems, parallel, c)
		x.pool.dispatch(x.cwiseChunkJob(pl.chunk(lo, hi), done))
	}
	return d
}

// noResult adapts an error-only body to the pool's result-bearing shape.
func noResult(body func(*exprcore.Instance) error) func(*exprcore.Instance) (struct{}, error) {
	return func(inst *exprcore.Instance) (struct{}, error) {
		return struct{}{}, body(inst)
	}
}
