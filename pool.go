package exprtk

import (
	"sync"

	"github.com/mmomtchev/exprtk.go/internal/exprcore"
)

// Instance scheduling states. The transitions are deliberately explicit:
// a freed instance either goes Idle (no local work waiting) or Chained
// (handed straight to the next locally-pending job, bypassing the engine's
// shared queue). Chained becomes Busy the moment the successor job starts.
const (
	instanceIdle int32 = iota
	instanceBusy
	instanceChained
)

type (
	// instance pairs one evaluator clone with its scheduling state. The
	// state field is guarded by the owning pool's mutex.
	instance[T Numeric] struct {
		core  *exprcore.Instance
		state int32
	}

	// job is one requested computation against one expression. The instance
	// it runs on is assigned at dispatch time, not at creation. run applies
	// the import plan, drives the evaluator and settles the completion
	// bridge; fail settles the bridge without an instance (dispatch failed).
	job[T Numeric] struct {
		run  func(inst *instance[T])
		fail func(err error)
	}

	// instancePool owns every clone of one expression: idle/busy
	// accounting, lazy growth up to maxParallel, and the local FIFO of
	// jobs submitted while no clone was free.
	instancePool[T Numeric] struct {
		eng  *Engine
		core *exprcore.Expression

		mu          sync.Mutex
		cond        *sync.Cond
		instances   []*instance[T]
		idle        []*instance[T]
		pending     []*job[T]
		maxParallel int
		busy        int
	}
)

func newInstancePool[T Numeric](eng *Engine, core *exprcore.Expression, maxParallel int) *instancePool[T] {
	p := &instancePool[T]{
		eng:         eng,
		core:        core,
		maxParallel: maxParallel,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// tryAcquireLocked returns an idle instance, lazily creating one while the
// pool is below maxParallel, or nil when every permitted instance is busy.
// Callers hold p.mu.
func (p *instancePool[T]) tryAcquireLocked() (*instance[T], error) {
	if p.busy >= p.maxParallel {
		return nil, nil
	}
	if n := len(p.idle); n > 0 {
		inst := p.idle[n-1]
		p.idle = p.idle[:n-1]
		if inst.state != instanceIdle {
			panic(`exprtk: instance on the idle list is not idle`)
		}
		inst.state = instanceBusy
		p.busy++
		return inst, nil
	}
	if len(p.instances) < p.maxParallel {
		core, err := p.core.NewInstance()
		if err != nil {
			return nil, err
		}
		inst := &instance[T]{core: core, state: instanceBusy}
		p.instances = append(p.instances, inst)
		p.busy++
		return inst, nil
	}
	return nil, nil
}

// acquireSync blocks the caller (cooperatively, on the pool's condition
// variable) until an instance is available. Used by the synchronous call
// path, which then runs the job body on the caller's own goroutine.
func (p *instancePool[T]) acquireSync() (*instance[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		inst, err := p.tryAcquireLocked()
		if err != nil || inst != nil {
			return inst, err
		}
		p.cond.Wait()
	}
}

// release frees an instance. If the local pending queue is non-empty the
// instance is not returned to the idle set: it transitions to Chained and
// the next pending job is returned for the caller to run (or resubmit).
// Pending jobs are strictly FIFO per instance.
func (p *instancePool[T]) release(inst *instance[T]) *job[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inst.state == instanceIdle {
		panic(`exprtk: released an instance that is already idle`)
	}
	if len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]
		inst.state = instanceChained
		return next
	}
	inst.state = instanceIdle
	p.idle = append(p.idle, inst)
	p.busy--
	p.cond.Signal()
	return nil
}

// executor wraps a job bound to an instance for the engine's worker pool.
// When the job finishes, the same worker immediately continues with the
// next locally-pending job against the freed instance, without a round
// trip through the shared queue.
func (p *instancePool[T]) executor(inst *instance[T], j *job[T]) func() {
	return func() {
		for j != nil {
			p.markBusy(inst)
			j.run(inst)
			j = p.release(inst)
		}
	}
}

func (p *instancePool[T]) markBusy(inst *instance[T]) {
	p.mu.Lock()
	inst.state = instanceBusy
	p.mu.Unlock()
}

// dispatch routes an asynchronous job: straight to the engine bound to an
// instance when one is free, otherwise onto the local pending queue (no
// engine submission happens until an instance frees up).
func (p *instancePool[T]) dispatch(j *job[T]) {
	p.mu.Lock()
	inst, err := p.tryAcquireLocked()
	if err != nil {
		p.mu.Unlock()
		j.fail(err)
		return
	}
	if inst == nil {
		p.pending = append(p.pending, j)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if err := p.eng.submit(p.executor(inst, j)); err != nil {
		p.releaseFailed(inst, j, err)
	}
}

// releaseFailed unwinds a dispatch whose engine submission was rejected
// (engine shut down): the job - and any pending successors that can no
// longer be resubmitted - fail with the submission error, and the instance
// returns to the idle set.
func (p *instancePool[T]) releaseFailed(inst *instance[T], j *job[T], err error) {
	for j != nil {
		j.fail(err)
		j = p.release(inst)
	}
}

// releaseSync frees an instance from the synchronous path. Pending jobs are
// asynchronous by construction, so they are handed back to the engine
// rather than run on the host's goroutine.
func (p *instancePool[T]) releaseSync(inst *instance[T]) {
	j := p.release(inst)
	if j == nil {
		return
	}
	if err := p.eng.submit(p.executor(inst, j)); err != nil {
		p.releaseFailed(inst, j, err)
	}
}

// maxActive returns the number of currently busy instances, for
// observability only.
func (p *instancePool[T]) maxActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *instancePool[T]) getMaxParallel() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxParallel
}

// setMaxParallel adjusts the growth bound. Shrinking never destroys
// instances already created or interrupts busy ones; it only caps future
// growth and future acquisitions.
func (p *instancePool[T]) setMaxParallel(n int) error {
	if n <= 0 {
		return &CapacityError{Message: `maxParallel must be positive`}
	}
	if n > p.eng.ceiling {
		return &CapacityError{Message: `maxParallel exceeds the process-wide ceiling`}
	}
	p.mu.Lock()
	p.maxParallel = n
	p.mu.Unlock()
	return nil
}

// runSync acquires an instance, runs body inline on the caller's goroutine
// and releases. Panics out of the body are recovered so the pool's
// bookkeeping stays intact, then surfaced as errors.
func runSync[T Numeric, R any](p *instancePool[T], body func(*exprcore.Instance) (R, error)) (R, error) {
	inst, err := p.acquireSync()
	if err != nil {
		var zero R
		return zero, err
	}
	defer p.releaseSync(inst)
	return runBody(inst.core, body)
}

// runAsync wraps body as a job settling d, and dispatches it.
func runAsync[T Numeric, R any](p *instancePool[T], d *Deferred[R], body func(*exprcore.Instance) (R, error)) {
	p.dispatch(&job[T]{
		run: func(inst *instance[T]) {
			r, err := runBody(inst.core, body)
			d.settle(r, err)
		},
		fail: func(err error) {
			var zero R
			d.settle(zero, err)
		},
	})
}

// runBody executes a job body, converting an escaping panic into an error
// result at the worker-loop boundary.
func runBody[R any](core *exprcore.Instance, body func(*exprcore.Instance) (R, error)) (r R, err error) {
	defer func() {
		if v := recover(); v != nil {
			r = *new(R)
			err = &RuntimeError{Cause: PanicError{Value: v}}
		}
	}()
	return body(core)
}
