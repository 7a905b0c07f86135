package exprtk

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/joeycumines/logiface"
)

type (
	// Engine owns the process-wide scheduling state shared by every
	// [Expression] built against it: a fixed set of worker goroutines
	// draining one shared FIFO queue of ready jobs, the single callback
	// goroutine that delivers asynchronous completions in host order, and
	// the ceiling bounding every expression's maxParallel.
	//
	// Engines are explicit so tests (and embedders) can run isolated pools;
	// expressions built without [WithEngine] share a lazily-started default.
	// Instances must be initialized using the NewEngine factory.
	Engine struct {
		log     *logiface.Logger[logiface.Event]
		threads int
		ceiling int

		mu       sync.Mutex
		cond     *sync.Cond
		queue    []func()
		stopping bool
		workers  sync.WaitGroup

		cbMu     sync.Mutex
		cbQueue  chan func()
		cbClosed bool
		cbDone   chan struct{}

		shutdownOnce sync.Once
	}

	engineOptions struct {
		threads int
		ceiling int
		log     *logiface.Logger[logiface.Event]
	}

	// EngineOption configures an [Engine].
	EngineOption interface {
		applyEngine(*engineOptions)
	}

	engineOptionImpl struct {
		applyEngineFunc func(*engineOptions)
	}
)

func (x *engineOptionImpl) applyEngine(opts *engineOptions) { x.applyEngineFunc(opts) }

// WithThreads overrides the worker goroutine count. The default is the
// detected hardware parallelism.
func WithThreads(n int) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) { opts.threads = n }}
}

// WithMaxParallelCeiling overrides the process-wide bound on any
// expression's maxParallel. The default is read once from the
// EXPRTK_MAX_PARALLEL environment variable, falling back to four times the
// detected hardware parallelism.
func WithMaxParallelCeiling(n int) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) { opts.ceiling = n }}
}

// WithLogger attaches a structured logger to the engine. A nil logger (the
// default) disables logging.
func WithLogger(log *logiface.Logger[logiface.Event]) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) { opts.log = log }}
}

// NewEngine initializes an Engine and starts its worker and callback
// goroutines. [Engine.Shutdown] should be called when the Engine is no
// longer needed.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	cfg := engineOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyEngine(&cfg)
	}
	if cfg.threads <= 0 {
		cfg.threads = runtime.NumCPU()
	}
	if cfg.ceiling <= 0 {
		cfg.ceiling = envCeiling()
	}
	if cfg.ceiling < cfg.threads {
		cfg.ceiling = cfg.threads
	}

	e := &Engine{
		log:     cfg.log,
		threads: cfg.threads,
		ceiling: cfg.ceiling,
		cbQueue: make(chan func(), 16),
		cbDone:  make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	e.workers.Add(e.threads)
	for i := 0; i < e.threads; i++ {
		go e.worker()
	}
	go e.callbackLoop()

	e.log.Debug().
		Int(`threads`, e.threads).
		Int(`ceiling`, e.ceiling).
		Log(`engine started`)

	return e, nil
}

// Threads returns the worker goroutine count.
func (e *Engine) Threads() int { return e.threads }

// MaxParallelCeiling returns the process-wide bound on any expression's
// maxParallel.
func (e *Engine) MaxParallelCeiling() int { return e.ceiling }

// submit enqueues a ready job body for the worker pool. It fails with
// [ErrEngineShutdown] once shutdown has begun, so a late submission is
// rejected with a diagnostic instead of being silently lost.
func (e *Engine) submit(fn func()) error {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		e.log.Warning().Log(`job submitted after engine shutdown`)
		return ErrEngineShutdown
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()
	e.cond.Signal()
	return nil
}

func (e *Engine) worker() {
	defer e.workers.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.stopping {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			// stopping, queue drained
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		fn()
	}
}

// deliver hands a completion callback to the single callback goroutine.
// After shutdown the callback loop is gone; the callback then runs on the
// caller's goroutine so completions are never dropped.
func (e *Engine) deliver(fn func()) {
	e.cbMu.Lock()
	if e.cbClosed {
		e.cbMu.Unlock()
		fn()
		return
	}
	e.cbQueue <- fn
	e.cbMu.Unlock()
}

// callbackLoop is the host callback goroutine. A panic escaping a host
// callback is deliberately not recovered: exactly-once delivery has been
// violated from the host's point of view, and aborting beats resuming with
// broken expectations.
func (e *Engine) callbackLoop() {
	defer close(e.cbDone)
	for fn := range e.cbQueue {
		fn()
	}
}

// Shutdown stops the engine: no further submissions are accepted, already
// queued jobs run to completion, worker goroutines are joined, and the
// callback goroutine drains and exits. Safe to call more than once.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.mu.Lock()
		e.stopping = true
		e.mu.Unlock()
		e.cond.Broadcast()
		e.workers.Wait()

		e.cbMu.Lock()
		e.cbClosed = true
		close(e.cbQueue)
		e.cbMu.Unlock()

		e.log.Debug().Log(`engine shut down`)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.cbDone:
		return nil
	}
}

var (
	defaultEngineOnce sync.Once
	defaultEngine     *Engine
)

// DefaultEngine returns the lazily-started engine shared by expressions
// built without [WithEngine].
func DefaultEngine() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine, _ = NewEngine()
	})
	return defaultEngine
}

func envCeiling() int {
	if s := os.Getenv(`EXPRTK_MAX_PARALLEL`); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU() * 4
}
