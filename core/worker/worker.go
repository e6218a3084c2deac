// Package worker runs task bodies on dedicated goroutines that stay parked
// until the scheduler resumes them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/stbs/core/clock"
	"github.com/kilianp07/stbs/core/logger"
	"github.com/kilianp07/stbs/core/metrics"
)

var (
	// ErrBusy is returned when a worker still has an unconsumed activation.
	ErrBusy = errors.New("worker: previous activation still pending")
	// ErrUnknownWorker is returned when activating a name that was never added.
	ErrUnknownWorker = errors.New("worker: unknown worker")
	// ErrNotStarted is returned when activating before Start.
	ErrNotStarted = errors.New("worker: pool not started")
	// ErrStopped is returned once the context given to Start is done.
	ErrStopped = errors.New("worker: pool stopped")
)

// Func is the body of a periodic task. It runs once per activation.
type Func func(ctx context.Context) error

// Stats are per-worker execution counters.
type Stats struct {
	Name       string        `json:"name"`
	Budget     time.Duration `json:"budget_ns"`
	Runs       uint64        `json:"runs"`
	Errors     uint64        `json:"errors"`
	Rejected   uint64        `json:"rejected"`
	OverBudget uint64        `json:"over_budget"`
	LastExec   time.Duration `json:"last_exec_ns"`
	MaxExec    time.Duration `json:"max_exec_ns"`
}

type worker struct {
	name   string
	budget time.Duration
	fn     Func
	resume chan struct{}

	runs       atomic.Uint64
	errors     atomic.Uint64
	rejected   atomic.Uint64
	overBudget atomic.Uint64
	lastExec   atomic.Int64
	maxExec    atomic.Int64
}

// Options configure a Pool. All fields are optional.
type Options struct {
	Clock    clock.Clock
	Logger   logger.Logger
	Recorder metrics.ActivationRecorder
}

// Pool owns one goroutine per task body.
type Pool struct {
	mu      sync.RWMutex
	workers map[string]*worker
	order   []string
	started bool
	ctx     context.Context
	wg      sync.WaitGroup

	clock clock.Clock
	log   logger.Logger
	rec   metrics.ActivationRecorder
}

// New creates an empty pool.
func New(opts Options) *Pool {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NopSink{}
	}
	return &Pool{
		workers: make(map[string]*worker),
		clock:   opts.Clock,
		log:     logger.OrNop(opts.Logger),
		rec:     opts.Recorder,
	}
}

// Add declares a worker. budget is the declared worst-case execution time;
// it is reported against, never enforced.
func (p *Pool) Add(name string, budget time.Duration, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("worker: name and body are required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("worker: cannot add %q after start", name)
	}
	if _, ok := p.workers[name]; ok {
		return fmt.Errorf("worker: duplicate worker %q", name)
	}
	p.workers[name] = &worker{name: name, budget: budget, fn: fn, resume: make(chan struct{}, 1)}
	p.order = append(p.order, name)
	return nil
}

// Start launches the worker goroutines. They exit when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.ctx = ctx
	p.wg.Add(len(p.workers))
	for _, name := range p.order {
		w := p.workers[name]
		go func() {
			defer p.wg.Done()
			p.loop(ctx, w)
		}()
	}
	p.log.Infof("worker pool started with %d workers", len(p.workers))
}

// Activate resumes the named worker without waiting for it to run.
func (p *Pool) Activate(_ context.Context, name string) error {
	p.mu.RLock()
	w, ok := p.workers[name]
	started, ctx := p.started, p.ctx
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorker, name)
	}
	if !started {
		return ErrNotStarted
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s", ErrStopped, name)
	}
	select {
	case w.resume <- struct{}{}:
		return nil
	default:
		w.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrBusy, name)
	}
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Names lists the workers in declaration order.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// Stats returns counters for every worker in declaration order.
func (p *Pool) Stats() []Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Stats, 0, len(p.order))
	for _, name := range p.order {
		w := p.workers[name]
		out = append(out, Stats{
			Name:       w.name,
			Budget:     w.budget,
			Runs:       w.runs.Load(),
			Errors:     w.errors.Load(),
			Rejected:   w.rejected.Load(),
			OverBudget: w.overBudget.Load(),
			LastExec:   time.Duration(w.lastExec.Load()),
			MaxExec:    time.Duration(w.maxExec.Load()),
		})
	}
	return out
}

func (p *Pool) loop(ctx context.Context, w *worker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.resume:
			p.run(ctx, w)
		}
	}
}

func (p *Pool) run(ctx context.Context, w *worker) {
	start := p.clock.Now()
	err := p.call(ctx, w)
	exec := p.clock.Now().Sub(start)

	w.runs.Add(1)
	w.lastExec.Store(int64(exec))
	for {
		cur := w.maxExec.Load()
		if int64(exec) <= cur || w.maxExec.CompareAndSwap(cur, int64(exec)) {
			break
		}
	}
	over := w.budget > 0 && exec > w.budget
	if over {
		w.overBudget.Add(1)
		p.log.Debugf("worker %s ran %s over a %s budget", w.name, exec, w.budget)
	}
	if err != nil {
		w.errors.Add(1)
		p.log.Errorf("worker %s: %v", w.name, err)
	}
	sample := metrics.ActivationSample{Task: w.name, Exec: exec, Budget: w.budget, OverBudget: over, Err: err, Time: start}
	if rerr := p.rec.RecordActivation(sample); rerr != nil {
		p.log.Debugf("record activation of %s: %v", w.name, rerr)
	}
}

func (p *Pool) call(ctx context.Context, w *worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("panic in worker %s: %v\n%s", w.name, r, debug.Stack())
			err = fmt.Errorf("worker %s panicked: %v", w.name, r)
		}
	}()
	return w.fn(ctx)
}
