package core

import (
	"sync"
	"sync/atomic"
)

// Receiver is the object a pool worker is permanently bound to. Init runs
// first on the worker goroutine; Destroy runs last on the same goroutine
// during shutdown. Everything the receiver owns (file handles, sockets,
// crypto state) lives and dies on its worker.
type Receiver interface {
	Init()
	Destroy()
}

// Action is a typed message posted to the pool: run executes on a worker with
// that worker's receiver; cancel is invoked instead when the pool is shutting
// down and the action will never run, so its result promise can be resolved.
type Action struct {
	run    func(Receiver)
	cancel func()
}

// NewAction builds an action from its run and cancel halves. cancel may be
// nil when nothing observes the action's result.
func NewAction(run func(Receiver), cancel func()) *Action {
	return &Action{run: run, cancel: cancel}
}

// ThreadPool offloads blocking work from the network goroutine: file I/O,
// fsync, DNS, key derivation. Each worker is bound to one Receiver; the
// network goroutine posts actions and observes results through thread-safe
// cells that repost onto the event loop.
//
// Dispatch order is FIFO per posting order, but actions may interleave across
// workers. Stop drains: queued actions still run to completion, then each
// worker destroys its receiver on its own goroutine and exits.
type ThreadPool struct {
	rt *Runtime

	mu     sync.RWMutex
	queue  chan *Action
	closed bool

	wg sync.WaitGroup

	queued  atomic.Int64
	active  atomic.Int64
	posted  atomic.Uint64
	workers atomic.Int64
}

const poolQueueSize = 128

// NewThreadPool creates an empty pool; call AddThread to add workers.
func NewThreadPool(rt *Runtime) *ThreadPool {
	return &ThreadPool{
		rt:    rt,
		queue: make(chan *Action, poolQueueSize),
	}
}

// AddThread spawns a worker bound to r. Ownership of r transfers to the
// worker: r.Init runs before the first action, r.Destroy after the last.
func (p *ThreadPool) AddThread(r Receiver) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		panic("flux: AddThread on a stopped pool")
	}
	p.wg.Add(1)
	p.workers.Add(1)
	go p.workerLoop(r)
	p.mu.RUnlock()
}

func (p *ThreadPool) workerLoop(r Receiver) {
	defer p.wg.Done()
	defer p.workers.Add(-1)
	r.Init()
	for a := range p.queue {
		p.queued.Add(-1)
		p.active.Add(1)
		a.run(r)
		p.active.Add(-1)
	}
	r.Destroy()
}

// Post enqueues an action. Returns immediately; if the pool has stopped the
// action is cancelled instead of run.
func (p *ThreadPool) Post(a *Action) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		if a.cancel != nil {
			a.cancel()
		}
		return
	}
	p.posted.Add(1)
	p.queued.Add(1)
	p.queue <- a
	p.mu.RUnlock()
}

// Stop shuts the pool down cleanly: no further posts are accepted, queued
// actions are drained and run, workers destroy their receivers and exit. The
// returned future resolves on the network goroutine once every worker has
// joined.
func (p *ThreadPool) Stop() Future[Void] {
	tp := NewThreadPromise[Void](p.rt)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		tp.Send(Void{})
		return tp.GetFuture()
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	go func() {
		p.wg.Wait()
		tp.Send(Void{})
	}()
	return tp.GetFuture()
}

// PoolStats is a point-in-time snapshot of pool counters, safe to read from
// any goroutine.
type PoolStats struct {
	Workers int64
	Queued  int64
	Active  int64
	Posted  uint64
}

// Stats returns a snapshot of the pool's counters.
func (p *ThreadPool) Stats() PoolStats {
	return PoolStats{
		Workers: p.workers.Load(),
		Queued:  p.queued.Load(),
		Active:  p.active.Load(),
		Posted:  p.posted.Load(),
	}
}

// Offload posts fn to the pool and returns a network-side future for its
// result. fn runs on a worker goroutine with that worker's receiver and must
// not touch network-goroutine state. An fn queued before Stop still runs;
// if the pool has already stopped when Offload is called, fn never runs and
// the future resolves with broken_promise.
func Offload[T any](p *ThreadPool, fn func(Receiver) (T, *Error)) Future[T] {
	tp := NewThreadPromise[T](p.rt)
	p.Post(NewAction(
		func(r Receiver) {
			v, err := fn(r)
			if err != nil {
				tp.SendError(err)
			} else {
				tp.Send(v)
			}
		},
		func() { tp.SendError(ErrBrokenPromise()) },
	))
	return tp.GetFuture()
}
