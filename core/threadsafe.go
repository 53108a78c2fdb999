package core

import "sync"

// ThreadPromise is the cross-thread variant of Promise: the minority of cells
// whose resolution originates off the network goroutine (thread pool results,
// trace write barriers).
//
// The fast path (plain cells) stays lock-free and single-threaded; a
// ThreadPromise takes a mutex for the state transition and reposts the actual
// cell resolution onto the event loop through the external queue, which also
// wakes an idle loop. From the network goroutine's point of view the returned
// future resolves in an unspecified later turn, but always after the task
// that posted the cross-thread work returned.
type ThreadPromise[T any] struct {
	inner *threadPromiseState[T]
}

type threadPromiseState[T any] struct {
	mu   sync.Mutex
	rt   *Runtime
	p    Promise[T]
	f    Future[T]
	done bool
}

// NewThreadPromise creates the cross-thread promise. Must be called on the
// network goroutine (it creates the loop-side cell); Send and SendError may
// then be called from any goroutine.
func NewThreadPromise[T any](rt *Runtime) ThreadPromise[T] {
	p := NewPromise[T]()
	return ThreadPromise[T]{inner: &threadPromiseState[T]{
		rt: rt,
		p:  p,
		f:  p.GetFuture(),
	}}
}

// GetFuture returns the network-side read handle.
func (tp ThreadPromise[T]) GetFuture() Future[T] { return tp.inner.f }

// Send resolves the promise with v from any goroutine. The loop-side cell
// resolves on the network goroutine.
func (tp ThreadPromise[T]) Send(v T) {
	tp.inner.post(func(p Promise[T]) { p.Send(v) })
}

// SendError resolves the promise with err from any goroutine.
func (tp ThreadPromise[T]) SendError(err *Error) {
	tp.inner.post(func(p Promise[T]) { p.SendError(err) })
}

// IsSet reports whether a resolution has been posted (it may not yet have
// reached the network goroutine).
func (tp ThreadPromise[T]) IsSet() bool {
	tp.inner.mu.Lock()
	defer tp.inner.mu.Unlock()
	return tp.inner.done
}

func (s *threadPromiseState[T]) post(resolve func(Promise[T])) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		panic(ErrFutureAlreadySet())
	}
	s.done = true
	s.mu.Unlock()
	s.rt.loop.PostExternal(func() {
		resolve(s.p)
		s.p.Drop()
	})
}
