package core

// resolution is what a suspension point receives when it resumes: a value or
// an error, never both.
type resolution struct {
	value any
	err   *Error
}

// waitState describes an actor's current suspension.
type waitState struct {
	// unsubscribe removes every callback the suspension registered.
	unsubscribe func()
	// abandon releases future-side interest in the cells this suspension was
	// exclusively awaiting; used for depth-first cancellation.
	abandon func()
}

// Actor is a resumable computation interleaved with the event loop.
//
// An actor's body runs on its own goroutine, but never concurrently with the
// loop or with another actor: spawning runs the body inline to its first
// suspension point, and each later resumption (a cell callback) runs it to
// the next suspension point. Control is handed back and forth over a pair of
// unbuffered channels, so at any moment exactly one goroutine of the runtime
// is executing. Local variables survive suspension on the actor goroutine's
// stack.
//
// Termination resolves the actor's output cell exactly once: with the body's
// return value, or with its returned error. If the output future is cancelled
// while the actor is suspended, the suspension point resumes with
// actor_cancelled and the awaited cell is released; an uncancellable actor
// ignores external cancellation and runs to natural termination.
type Actor struct {
	rt   *Runtime
	name string

	resume chan resolution // driver -> actor: deliver a resolution
	ctl    chan struct{}   // actor -> driver: control returned

	done            bool
	cancelRequested bool
	uncancellable   bool

	waiting *waitState // nil while the actor is running

	defers []func()
}

// Spawn starts an actor and returns the future for its result. The body runs
// inline until its first suspension point before Spawn returns.
func Spawn[T any](rt *Runtime, name string, body func(*Actor) (T, *Error)) Future[T] {
	return spawnActor(rt, name, false, body)
}

// SpawnUncancellable starts an actor whose output future cannot be cancelled
// externally: cancellation requests are ignored until natural termination.
func SpawnUncancellable[T any](rt *Runtime, name string, body func(*Actor) (T, *Error)) Future[T] {
	return spawnActor(rt, name, true, body)
}

func spawnActor[T any](rt *Runtime, name string, uncancellable bool, body func(*Actor) (T, *Error)) Future[T] {
	a := &Actor{
		rt:            rt,
		name:          name,
		uncancellable: uncancellable,
		resume:        make(chan resolution),
		ctl:           make(chan struct{}),
	}
	p := NewPromise[T]()
	out := p.GetFuture()
	if !uncancellable {
		p.onCancel(a.requestCancel)
	}
	go func() {
		v, err := body(a)
		a.done = true
		a.waiting = nil
		if err != nil {
			p.SendError(err)
		} else {
			p.Send(v)
		}
		p.Drop()
		a.runDefers()
		a.ctl <- struct{}{}
	}()
	<-a.ctl
	return out
}

// Runtime returns the runtime the actor was spawned on.
func (a *Actor) Runtime() *Runtime { return a.rt }

// Name returns the actor's diagnostic name.
func (a *Actor) Name() string { return a.name }

// Cancelled reports whether cancellation has been requested. A cancellable
// actor observes this as actor_cancelled at its next suspension point.
func (a *Actor) Cancelled() bool { return a.cancelRequested }

// park returns control to the driver and blocks the actor goroutine until a
// resolution is delivered. Runs on the actor goroutine.
func (a *Actor) park() resolution {
	a.ctl <- struct{}{}
	return <-a.resume
}

// deliver resumes the actor with r and blocks until it suspends again or
// terminates. Runs on the network goroutine (from a cell callback, a posted
// task, or a cancellation).
func (a *Actor) deliver(r resolution) {
	a.resume <- r
	<-a.ctl
}

// requestCancel is the output cell's cancel hook: the last future-side
// reference to the actor's result was dropped. If the actor is suspended the
// current suspension resumes with actor_cancelled; otherwise the next
// suspension point reports it.
func (a *Actor) requestCancel() {
	if a.done || a.uncancellable {
		return
	}
	a.cancelRequested = true
	if w := a.waiting; w != nil {
		a.waiting = nil
		w.unsubscribe()
		w.abandon()
		a.deliver(resolution{err: ErrActorCancelled()})
	}
}

// checkCancelled is the common entry guard of every suspension point.
func (a *Actor) checkCancelled() *Error {
	if a.cancelRequested && !a.uncancellable {
		return ErrActorCancelled()
	}
	return nil
}

// Wait suspends the actor until f resolves and returns the resolution. A
// future that is already ready is consumed without suspending. An error
// resolution surfaces here exactly as if the suspension had raised it.
func Wait[T any](a *Actor, f Future[T]) (T, *Error) {
	var zero T
	if !f.IsValid() {
		panic("flux: Wait on an invalid future")
	}
	if err := a.checkCancelled(); err != nil {
		return zero, err
	}
	if f.IsReady() {
		return f.Get()
	}
	sub := f.Subscribe(func(v T, err *Error) {
		a.waiting = nil
		a.deliver(resolution{value: v, err: err})
	})
	a.waiting = &waitState{
		unsubscribe: sub.Cancel,
		abandon:     f.Cancel,
	}
	r := a.park()
	if r.err != nil {
		return zero, r.err
	}
	return r.value.(T), nil
}

// WaitNext suspends the actor until the stream delivers its next value. A
// queued value is consumed without suspending; a closed drained stream
// surfaces end_of_stream (or broken_promise if the producer was dropped).
func WaitNext[T any](a *Actor, s FutureStream[T]) (T, *Error) {
	var zero T
	if !s.IsValid() {
		panic("flux: WaitNext on an invalid stream")
	}
	if err := a.checkCancelled(); err != nil {
		return zero, err
	}
	if s.HasReady() {
		if len(s.s.queue) > 0 {
			return s.Pop(), nil
		}
		return zero, s.s.terminal
	}
	sub := s.s.subscribeNext(func(v T, err *Error) {
		a.waiting = nil
		a.deliver(resolution{value: v, err: err})
	})
	a.waiting = &waitState{
		unsubscribe: sub.Cancel,
		abandon:     s.Cancel,
	}
	r := a.park()
	if r.err != nil {
		return zero, r.err
	}
	return r.value.(T), nil
}

// Defer schedules fn to run after the actor's output cell has resolved, in
// reverse registration order: the moment the actor's own state is torn down.
// Dropping a local promise here reproduces the ordering of the original
// system, where an actor's return value reaches its waiters before the
// actor's locals are destroyed (and their broken promises fire).
func (a *Actor) Defer(fn func()) {
	a.defers = append(a.defers, fn)
}

func (a *Actor) runDefers() {
	for i := len(a.defers) - 1; i >= 0; i-- {
		a.defers[i]()
	}
	a.defers = nil
}

// Sleep suspends the actor for at least the given number of seconds.
func (a *Actor) Sleep(seconds float64) *Error {
	_, err := Wait(a, a.rt.Delay(seconds))
	return err
}

// Yield suspends the actor until the next ready-queue drain, letting other
// ready work run first.
func (a *Actor) Yield() *Error {
	_, err := Wait(a, a.rt.Yield(PriorityDefault))
	return err
}
