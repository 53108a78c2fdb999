package core

// RuntimeOptions configures a Runtime. The zero value is ready to use:
// nondeterministic randomness and a default external queue.
type RuntimeOptions struct {
	// Seed makes the runtime's random source deterministic when nonzero.
	// Tests use a fixed seed to make whole scenarios reproducible.
	Seed int64

	// ExternalQueueSize bounds the cross-thread post queue (default 1024).
	ExternalQueueSize int
}

// Runtime bundles the event loop with its time and random sources. The
// original system exposed these as process-wide globals; here every scenario
// owns its runtime, so tests can run isolated runtimes side by side.
type Runtime struct {
	clock *Clock
	loop  *EventLoop
	rand  Random
}

// NewRuntime creates a stopped runtime; call Run to start the loop.
func NewRuntime(opts RuntimeOptions) *Runtime {
	clock := newClock()
	rt := &Runtime{
		clock: clock,
		loop:  newEventLoop(clock, opts.ExternalQueueSize),
	}
	if opts.Seed != 0 {
		rt.rand = NewSeededRandom(opts.Seed)
	} else {
		rt.rand = NewRandom()
	}
	return rt
}

// Loop exposes the event loop for components that post tasks directly.
func (rt *Runtime) Loop() *EventLoop { return rt.loop }

// Rand returns the runtime's random source (network goroutine only).
func (rt *Runtime) Rand() Random { return rt.rand }

// Now returns loop time in seconds, cached once per loop turn.
func (rt *Runtime) Now() float64 { return rt.clock.Now() }

// Timer returns high-resolution loop time in seconds.
func (rt *Runtime) Timer() float64 { return rt.clock.Timer() }

// Run drives the event loop until Stop is called.
func (rt *Runtime) Run() { rt.loop.Run() }

// Stop requests loop exit after the current task (network goroutine only; use
// Loop().StopExternal from other goroutines).
func (rt *Runtime) Stop() { rt.loop.Stop() }

// Stats returns a snapshot of scheduler counters.
func (rt *Runtime) Stats() LoopStats { return rt.loop.Stats() }

// Delay returns a future that resolves at least d seconds from now, on a
// later loop turn. Delay(0) is not synchronous: the resolution still goes
// through the timer queue, so it runs strictly after the current task.
// Delays scheduled earlier with smaller deadlines resolve no later than
// delays scheduled after them with larger deadlines.
func (rt *Runtime) Delay(seconds float64) Future[Void] {
	return rt.DelayPriority(seconds, PriorityDefault)
}

// DelayPriority is Delay with an explicit priority tag for the resolution.
func (rt *Runtime) DelayPriority(seconds float64, pri TaskPriority) Future[Void] {
	if seconds < 0 {
		seconds = 0
	}
	p := NewPromise[Void]()
	f := p.GetFuture()
	rt.loop.PostTimer(func() {
		p.Send(Void{})
		p.Drop()
	}, rt.clock.Now()+seconds, pri)
	return f
}

// Yield returns a future that resolves in the next ready-queue drain, letting
// other ready work of the same priority run first.
func (rt *Runtime) Yield(pri TaskPriority) Future[Void] {
	p := NewPromise[Void]()
	f := p.GetFuture()
	rt.loop.Post(func() {
		p.Send(Void{})
		p.Drop()
	}, pri)
	return f
}
