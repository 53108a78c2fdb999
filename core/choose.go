package core

// Arm is one branch of a Choose disjunction, built with When or WhenStream.
type Arm interface {
	// peek reports whether the arm would fire without suspending.
	peek() bool
	// takeReady consumes the ready resolution and returns the body runner.
	// Only valid when peek reported true.
	takeReady() func() *Error
	// subscribe registers a callback that hands the body runner to fire when
	// the arm's cell resolves, returning the subscription canceller.
	subscribe(fire func(run func() *Error)) (unsubscribe func())
	// abandonArm releases future-side interest in the arm's cell, for
	// depth-first cancellation of a cancelled actor.
	abandonArm()
}

type futureArm[T any] struct {
	f    Future[T]
	body func(T) *Error
}

// When builds an arm that fires when f resolves. On a value resolution the
// body runs with the value bound; on an error resolution the arm is still the
// one selected, but the error propagates out of Choose without running the
// body.
func When[T any](f Future[T], body func(T) *Error) Arm {
	return &futureArm[T]{f: f, body: body}
}

func (w *futureArm[T]) peek() bool { return w.f.IsReady() }

func (w *futureArm[T]) takeReady() func() *Error {
	v, err := w.f.Get()
	if err != nil {
		return func() *Error { return err }
	}
	return func() *Error { return w.body(v) }
}

func (w *futureArm[T]) subscribe(fire func(run func() *Error)) func() {
	sub := w.f.Subscribe(func(v T, err *Error) {
		if err != nil {
			fire(func() *Error { return err })
			return
		}
		fire(func() *Error { return w.body(v) })
	})
	return sub.Cancel
}

func (w *futureArm[T]) abandonArm() { w.f.Cancel() }

type streamArm[T any] struct {
	s    FutureStream[T]
	body func(T) *Error
}

// WhenStream builds an arm that fires when the stream delivers its next
// value.
func WhenStream[T any](s FutureStream[T], body func(T) *Error) Arm {
	return &streamArm[T]{s: s, body: body}
}

func (w *streamArm[T]) peek() bool { return w.s.HasReady() }

func (w *streamArm[T]) takeReady() func() *Error {
	if len(w.s.s.queue) > 0 {
		v := w.s.Pop()
		return func() *Error { return w.body(v) }
	}
	err := w.s.s.terminal
	return func() *Error { return err }
}

func (w *streamArm[T]) subscribe(fire func(run func() *Error)) func() {
	sub := w.s.s.subscribeNext(func(v T, err *Error) {
		if err != nil {
			fire(func() *Error { return err })
			return
		}
		fire(func() *Error { return w.body(v) })
	})
	return sub.Cancel
}

func (w *streamArm[T]) abandonArm() { w.s.Cancel() }

// Choose suspends the actor until the first arm fires, cancels every other
// arm's subscription, and runs the selected arm's body with the delivered
// value bound. An arm that fires with an error propagates the error out of
// Choose instead of running its body.
//
// If several arms are already ready when Choose is entered, the first in
// argument order is selected. A ready arm is still delivered through the
// ready queue rather than inline, so a loop around a Choose whose arm is
// permanently ready cannot starve the scheduler: timers and other ready tasks
// run between iterations.
func Choose(a *Actor, arms ...Arm) *Error {
	if err := a.checkCancelled(); err != nil {
		return err
	}
	if len(arms) == 0 {
		panic("flux: Choose with no arms")
	}

	for _, arm := range arms {
		if !arm.peek() {
			continue
		}
		// Ready at subscription time: deliver through the ready queue.
		chosen := arm
		valid := true
		a.rt.loop.Post(func() {
			if !valid {
				return
			}
			a.waiting = nil
			a.deliver(resolution{value: chosen.takeReady()})
		}, PriorityDefault)
		a.waiting = &waitState{
			unsubscribe: func() { valid = false },
			abandon:     func() { abandonAll(arms) },
		}
		return finishChoose(a)
	}

	unsubs := make([]func(), len(arms))
	fired := false
	for i, arm := range arms {
		idx := i
		unsubs[i] = arm.subscribe(func(run func() *Error) {
			if fired {
				return
			}
			fired = true
			for j := range unsubs {
				if j != idx {
					unsubs[j]()
				}
			}
			a.waiting = nil
			a.deliver(resolution{value: run})
		})
	}
	a.waiting = &waitState{
		unsubscribe: func() {
			fired = true
			for _, u := range unsubs {
				u()
			}
		},
		abandon: func() { abandonAll(arms) },
	}
	return finishChoose(a)
}

func finishChoose(a *Actor) *Error {
	r := a.park()
	if r.err != nil {
		return r.err
	}
	return r.value.(func() *Error)()
}

func abandonAll(arms []Arm) {
	for _, arm := range arms {
		arm.abandonArm()
	}
}
