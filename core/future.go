package core

// Void is the unit type carried by futures that signal completion without a
// payload, e.g. timers.
type Void struct{}

// Future is the read side of a single-assignment cell.
//
// Future values are lightweight handles and may be copied freely; copies share
// the same cell. Cancellation of interest is explicit: Cancel releases one
// future-side reference (the one taken when the handle was created), and the
// cell cancels its pending callbacks when the last reference is released.
type Future[T any] struct {
	c *cell[T]
}

// Ready returns a future that is already resolved with v.
func Ready[T any](v T) Future[T] {
	c := newCell[T]()
	c.state = stateValue
	c.value = v
	c.addFutureRef()
	return Future[T]{c: c}
}

// Failed returns a future already resolved with err.
func Failed[T any](err *Error) Future[T] {
	c := newCell[T]()
	c.state = stateError
	c.err = err
	c.addFutureRef()
	return Future[T]{c: c}
}

// Never returns a future that is permanently pending: it never resolves and is
// never broken. Useful as the inert arm of a Choose.
func Never[T any]() Future[T] {
	c := newCell[T]()
	// A synthetic promise reference keeps the cell from ever auto-resolving
	// with broken_promise.
	c.addPromiseRef()
	c.addFutureRef()
	return Future[T]{c: c}
}

// IsValid reports whether the handle refers to a cell at all.
func (f Future[T]) IsValid() bool { return f.c != nil }

// IsReady reports whether the cell has resolved (value or error).
func (f Future[T]) IsReady() bool { return f.c != nil && f.c.isReady() }

// IsError reports whether the cell resolved with an error.
func (f Future[T]) IsError() bool { return f.c != nil && f.c.isError() }

// Get returns the resolution. It must only be called when IsReady is true.
func (f Future[T]) Get() (T, *Error) {
	if !f.IsReady() {
		panic("flux: Get on a pending future")
	}
	return f.c.value, f.c.err
}

// MustGet returns the value, aborting on a pending or errored future.
func (f Future[T]) MustGet() T {
	v, err := f.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// GetError returns the error resolution. It must only be called when IsError
// is true.
func (f Future[T]) GetError() *Error {
	if !f.IsError() {
		panic("flux: GetError on a future that has no error")
	}
	return f.c.err
}

// Subscribe registers cb to run when the future resolves; if it already has,
// cb runs synchronously. The returned Subscription cancels the registration.
func (f Future[T]) Subscribe(cb func(T, *Error)) Subscription {
	return f.c.subscribe(cb)
}

// Cancel releases this handle's future-side reference. When the last
// future-side reference of a pending cell is released, its callbacks are
// dropped without firing; an actor whose output cell this is receives
// actor_cancelled at its current suspension point.
func (f Future[T]) Cancel() {
	if f.c != nil {
		f.c.dropFutureRef()
	}
}

// Promise is the write side of a single-assignment cell. At most one of Send
// and SendError succeeds per cell; a second resolution aborts the process.
type Promise[T any] struct {
	c *cell[T]
}

// NewPromise creates a fresh pending cell and returns its write handle.
func NewPromise[T any]() Promise[T] {
	c := newCell[T]()
	c.addPromiseRef()
	return Promise[T]{c: c}
}

// GetFuture returns a read handle, taking one future-side reference.
func (p Promise[T]) GetFuture() Future[T] {
	p.c.addFutureRef()
	return Future[T]{c: p.c}
}

// Send resolves the cell with v, firing callbacks in insertion order.
func (p Promise[T]) Send(v T) { p.c.send(v) }

// SendError resolves the cell with err.
func (p Promise[T]) SendError(err *Error) { p.c.sendError(err) }

// IsSet reports whether the cell has been resolved.
func (p Promise[T]) IsSet() bool { return p.c.isReady() }

// Drop releases this handle's promise-side reference. Releasing the last
// promise-side reference of a still-pending cell auto-resolves it with
// broken_promise. Actors typically pair a NewPromise with a deferred Drop so
// returning early cannot leave a waiter hanging.
func (p Promise[T]) Drop() { p.c.dropPromiseRef() }

// onCancel installs the hook that runs when the cell loses its last
// future-side reference while pending. Used by the actor machinery.
func (p Promise[T]) onCancel(hook func()) { p.c.cancelHook = hook }
