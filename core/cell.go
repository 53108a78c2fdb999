package core

// cellState is the discriminated state of a single-assignment cell.
type cellState int8

const (
	statePending cellState = iota
	stateValue
	stateError
)

// cell is the shared state behind a Promise/Future pair: a one-shot mailbox.
//
// A cell transitions out of Pending exactly once, to ValueReady or ErrorReady.
// Registered callbacks fire synchronously at resolution time, in insertion
// order, on whatever goroutine performs the resolution; runtime policy is that
// resolution only ever happens on the network goroutine (cross-thread senders
// go through ThreadPromise, which reposts onto the loop).
//
// References are counted separately for the promise side and the future side:
//   - promise count reaching zero while Pending auto-resolves the cell with
//     broken_promise;
//   - future count reaching zero drops all callbacks without firing them
//     (cancellation) and runs the cancel hook, which is how actor cancellation
//     propagates.
//
// cell is not safe for concurrent use.
type cell[T any] struct {
	state cellState
	value T
	err   *Error

	// Intrusive doubly linked callback list; head/tail kept so that a
	// Subscription can unlink its node in O(1) without a search.
	cbHead *cellCallback[T]
	cbTail *cellCallback[T]

	promises int
	futures  int

	// cancelHook runs when the future-side count reaches zero while the cell
	// is still pending. The actor machinery uses it to learn that nobody can
	// observe its output anymore.
	cancelHook func()
}

type cellCallback[T any] struct {
	fn         func(T, *Error)
	prev, next *cellCallback[T]
	owner      *cell[T]
	fired      bool
}

// Subscription is a reversible registration of a callback on a cell. It keeps
// the callback's list node (and through it the cell), so cancelling unlinks the
// entry in O(1) without searching the list.
type Subscription struct {
	cancel func()
}

// Cancel removes the callback if it has not fired. Safe to call repeatedly and
// on the zero Subscription.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

func newCell[T any]() *cell[T] {
	return &cell[T]{}
}

func (c *cell[T]) isReady() bool { return c.state != statePending }
func (c *cell[T]) isError() bool { return c.state == stateError }

// send resolves the cell with a value and fires callbacks in insertion order.
// A second resolution of any kind is an invariant violation and aborts.
func (c *cell[T]) send(v T) {
	if c.state != statePending {
		panic(ErrFutureAlreadySet())
	}
	c.state = stateValue
	c.value = v
	c.fireCallbacks()
}

// sendError resolves the cell with an error.
func (c *cell[T]) sendError(err *Error) {
	if c.state != statePending {
		panic(ErrFutureAlreadySet())
	}
	c.state = stateError
	c.err = err
	c.fireCallbacks()
}

func (c *cell[T]) fireCallbacks() {
	// Walk the list, capturing each successor before firing, and clear it
	// afterwards: a firing callback may subscribe new callbacks on other cells
	// or resolve them, but re-entrant resolution of this cell is already
	// excluded by the state check in send/sendError.
	for n := c.cbHead; n != nil; {
		next := n.next
		n.fired = true
		n.prev, n.next = nil, nil
		n.fn(c.value, c.err)
		n = next
	}
	c.cbHead, c.cbTail = nil, nil
}

// subscribe registers fn. If the cell is already resolved, fn runs
// synchronously and the returned Subscription is inert.
func (c *cell[T]) subscribe(fn func(T, *Error)) Subscription {
	if c.state != statePending {
		fn(c.value, c.err)
		return Subscription{}
	}
	n := &cellCallback[T]{fn: fn, owner: c, prev: c.cbTail}
	if c.cbTail != nil {
		c.cbTail.next = n
	} else {
		c.cbHead = n
	}
	c.cbTail = n
	return Subscription{cancel: func() { c.unlink(n) }}
}

func (c *cell[T]) unlink(n *cellCallback[T]) {
	if n.fired || n.owner == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else if c.cbHead == n {
		c.cbHead = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if c.cbTail == n {
		c.cbTail = n.prev
	}
	n.prev, n.next, n.owner = nil, nil, nil
}

func (c *cell[T]) addPromiseRef() { c.promises++ }

func (c *cell[T]) dropPromiseRef() {
	if c.promises <= 0 {
		return
	}
	c.promises--
	if c.promises == 0 && c.state == statePending {
		c.sendError(ErrBrokenPromise())
	}
}

func (c *cell[T]) addFutureRef() { c.futures++ }

func (c *cell[T]) dropFutureRef() {
	if c.futures <= 0 {
		return
	}
	c.futures--
	if c.futures == 0 && c.state == statePending {
		// Cancellation: pending callbacks are dropped, never fired.
		c.cbHead, c.cbTail = nil, nil
		if hook := c.cancelHook; hook != nil {
			c.cancelHook = nil
			hook()
		}
	}
}
