package core

// streamCell is the shared state behind a PromiseStream/FutureStream pair: an
// ordered queue of resolutions, each consumed by exactly one WaitNext.
//
// Close semantics mirror the single-shot cell: closing the producer delivers
// end_of_stream to the waiter once the queue drains; dropping the producer
// without closing delivers broken_promise instead.
type streamCell[T any] struct {
	queue    []T
	terminal *Error // set once the producer closed or broke the stream

	// At most one outstanding waiter. A second concurrent WaitNext on the
	// same stream is a programming error and aborts.
	waiter *streamWaiter[T]

	promises int
	futures  int
}

type streamWaiter[T any] struct {
	fn func(T, *Error)
}

func (s *streamCell[T]) send(v T) {
	if s.terminal != nil {
		panic(ErrFutureAlreadySet())
	}
	if w := s.waiter; w != nil {
		s.waiter = nil
		w.fn(v, nil)
		return
	}
	s.queue = append(s.queue, v)
}

func (s *streamCell[T]) close(err *Error) {
	if s.terminal != nil {
		return
	}
	s.terminal = err
	if len(s.queue) == 0 {
		if w := s.waiter; w != nil {
			var zero T
			s.waiter = nil
			w.fn(zero, err)
		}
	}
}

// subscribeNext registers a single-shot waiter for the next value. If a value
// is queued it is delivered synchronously; if the stream already terminated
// with an empty queue the terminal error is delivered synchronously.
func (s *streamCell[T]) subscribeNext(fn func(T, *Error)) Subscription {
	if len(s.queue) > 0 {
		v := s.queue[0]
		s.queue[0] = *new(T)
		s.queue = s.queue[1:]
		fn(v, nil)
		return Subscription{}
	}
	if s.terminal != nil {
		var zero T
		fn(zero, s.terminal)
		return Subscription{}
	}
	if s.waiter != nil {
		panic("flux: concurrent WaitNext on the same stream")
	}
	w := &streamWaiter[T]{fn: fn}
	s.waiter = w
	return Subscription{cancel: func() {
		// Only clear if this registration is still the active one.
		if s.waiter == w {
			s.waiter = nil
		}
	}}
}

func (s *streamCell[T]) dropPromiseRef() {
	if s.promises <= 0 {
		return
	}
	s.promises--
	if s.promises == 0 && s.terminal == nil {
		s.close(ErrBrokenPromise())
	}
}

func (s *streamCell[T]) dropFutureRef() {
	if s.futures <= 0 {
		return
	}
	s.futures--
	if s.futures == 0 {
		s.waiter = nil
		s.queue = nil
	}
}

// PromiseStream is the producer side of an ordered value stream.
type PromiseStream[T any] struct {
	s *streamCell[T]
}

// NewPromiseStream creates an empty open stream.
func NewPromiseStream[T any]() PromiseStream[T] {
	s := &streamCell[T]{}
	s.promises++
	return PromiseStream[T]{s: s}
}

// Send enqueues v, delivering it synchronously if a waiter is registered.
func (p PromiseStream[T]) Send(v T) { p.s.send(v) }

// Close terminates the stream. Queued values are still delivered; afterwards
// the next waiter observes end_of_stream.
func (p PromiseStream[T]) Close() { p.s.close(ErrEndOfStream()) }

// Drop releases the producer reference. Dropping the last producer of an
// unclosed stream breaks it: the next waiter observes broken_promise.
func (p PromiseStream[T]) Drop() { p.s.dropPromiseRef() }

// GetFuture returns the consumer handle.
func (p PromiseStream[T]) GetFuture() FutureStream[T] {
	p.s.futures++
	return FutureStream[T]{s: p.s}
}

// FutureStream is the consumer side of an ordered value stream. Each value is
// readable by at most one WaitNext.
type FutureStream[T any] struct {
	s *streamCell[T]
}

// IsValid reports whether the handle refers to a stream at all.
func (f FutureStream[T]) IsValid() bool { return f.s != nil }

// HasReady reports whether a value (or terminal error) would be delivered
// without suspending.
func (f FutureStream[T]) HasReady() bool {
	return f.s != nil && (len(f.s.queue) > 0 || f.s.terminal != nil)
}

// Pop removes and returns the next queued value. It must only be called when
// a value is queued.
func (f FutureStream[T]) Pop() T {
	if len(f.s.queue) == 0 {
		panic("flux: Pop on an empty stream")
	}
	v := f.s.queue[0]
	f.s.queue[0] = *new(T)
	f.s.queue = f.s.queue[1:]
	return v
}

// Cancel releases the consumer reference; the last release drops queued
// values and any registered waiter.
func (f FutureStream[T]) Cancel() {
	if f.s != nil {
		f.s.dropFutureRef()
	}
}
