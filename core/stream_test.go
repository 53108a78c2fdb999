package core

import (
	"testing"
)

// TestStream_ValuesInOrder verifies ordered single-consumer delivery
// Given: A stream with three queued values
// When: An actor drains it with WaitNext
// Then: Values arrive in send order, each exactly once
func TestStream_ValuesInOrder(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	ps := NewPromiseStream[int]()
	s := ps.GetFuture()

	ps.Send(1)
	ps.Send(2)
	ps.Send(3)
	ps.Close()

	var got []int
	var terminal *Error
	Spawn(rt, "drainer", func(a *Actor) (Void, *Error) {
		for {
			v, err := WaitNext(a, s)
			if err != nil {
				terminal = err
				return Void{}, nil
			}
			got = append(got, v)
		}
	})

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("drained %v, want [1 2 3]", got)
	}
	if terminal == nil || terminal.Kind() != KindEndOfStream {
		t.Errorf("terminal = %v, want end_of_stream", terminal)
	}
}

// TestStream_WaiterResumesOnSend verifies suspension on an empty stream
// Given: An actor suspended in WaitNext on an empty stream
// When: The producer sends a value
// Then: The waiter resumes with that value
func TestStream_WaiterResumesOnSend(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	ps := NewPromiseStream[string]()
	s := ps.GetFuture()

	var got string
	Spawn(rt, "waiter", func(a *Actor) (Void, *Error) {
		v, err := WaitNext(a, s)
		if err != nil {
			return Void{}, err
		}
		got = v
		return Void{}, nil
	})

	ps.Send("hello")

	if got != "hello" {
		t.Errorf("waiter got %q, want hello", got)
	}
}

// TestStream_DropWithoutCloseBreaks verifies producer-drop semantics
// Given: An empty stream whose producer is dropped without closing
// When: A waiter asks for the next value
// Then: It observes broken_promise
func TestStream_DropWithoutCloseBreaks(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	ps := NewPromiseStream[int]()
	s := ps.GetFuture()

	ps.Drop()

	var got *Error
	Spawn(rt, "waiter", func(a *Actor) (Void, *Error) {
		_, got = WaitNext(a, s)
		return Void{}, nil
	})

	if got == nil || got.Kind() != KindBrokenPromise {
		t.Errorf("waiter observed %v, want broken_promise", got)
	}
}

// TestStream_QueuedValuesSurviveClose verifies drain-before-terminal
// Given: A stream with one queued value that is then closed
// When: A waiter drains it
// Then: The value arrives first, end_of_stream second
func TestStream_QueuedValuesSurviveClose(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	ps := NewPromiseStream[int]()
	s := ps.GetFuture()

	ps.Send(9)
	ps.Close()

	var values []int
	var terminal *Error
	Spawn(rt, "drainer", func(a *Actor) (Void, *Error) {
		for {
			v, err := WaitNext(a, s)
			if err != nil {
				terminal = err
				return Void{}, nil
			}
			values = append(values, v)
		}
	})

	if len(values) != 1 || values[0] != 9 {
		t.Errorf("values = %v, want [9]", values)
	}
	if terminal == nil || terminal.Kind() != KindEndOfStream {
		t.Errorf("terminal = %v, want end_of_stream", terminal)
	}
}
