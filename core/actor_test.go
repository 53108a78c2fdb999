package core

import (
	"testing"
)

// TestActor_Calc verifies chaining a computation onto an unresolved future
// Given: An actor awaiting a pending future plus an offset
// When: The promise sends the input value
// Then: The actor's result future resolves with the sum
func TestActor_Calc(t *testing.T) {
	// Arrange
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	p := NewPromise[int]()

	result := Spawn(rt, "async_add", func(a *Actor) (int, *Error) {
		v, err := Wait(a, p.GetFuture())
		if err != nil {
			return 0, err
		}
		return v + 10, nil
	})

	if result.IsReady() {
		t.Fatal("result should be pending before input resolves")
	}

	// Act
	p.Send(5)

	// Assert
	if !result.IsReady() {
		t.Fatal("result should be ready after input resolves")
	}
	if got := result.MustGet(); got != 15 {
		t.Errorf("result = %d, want 15", got)
	}
}

// TestActor_RunsInlineToFirstSuspension verifies spawn semantics
// Given: An actor body with code before its first wait
// When: Spawn returns
// Then: The pre-suspension code already ran
func TestActor_RunsInlineToFirstSuspension(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	p := NewPromise[Void]()

	ran := false
	Spawn(rt, "inline", func(a *Actor) (Void, *Error) {
		ran = true
		return Wait(a, p.GetFuture())
	})

	if !ran {
		t.Error("actor body did not run inline to its first suspension")
	}
	p.Send(Void{})
}

// TestActor_ErrorPropagation verifies errors crossing actor boundaries
// Given: A child actor that raises value_too_large after a delay
// When: The parent waits on the child's future
// Then: The parent observes the error at its suspension point
func TestActor_ErrorPropagation(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	raise := func() Future[int] {
		return Spawn(rt, "raise", func(a *Actor) (int, *Error) {
			if err := a.Sleep(0.01); err != nil {
				return 0, err
			}
			return 0, ErrValueTooLarge()
		})
	}

	var got *Error
	Spawn(rt, "parent", func(a *Actor) (Void, *Error) {
		_, got = Wait(a, raise())
		rt.Stop()
		return Void{}, nil
	})
	rt.Run()

	if got == nil || got.Kind() != KindValueTooLarge {
		t.Errorf("parent observed %v, want value_too_large", got)
	}
}

// TestActor_BrokenPromise verifies the broken-promise scenario
// Given: A child actor that hands out a promise's future and returns
// without sending
// When: The parent waits on that future
// Then: The parent observes broken_promise
func TestActor_BrokenPromise(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	var s Future[int]
	Spawn(rt, "promise_broken", func(a *Actor) (int, *Error) {
		p := NewPromise[int]()
		s = p.GetFuture()
		a.Defer(p.Drop)
		if err := a.Sleep(0.01); err != nil {
			return 0, err
		}
		return 2, nil
	})

	var got *Error
	Spawn(rt, "parent", func(a *Actor) (Void, *Error) {
		_, got = Wait(a, s)
		rt.Stop()
		return Void{}, nil
	})
	rt.Run()

	if got == nil || got.Kind() != KindBrokenPromise {
		t.Errorf("parent observed %v, want broken_promise", got)
	}
}

// TestActor_ReturnBeforeLocalTeardown verifies resolution ordering
// Given: An actor with a deferred local promise drop
// When: The actor returns a value
// Then: Waiters of the output observe the value before waiters of the local
// promise observe broken_promise
func TestActor_ReturnBeforeLocalTeardown(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	var order []string
	var s Future[int]
	out := Spawn(rt, "child", func(a *Actor) (int, *Error) {
		p := NewPromise[int]()
		s = p.GetFuture()
		a.Defer(p.Drop)
		if err := a.Sleep(0.01); err != nil {
			return 0, err
		}
		return 2, nil
	})

	out.Subscribe(func(int, *Error) { order = append(order, "output") })
	s.Subscribe(func(_ int, err *Error) {
		order = append(order, "local")
		rt.Stop()
	})
	rt.Run()

	if len(order) != 2 || order[0] != "output" || order[1] != "local" {
		t.Errorf("order = %v, want [output local]", order)
	}
}

// TestActor_Cancellation verifies cancellation through ownership withdrawal
// Given: An actor suspended on a never-resolving future
// When: Its output future's only reference is cancelled
// Then: The suspension point resumes with actor_cancelled
func TestActor_Cancellation(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	var got *Error
	f := Spawn(rt, "cancellable", func(a *Actor) (Void, *Error) {
		_, err := Wait(a, Never[Void]())
		got = err
		return Void{}, err
	})

	f.Cancel()

	if got == nil || got.Kind() != KindActorCancelled {
		t.Errorf("suspension observed %v, want actor_cancelled", got)
	}
}

// TestActor_CancellationAtNextSuspension verifies deferred cancellation
// Given: An actor cancelled while suspended on a pending future, with a second
// wait after it
// When: It reaches that next suspension point
// Then: Both waits report actor_cancelled, the second one immediately
func TestActor_CancellationAtNextSuspension(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	p := NewPromise[Void]()

	var first, second *Error
	f := Spawn(rt, "twice", func(a *Actor) (Void, *Error) {
		_, first = Wait(a, p.GetFuture())
		_, second = Wait(a, Never[Void]())
		return Void{}, second
	})

	f.Cancel()

	if first == nil || first.Kind() != KindActorCancelled {
		t.Fatalf("first wait observed %v, want actor_cancelled", first)
	}
	if second == nil || second.Kind() != KindActorCancelled {
		t.Errorf("second wait observed %v, want actor_cancelled", second)
	}
}

// TestActor_Uncancellable verifies cancellation suppression
// Given: An uncancellable actor suspended on a delay
// When: Its output future is cancelled
// Then: The actor still runs to natural termination
func TestActor_Uncancellable(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	finished := false
	f := SpawnUncancellable(rt, "stubborn", func(a *Actor) (Void, *Error) {
		if err := a.Sleep(0.01); err != nil {
			return Void{}, err
		}
		finished = true
		rt.Stop()
		return Void{}, nil
	})

	f.Cancel()
	rt.Run()

	if !finished {
		t.Error("uncancellable actor did not run to termination")
	}
}

// TestActor_NestedActors verifies actor composition
// Given: A parent actor waiting on a chain of two children
// When: The innermost delay resolves
// Then: Values propagate out through both return futures
func TestActor_NestedActors(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	inner := func() Future[int] {
		return Spawn(rt, "inner", func(a *Actor) (int, *Error) {
			if err := a.Sleep(0.01); err != nil {
				return 0, err
			}
			return 21, nil
		})
	}
	outer := func() Future[int] {
		return Spawn(rt, "outer", func(a *Actor) (int, *Error) {
			v, err := Wait(a, inner())
			if err != nil {
				return 0, err
			}
			return v * 2, nil
		})
	}

	var got int
	Spawn(rt, "parent", func(a *Actor) (Void, *Error) {
		v, err := Wait(a, outer())
		if err != nil {
			return Void{}, err
		}
		got = v
		rt.Stop()
		return Void{}, nil
	})
	rt.Run()

	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}
