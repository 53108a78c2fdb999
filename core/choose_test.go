package core

import (
	"testing"
	"time"
)

// TestChoose_FirstArmWins verifies basic disjunction
// Given: A choose over a short delay and a long delay
// When: The short delay fires
// Then: Its body runs and the other arm's body never runs
func TestChoose_FirstArmWins(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	var won string
	Spawn(rt, "chooser", func(a *Actor) (Void, *Error) {
		err := Choose(a,
			When(rt.Delay(0.01), func(Void) *Error {
				won = "short"
				return nil
			}),
			When(rt.Delay(0.2), func(Void) *Error {
				won = "long"
				return nil
			}),
		)
		rt.Stop()
		return Void{}, err
	})
	rt.Run()

	if won != "short" {
		t.Errorf("winner = %q, want short", won)
	}
}

// TestChoose_LoserSubscriptionCancelled verifies losing-arm cleanup
// Given: A choose between a delay and a promise-backed future
// When: The delay wins
// Then: The promise's later resolution does not re-enter the choose
func TestChoose_LoserSubscriptionCancelled(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	p := NewPromise[int]()

	fires := 0
	Spawn(rt, "chooser", func(a *Actor) (Void, *Error) {
		err := Choose(a,
			When(rt.Delay(0.01), func(Void) *Error {
				fires++
				return nil
			}),
			When(p.GetFuture(), func(int) *Error {
				fires++
				return nil
			}),
		)
		rt.Stop()
		return Void{}, err
	})
	rt.Run()

	p.Send(7)

	if fires != 1 {
		t.Errorf("fired %d arms, want 1", fires)
	}
}

// TestChoose_ErrorSelectsArm verifies error propagation through choose
// Given: An arm whose future resolves with an error
// When: That arm fires first
// Then: Choose returns the error and the arm body never runs
func TestChoose_ErrorSelectsArm(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	raise := Spawn(rt, "raise", func(a *Actor) (int, *Error) {
		if err := a.Sleep(0.01); err != nil {
			return 0, err
		}
		return 0, ErrValueTooLarge()
	})

	bodyRan := false
	var got *Error
	Spawn(rt, "chooser", func(a *Actor) (Void, *Error) {
		got = Choose(a,
			When(raise, func(int) *Error {
				bodyRan = true
				return nil
			}),
			When(rt.Delay(1.0), func(Void) *Error { return nil }),
		)
		rt.Stop()
		return Void{}, nil
	})
	rt.Run()

	if got == nil || got.Kind() != KindValueTooLarge {
		t.Errorf("choose returned %v, want value_too_large", got)
	}
	if bodyRan {
		t.Error("body of the erroring arm must not run")
	}
}

// TestChoose_UnwaitedErrorIsNotObserved verifies the except scenario
// Given: An actor holding an erroring future without waiting on it, choosing
// only on a 0.1s delay
// When: The delay fires after the error resolved
// Then: The actor returns normally; the error is never observed
func TestChoose_UnwaitedErrorIsNotObserved(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	raise := Spawn(rt, "raise", func(a *Actor) (int, *Error) {
		if err := a.Sleep(0.01); err != nil {
			return 0, err
		}
		return 0, ErrValueTooLarge()
	})
	_ = raise // held, never waited

	var got *Error
	finished := false
	Spawn(rt, "except_test", func(a *Actor) (Void, *Error) {
		got = Choose(a,
			When(rt.Delay(0.1), func(Void) *Error {
				finished = true
				return nil
			}),
		)
		rt.Stop()
		return Void{}, got
	})
	rt.Run()

	if got != nil {
		t.Errorf("actor observed %v, want no error", got)
	}
	if !finished {
		t.Error("delay arm did not fire")
	}
}

// TestChoose_ReadyArmTieBreak verifies lexical tie-breaking
// Given: Two arms that are both ready at subscription time
// When: The choose resolves
// Then: The first arm in argument order is selected
func TestChoose_ReadyArmTieBreak(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	var won string
	Spawn(rt, "chooser", func(a *Actor) (Void, *Error) {
		err := Choose(a,
			When(Ready(1), func(int) *Error {
				won = "first"
				return nil
			}),
			When(Ready(2), func(int) *Error {
				won = "second"
				return nil
			}),
		)
		rt.Stop()
		return Void{}, err
	})
	rt.Run()

	if won != "first" {
		t.Errorf("winner = %q, want first (lexical order)", won)
	}
}

// TestChoose_LoopFairness verifies the infinite-loop scenario
// Given: A loop choosing between a 0.01s timeout held across iterations and
// an always-ready arm
// When: The loop spins
// Then: It terminates after roughly the timeout with a positive count; the
// ready arm does not starve the timer arm
func TestChoose_LoopFairness(t *testing.T) {
	start := time.Now()
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	count := 0
	Spawn(rt, "infinite_loop", func(a *Actor) (Void, *Error) {
		timeout := rt.Delay(0.01)
		onChange := Ready(Void{})

		done := false
		for !done {
			err := Choose(a,
				When(timeout, func(Void) *Error {
					done = true
					return nil
				}),
				When(onChange, func(Void) *Error {
					count++
					return nil
				}),
			)
			if err != nil {
				return Void{}, err
			}
		}
		rt.Stop()
		return Void{}, nil
	})
	rt.Run()

	if count == 0 {
		t.Error("ready arm never ran")
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("loop ran for %v, want roughly the 10ms timeout", elapsed)
	}
}

// TestChoose_StreamArm verifies stream arms
// Given: A choose over a stream and a long delay
// When: The producer sends a value
// Then: The stream arm fires with that value
func TestChoose_StreamArm(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})
	ps := NewPromiseStream[string]()
	s := ps.GetFuture()

	var got string
	Spawn(rt, "chooser", func(a *Actor) (Void, *Error) {
		err := Choose(a,
			WhenStream(s, func(v string) *Error {
				got = v
				return nil
			}),
			When(rt.Delay(1.0), func(Void) *Error { return nil }),
		)
		rt.Stop()
		return Void{}, err
	})

	rt.Loop().Post(func() { ps.Send("ping") }, PriorityDefault)
	rt.Run()

	if got != "ping" {
		t.Errorf("stream arm got %q, want ping", got)
	}
}

// TestChoose_CancellationDuringChoose verifies actor cancellation mid-choose
// Given: An actor suspended in a choose over two pending futures
// When: Its output future is cancelled
// Then: Choose returns actor_cancelled
func TestChoose_CancellationDuringChoose(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{Seed: 1})

	var got *Error
	f := Spawn(rt, "chooser", func(a *Actor) (Void, *Error) {
		got = Choose(a,
			When(Never[int](), func(int) *Error { return nil }),
			When(Never[Void](), func(Void) *Error { return nil }),
		)
		return Void{}, got
	})

	f.Cancel()

	if got == nil || got.Kind() != KindActorCancelled {
		t.Errorf("choose returned %v, want actor_cancelled", got)
	}
}
