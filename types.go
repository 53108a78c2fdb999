package flux

import "github.com/quarkdb/flux/core"

// Re-export commonly used types from the core package for convenience, so
// most programs only import flux.

// Runtime bundles the event loop with its time and random sources.
type Runtime = core.Runtime

// RuntimeOptions configures a Runtime.
type RuntimeOptions = core.RuntimeOptions

// Actor is a resumable computation interleaved with the event loop.
type Actor = core.Actor

// Error is the value type carried through promise/future resolution.
type Error = core.Error

// ErrorKind identifies a class of runtime error.
type ErrorKind = core.ErrorKind

// Void is the unit type for futures that carry no payload.
type Void = core.Void

// TaskPriority selects the ready queue a task is drained from.
type TaskPriority = core.TaskPriority

// Receiver is the object a thread-pool worker is permanently bound to.
type Receiver = core.Receiver

// ThreadPool offloads blocking work from the network goroutine.
type ThreadPool = core.ThreadPool

const (
	PriorityLow     = core.PriorityLow
	PriorityDefault = core.PriorityDefault
	PriorityHigh    = core.PriorityHigh
)

// NewRuntime creates a stopped runtime; call Run to start the loop.
func NewRuntime(opts RuntimeOptions) *Runtime { return core.NewRuntime(opts) }

// NewThreadPool creates an empty thread pool bound to rt.
func NewThreadPool(rt *Runtime) *ThreadPool { return core.NewThreadPool(rt) }

// Spawn starts an actor and returns the future for its result.
func Spawn[T any](rt *Runtime, name string, body func(*Actor) (T, *Error)) core.Future[T] {
	return core.Spawn(rt, name, body)
}

// SpawnUncancellable starts an actor that ignores external cancellation.
func SpawnUncancellable[T any](rt *Runtime, name string, body func(*Actor) (T, *Error)) core.Future[T] {
	return core.SpawnUncancellable(rt, name, body)
}

// Wait suspends the actor until f resolves.
func Wait[T any](a *Actor, f core.Future[T]) (T, *Error) { return core.Wait(a, f) }

// Choose suspends the actor until the first arm fires.
func Choose(a *Actor, arms ...core.Arm) *Error { return core.Choose(a, arms...) }

// When builds a Choose arm over a future.
func When[T any](f core.Future[T], body func(T) *Error) core.Arm { return core.When(f, body) }
