// Package flux is the asynchronous programming foundation of a distributed
// database: a promise/future value-passing primitive, a cooperative
// single-threaded event loop, an actor continuation model, a thread-pool
// offload mechanism, and the diagnostic trace pipeline and packet-queue
// primitives built on top of them.
//
// # Quick Start
//
// Create a runtime, spawn an actor, run the loop:
//
//	rt := flux.NewRuntime(flux.RuntimeOptions{})
//	f := flux.Spawn(rt, "hello", func(a *flux.Actor) (string, *flux.Error) {
//		if err := a.Sleep(0.1); err != nil {
//			return "", err
//		}
//		a.Runtime().Stop()
//		return "Hello, World!", nil
//	})
//	rt.Run()
//	fmt.Println(f.MustGet())
//
// Everything promise/future/actor related executes on a single goroutine (the
// network goroutine): the loop and the actors hand a run baton back and
// forth, so user code between suspension points never races another actor.
// Blocking work is offloaded to a ThreadPool, whose results come back to the
// network goroutine through thread-safe cells.
//
// The root package re-exports the core surface; see core for the runtime,
// trace for the diagnostic pipeline, packet for the network buffer queues,
// alloc for the size-classed buffer pool, and network for address literals.
package flux
