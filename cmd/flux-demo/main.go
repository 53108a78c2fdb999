// flux-demo exercises the demonstration actors of the runtime: each
// subcommand builds an isolated runtime, spawns the demo actor and drives the
// event loop to completion.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/quarkdb/flux/core"
)

func main() {
	app := &cli.App{
		Name:  "flux-demo",
		Usage: "demonstration harness for the flux runtime",
		Commands: []*cli.Command{
			helloCommand(),
			calcCommand(),
			loopCommand(),
			delayCommand(),
			brokenCommand(),
			exceptCommand(),
			voidCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func helloCommand() *cli.Command {
	return &cli.Command{
		Name:  "hello",
		Usage: "send a value through a promise/future pair",
		Action: func(*cli.Context) error {
			p := core.NewPromise[string]()
			f := p.GetFuture()
			fmt.Printf("Before send: promise isSet = %v, future isReady = %v\n", p.IsSet(), f.IsReady())
			p.Send("Hello, World!")
			fmt.Printf("After send: promise isSet = %v, future isReady = %v\n", p.IsSet(), f.IsReady())
			fmt.Println(f.MustGet())
			return nil
		},
	}
}

// asyncAdd waits for f and returns its value plus offset.
func asyncAdd(rt *core.Runtime, f core.Future[int], offset int) core.Future[int] {
	return core.Spawn(rt, "async_add", func(a *core.Actor) (int, *core.Error) {
		value, err := core.Wait(a, f)
		if err != nil {
			return 0, err
		}
		return value + offset, nil
	})
}

func calcCommand() *cli.Command {
	return &cli.Command{
		Name:  "calc",
		Usage: "chain a computation onto an unresolved future",
		Action: func(*cli.Context) error {
			rt := core.NewRuntime(core.RuntimeOptions{})
			p := core.NewPromise[int]()
			result := asyncAdd(rt, p.GetFuture(), 10)
			fmt.Printf("Before send: result isReady = %v\n", result.IsReady())
			p.Send(5)
			fmt.Printf("After send: result = %d\n", result.MustGet())
			return nil
		},
	}
}

// infiniteLoop spins on an always-ready arm until the timeout arm wins.
func infiniteLoop(rt *core.Runtime) core.Future[core.Void] {
	return core.Spawn(rt, "infinite_loop", func(a *core.Actor) (core.Void, *core.Error) {
		timeout := rt.Delay(0.01)
		onChange := core.Ready(core.Void{})
		count := 0

		done := false
		for !done {
			err := core.Choose(a,
				core.When(timeout, func(core.Void) *core.Error {
					done = true
					return nil
				}),
				core.When(onChange, func(core.Void) *core.Error {
					count++
					if count%1000 == 0 {
						fmt.Printf("Loop count %d\n", count)
					}
					return nil
				}),
			)
			if err != nil {
				return core.Void{}, err
			}
		}
		fmt.Printf("loop returned after %d iterations.\n", count)
		return core.Void{}, nil
	})
}

func loopCommand() *cli.Command {
	return &cli.Command{
		Name:  "loop",
		Usage: "spin on a ready future without starving the timeout arm",
		Action: func(*cli.Context) error {
			rt := core.NewRuntime(core.RuntimeOptions{})
			core.Spawn(rt, "loop_test", func(a *core.Actor) (core.Void, *core.Error) {
				if _, err := core.Wait(a, infiniteLoop(rt)); err != nil {
					return core.Void{}, err
				}
				fmt.Println("loopTest done...")
				rt.Stop()
				return core.Void{}, nil
			})
			rt.Run()
			return nil
		},
	}
}

// delayFive selects between an inert registration arm and an always-ready
// change arm, then sleeps before returning.
func delayFive(rt *core.Runtime, seconds float64) core.Future[core.Void] {
	return core.Spawn(rt, "delay_five", func(a *core.Actor) (core.Void, *core.Error) {
		reg := core.Never[core.Void]()
		onChange := core.Ready(core.Void{})

		done := false
		for !done {
			err := core.Choose(a,
				core.When(reg, func(core.Void) *core.Error {
					done = true
					return nil
				}),
				core.When(onChange, func(core.Void) *core.Error {
					if err := a.Sleep(seconds); err != nil {
						return err
					}
					done = true
					return nil
				}),
			)
			if err != nil {
				return core.Void{}, err
			}
		}
		fmt.Println("delay_five returned.")
		return core.Void{}, nil
	})
}

func delayCommand() *cli.Command {
	return &cli.Command{
		Name:  "delay",
		Usage: "wait for a timer through a choose disjunction",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "seconds", Aliases: []string{"s"}, Value: 5.0, Usage: "delay before returning"},
		},
		Action: func(c *cli.Context) error {
			seconds := c.Float64("seconds")
			if seconds < 0 {
				return cli.Exit("seconds must be non-negative", 1)
			}
			rt := core.NewRuntime(core.RuntimeOptions{})
			core.Spawn(rt, "delay_test", func(a *core.Actor) (core.Void, *core.Error) {
				if _, err := core.Wait(a, delayFive(rt, seconds)); err != nil {
					return core.Void{}, err
				}
				fmt.Println("delayTest done...")
				rt.Stop()
				return core.Void{}, nil
			})
			rt.Run()
			return nil
		},
	}
}

// promiseBroken hands out a future for a local promise, then returns without
// ever sending: the promise is dropped after the return value resolves, so
// the waiter observes broken_promise.
func promiseBroken(rt *core.Runtime, out *core.Future[int]) core.Future[int] {
	return core.Spawn(rt, "promise_broken", func(a *core.Actor) (int, *core.Error) {
		p := core.NewPromise[int]()
		*out = p.GetFuture()
		a.Defer(p.Drop)
		if err := a.Sleep(0.1); err != nil {
			return 0, err
		}
		return 2, nil
	})
}

func brokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "broken",
		Usage: "observe a broken promise from an actor that never sends",
		Action: func(*cli.Context) error {
			rt := core.NewRuntime(core.RuntimeOptions{})
			core.Spawn(rt, "broken_test", func(a *core.Actor) (core.Void, *core.Error) {
				var s core.Future[int]
				f := promiseBroken(rt, &s)
				for {
					err := core.Choose(a,
						core.When(f, func(v int) *core.Error {
							fmt.Printf("Got value from function %d\n", v)
							f = core.Never[int]()
							return nil
						}),
						core.When(s, func(v int) *core.Error {
							fmt.Printf("Got value from promise %d\n", v)
							s = core.Never[int]()
							return nil
						}),
					)
					if err != nil {
						fmt.Printf("Error: %s\n", err.Name())
						break
					}
				}
				rt.Stop()
				return core.Void{}, nil
			})
			rt.Run()
			return nil
		},
	}
}

// raiseException sleeps briefly and then raises value_too_large.
func raiseException(rt *core.Runtime) core.Future[int] {
	return core.Spawn(rt, "raise_exception", func(a *core.Actor) (int, *core.Error) {
		if err := a.Sleep(0.1); err != nil {
			return 0, err
		}
		fmt.Println("Raising error in raiseException")
		return 0, core.ErrValueTooLarge()
	})
}

func exceptCommand() *cli.Command {
	return &cli.Command{
		Name:  "except",
		Usage: "an unwaited error arm is never observed",
		Action: func(*cli.Context) error {
			rt := core.NewRuntime(core.RuntimeOptions{})
			core.Spawn(rt, "except_test", func(a *core.Actor) (core.Void, *core.Error) {
				// The error future is held but never waited: its resolution
				// is not observed, so no error propagates from it.
				s := raiseException(rt)
				_ = s
				f := rt.Delay(1.0)
				done := false
				for !done {
					err := core.Choose(a,
						core.When(f, func(core.Void) *core.Error {
							done = true
							return nil
						}),
					)
					if err != nil {
						fmt.Printf("Caught error: %s\n", err.Name())
						break
					}
				}
				rt.Stop()
				return core.Void{}, nil
			})
			rt.Run()
			return nil
		},
	}
}

// dummy completes as soon as its always-ready arm is selected.
func dummy(rt *core.Runtime) core.Future[core.Void] {
	return core.Spawn(rt, "dummy", func(a *core.Actor) (core.Void, *core.Error) {
		onChange := core.Ready(core.Void{})
		err := core.Choose(a,
			core.When(onChange, func(core.Void) *core.Error {
				fmt.Println("dummy onChange changed")
				return nil
			}),
		)
		return core.Void{}, err
	})
}

func voidCommand() *cli.Command {
	return &cli.Command{
		Name:  "void",
		Usage: "chain void actors and cancel a never-resolving one",
		Action: func(*cli.Context) error {
			rt := core.NewRuntime(core.RuntimeOptions{})
			core.Spawn(rt, "foo", func(a *core.Actor) (core.Void, *core.Error) {
				if _, err := core.Wait(a, dummy(rt)); err != nil {
					return core.Void{}, err
				}
				fmt.Println("foo returned.")

				never := core.Spawn(rt, "never", func(a *core.Actor) (core.Void, *core.Error) {
					if _, err := core.Wait(a, core.Never[core.Void]()); err != nil {
						return core.Void{}, err
					}
					fmt.Println("never returned.") // not reached
					return core.Void{}, nil
				})
				never.Cancel()
				fmt.Println("never cancelled.")

				rt.Stop()
				return core.Void{}, nil
			})
			rt.Run()
			return nil
		},
	}
}
