package core

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// timerEntry is a task scheduled for a future loop turn, ordered by
// (deadline, sequence) so that two timers with equal deadlines fire in the
// order they were scheduled.
type timerEntry struct {
	at       float64
	seq      uint64
	task     Task
	priority TaskPriority
	index    int // heap bookkeeping
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	n := len(*h)
	item := x.(*timerEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *timerHeap) peek() *timerEntry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// EventLoop is the cooperative single-threaded scheduler: it owns a timer
// heap and one FIFO ready queue per priority class, and drives every cell
// resolution and actor resumption on a single goroutine (the network
// goroutine).
//
// All loop methods except PostExternal and StopExternal must be called from
// the network goroutine, i.e. from inside a task or actor the loop itself is
// running, or before Run is entered.
type EventLoop struct {
	clock *Clock

	timers timerHeap
	ready  [numPriorities]taskFIFO

	// external is the reactor event: cross-thread posts (thread pool results,
	// trace barriers) land here and are moved onto the ready queues by the
	// loop. Sending also wakes an idle loop.
	external chan Task

	timerSeq      uint64
	stopRequested bool
	running       bool

	stats loopCounters
}

// loopCounters are written by the network goroutine and read by snapshot
// pollers on other goroutines, hence the atomics.
type loopCounters struct {
	turns          atomic.Uint64
	tasksExecuted  atomic.Uint64
	timersFired    atomic.Uint64
	readyDepth     [numPriorities]atomic.Int64
	timersPending  atomic.Int64
	externalQueued atomic.Int64
}

func newEventLoop(clock *Clock, externalQueueSize int) *EventLoop {
	if externalQueueSize <= 0 {
		externalQueueSize = 1024
	}
	l := &EventLoop{
		clock:    clock,
		external: make(chan Task, externalQueueSize),
	}
	heap.Init(&l.timers)
	return l
}

// Post enqueues a ready task at the given priority. FIFO within a priority.
func (l *EventLoop) Post(t Task, pri TaskPriority) {
	l.ready[pri].push(t)
	l.stats.readyDepth[pri].Add(1)
}

// PostExternal enqueues a task from another goroutine, waking the loop if it
// is idle. The task runs on the network goroutine in an unspecified later
// turn, always after the currently executing task completes.
func (l *EventLoop) PostExternal(t Task) {
	l.stats.externalQueued.Add(1)
	l.external <- t
}

// PostTimer schedules t to run at the absolute loop time at (seconds).
func (l *EventLoop) PostTimer(t Task, at float64, pri TaskPriority) {
	l.timerSeq++
	heap.Push(&l.timers, &timerEntry{at: at, seq: l.timerSeq, task: t, priority: pri})
	l.stats.timersPending.Add(1)
}

// Stop requests loop exit. The loop finishes the currently executing task and
// returns from Run without draining the remaining queues.
func (l *EventLoop) Stop() { l.stopRequested = true }

// StopExternal requests loop exit from another goroutine.
func (l *EventLoop) StopExternal() {
	l.PostExternal(func() { l.Stop() })
}

// Run drives the loop until Stop is called: each turn advances the clock
// cache, moves due timers to their ready queues, drains the ready queues high
// to low with per-class budgets, and then blocks on the reactor (external
// channel or next timer deadline) when there is nothing to do.
func (l *EventLoop) Run() {
	if l.running {
		panic("flux: EventLoop.Run called re-entrantly")
	}
	l.running = true
	defer func() { l.running = false }()

	idleTimer := time.NewTimer(time.Hour)
	if !idleTimer.Stop() {
		<-idleTimer.C
	}

	for {
		l.stats.turns.Add(1)
		l.clock.advance()
		l.expireTimers()
		l.drainExternal()

		if l.drainReady() {
			return
		}
		if l.stopRequested {
			return
		}

		// Anything newly ready (e.g. posted by the last task of a budget)
		// means another turn without sleeping.
		if l.anyReady() {
			continue
		}

		// Idle: wait for an external post or the next timer deadline.
		var timerC <-chan time.Time
		if next := l.timers.peek(); next != nil {
			wait := time.Duration((next.at - l.clock.Timer()) * float64(time.Second))
			if wait < 0 {
				wait = 0
			}
			idleTimer.Reset(wait)
			timerC = idleTimer.C
		}

		select {
		case t := <-l.external:
			l.stats.externalQueued.Add(-1)
			l.Post(t, PriorityDefault)
		case <-timerC:
			timerC = nil
		}
		if timerC != nil && !idleTimer.Stop() {
			<-idleTimer.C
		}
	}
}

// expireTimers moves every timer with deadline <= now onto its ready queue.
func (l *EventLoop) expireTimers() {
	now := l.clock.Now()
	for {
		next := l.timers.peek()
		if next == nil || next.at > now {
			return
		}
		heap.Pop(&l.timers)
		l.stats.timersPending.Add(-1)
		l.stats.timersFired.Add(1)
		l.Post(next.task, next.priority)
	}
}

// drainExternal moves queued cross-thread posts onto the default ready queue
// without blocking.
func (l *EventLoop) drainExternal() {
	for {
		select {
		case t := <-l.external:
			l.stats.externalQueued.Add(-1)
			l.Post(t, PriorityDefault)
		default:
			return
		}
	}
}

// drainReady runs up to one budget of tasks per priority class, high to low.
// Returns true if a task requested stop.
func (l *EventLoop) drainReady() bool {
	for pri := numPriorities - 1; pri >= 0; pri-- {
		budget := taskBudget[pri]
		for budget > 0 {
			t, ok := l.ready[pri].pop()
			if !ok {
				break
			}
			l.stats.readyDepth[pri].Add(-1)
			budget--
			l.runTask(t)
			if l.stopRequested {
				return true
			}
		}
	}
	return false
}

func (l *EventLoop) runTask(t Task) {
	defer l.stats.tasksExecuted.Add(1)
	t()
}

func (l *EventLoop) anyReady() bool {
	for pri := range l.ready {
		if l.ready[pri].len() > 0 {
			return true
		}
	}
	return false
}

// LoopStats is a point-in-time snapshot of scheduler counters, safe to read
// from any goroutine.
type LoopStats struct {
	Turns         uint64
	TasksExecuted uint64
	TimersFired   uint64
	TimersPending int64
	ReadyDepth    [int(numPriorities)]int64
	ExternalDepth int64
}

// Stats returns a snapshot of the loop's counters.
func (l *EventLoop) Stats() LoopStats {
	s := LoopStats{
		Turns:         l.stats.turns.Load(),
		TasksExecuted: l.stats.tasksExecuted.Load(),
		TimersFired:   l.stats.timersFired.Load(),
		TimersPending: l.stats.timersPending.Load(),
		ExternalDepth: l.stats.externalQueued.Load(),
	}
	for i := range s.ReadyDepth {
		s.ReadyDepth[i] = l.stats.readyDepth[i].Load()
	}
	return s
}
