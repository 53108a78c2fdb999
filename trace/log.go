package trace

import (
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/quarkdb/flux/core"
)

// Options configures a Log. Zero values get defaults.
type Options struct {
	// Directory receives the trace files.
	Directory string

	// ProcessName prefixes the trace file names (default "trace"). A random
	// salt is appended so concurrent processes never collide on a base name.
	ProcessName string

	// Format selects the formatter: "xml" (default) or "json".
	Format string

	// RollSize rolls the output to the next file index once the current file
	// exceeds this many bytes (default 10 MiB).
	RollSize int64

	// MaxLogsSize prunes the oldest files of this base once their total size
	// exceeds this many bytes (default 100 MiB).
	MaxLogsSize int64

	// FlushIntervalSeconds is the cadence of the periodic flush actor
	// (default 0.25).
	FlushIntervalSeconds float64

	// PreopenBudget bounds the bytes buffered before Open (default 1 MiB).
	// Overflowing events are counted and reported by the TraceOpened event.
	PreopenBudget int
}

const flushThresholdBytes = 64 << 10

const maxSuppressionTypes = 1024

type suppressionInfo struct {
	endTime float64
	count   int64
}

// Log is the diagnostic pipeline: the network goroutine appends events to a
// buffer; a dedicated pool worker formats and durably writes them. Events
// posted before Open are buffered up to a byte budget.
type Log struct {
	rt *core.Runtime

	// mu guards the event buffer. The network goroutine is the sole
	// appender; flushes swap the buffer out under the lock.
	mu           sync.Mutex
	pending      []Fields
	pendingBytes int

	opened         bool
	closed         bool
	preopenDropped int64
	preopenBudget  int
	preopenWaiters []core.Promise[core.Void]

	pool   *core.ThreadPool
	writer *fileWriter

	suppression map[string]*suppressionInfo

	latestMu sync.Mutex
	latest   map[string]Fields
}

// NewLog creates a closed log bound to rt. Events logged before Open are
// buffered.
func NewLog(rt *core.Runtime) *Log {
	return &Log{
		rt:            rt,
		preopenBudget: 1 << 20,
		suppression:   make(map[string]*suppressionInfo),
		latest:        make(map[string]Fields),
	}
}

// Open starts the writer thread and begins draining the buffer. Must be
// called on the network goroutine with the loop available for actors.
func (l *Log) Open(opts Options) error {
	if l.opened {
		return fmt.Errorf("trace: log already open")
	}
	formatter, err := NewFormatter(opts.Format)
	if err != nil {
		return err
	}
	name := opts.ProcessName
	if name == "" {
		name = "trace"
	}
	salt := gonanoid.MustGenerate("0123456789abcdefghijklmnopqrstuvwxyz", 8)
	base := fmt.Sprintf("%s.%s", name, salt)

	rollSize := opts.RollSize
	if rollSize == 0 {
		rollSize = 10 << 20
	}
	maxLogsSize := opts.MaxLogsSize
	if maxLogsSize == 0 {
		maxLogsSize = 100 << 20
	}
	if opts.PreopenBudget > 0 {
		l.preopenBudget = opts.PreopenBudget
	}
	interval := opts.FlushIntervalSeconds
	if interval <= 0 {
		interval = 0.25
	}

	l.writer = newFileWriter(opts.Directory, base, formatter, rollSize, maxLogsSize)
	l.pool = core.NewThreadPool(l.rt)
	l.pool.AddThread(l.writer)
	l.opened = true

	openedEv := New("TraceOpened").Detail("FileName", base)
	if dropped := l.preopenDropped; dropped > 0 {
		openedEv.Detail("PreopenDroppedEvents", dropped)
	}
	openedEv.Log(l)

	first := l.flushNow()
	for _, p := range l.preopenWaiters {
		waiter := p
		first.Subscribe(func(core.Void, *core.Error) {
			waiter.Send(core.Void{})
			waiter.Drop()
		})
	}
	l.preopenWaiters = nil

	core.SpawnUncancellable(l.rt, "trace-flusher", func(a *core.Actor) (core.Void, *core.Error) {
		for !l.closed {
			if err := a.Sleep(interval); err != nil {
				return core.Void{}, nil
			}
			if l.closed {
				break
			}
			l.flushNow()
		}
		return core.Void{}, nil
	})
	return nil
}

// append runs on the network goroutine; it applies the cancellation and
// fault-injection policies, suppression and the latest cache, then buffers
// the formatted fields. Returns false when the event was dropped.
func (l *Log) append(e *Event) bool {
	if l.closed {
		return false
	}
	severity := e.severity
	if e.err != nil {
		if e.err.Kind() == core.KindActorCancelled && !e.allowCancelled {
			return false
		}
		if severity == SevError && e.err.InjectedFault() {
			severity = SevWarnAlways
		}
	}

	var suppressedCount int64
	if e.suppressFor > 0 {
		drop, count := l.checkSuppression(e.typ, e.suppressFor)
		if drop {
			return false
		}
		suppressedCount = count
	}

	fields := make(Fields, 0, len(e.fields)+5)
	fields = append(fields,
		Field{Key: "Severity", Value: severity.String()},
		Field{Key: "Time", Value: fmt.Sprintf("%.6f", l.rt.Now())},
		Field{Key: "Type", Value: e.typ},
	)
	fields = append(fields, e.fields...)
	if e.err != nil {
		fields = append(fields,
			Field{Key: "Error", Value: e.err.Name()},
			Field{Key: "ErrorCode", Value: fmt.Sprint(int(e.err.Kind()))},
			Field{Key: "ErrorDescription", Value: e.err.Description()},
		)
	}
	if suppressedCount > 0 {
		fields = append(fields, Field{Key: "SuppressedEventCount", Value: fmt.Sprint(suppressedCount)})
	}

	if e.trackLatest {
		l.latestMu.Lock()
		l.latest[e.typ] = fields
		l.latestMu.Unlock()
	}

	size := 0
	for _, f := range fields {
		size += len(f.Key) + len(f.Value) + 4
	}

	l.mu.Lock()
	if !l.opened && l.pendingBytes+size > l.preopenBudget {
		l.mu.Unlock()
		l.preopenDropped++
		return false
	}
	l.pending = append(l.pending, fields)
	l.pendingBytes += size
	overflow := l.opened && l.pendingBytes > flushThresholdBytes
	l.mu.Unlock()

	if overflow {
		l.flushNow()
	}
	return true
}

// checkSuppression returns drop=true when an event of this type fired within
// its suppression window; otherwise it opens a new window and returns how
// many duplicates the previous window swallowed.
func (l *Log) checkSuppression(typ string, window float64) (drop bool, suppressed int64) {
	if len(l.suppression) >= maxSuppressionTypes {
		l.suppression = make(map[string]*suppressionInfo)
	}
	now := l.rt.Now()
	info := l.suppression[typ]
	if info == nil {
		info = &suppressionInfo{}
		l.suppression[typ] = info
	}
	if now < info.endTime {
		info.count++
		return true, 0
	}
	suppressed = info.count
	info.count = 0
	info.endTime = now + window
	return false, suppressed
}

// flushNow swaps the buffer out and posts it to the writer thread. The
// returned future resolves on the network goroutine once the batch is
// durably written.
func (l *Log) flushNow() core.Future[core.Void] {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.pendingBytes = 0
	l.mu.Unlock()

	w := l.writer
	return core.Offload(l.pool, func(core.Receiver) (core.Void, *core.Error) {
		if len(batch) > 0 {
			if err := w.writeBatch(batch); err != nil {
				return core.Void{}, err
			}
		}
		return core.Void{}, nil
	})
}

// Flush returns a barrier future that resolves once every event posted
// before the call is durably written. Before Open the barrier resolves after
// the first post-open flush completes.
func (l *Log) Flush() core.Future[core.Void] {
	if !l.opened {
		p := core.NewPromise[core.Void]()
		f := p.GetFuture()
		l.preopenWaiters = append(l.preopenWaiters, p)
		return f
	}
	return l.flushNow()
}

// Close flushes the buffer, stops the writer thread and resolves the
// returned future once the worker has joined.
func (l *Log) Close() core.Future[core.Void] {
	if !l.opened || l.closed {
		l.closed = true
		return core.Ready(core.Void{})
	}
	l.closed = true
	l.flushNow()
	return l.pool.Stop()
}

// Latest returns the cached latest event of the given type, if any. Safe to
// call from any goroutine (crash reporters run off the network goroutine).
func (l *Log) Latest(typ string) (Fields, bool) {
	l.latestMu.Lock()
	defer l.latestMu.Unlock()
	f, ok := l.latest[typ]
	return f, ok
}

// LatestAll returns a copy of the latest-event cache.
func (l *Log) LatestAll() []Fields {
	l.latestMu.Lock()
	defer l.latestMu.Unlock()
	out := make([]Fields, 0, len(l.latest))
	for _, f := range l.latest {
		out = append(out, f)
	}
	return out
}
