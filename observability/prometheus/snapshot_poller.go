// Package prometheus exports runtime scheduler and thread-pool statistics as
// Prometheus collectors, populated by periodically polling the Stats()
// snapshots (which are safe to read from any goroutine).
package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/quarkdb/flux/core"
)

// LoopSnapshotProvider provides current event-loop stats snapshots.
type LoopSnapshotProvider interface {
	Stats() core.LoopStats
}

// PoolSnapshotProvider provides current thread-pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

var priorityLabels = [...]string{"low", "default", "high"}

// SnapshotPoller periodically exports loop/pool Stats() snapshots into
// Prometheus gauges; cumulative counts are set to their latest snapshot value.
type SnapshotPoller struct {
	interval time.Duration

	loopsMu sync.RWMutex
	loops   map[string]LoopSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	loopTurns         *prom.GaugeVec
	loopTasksExecuted *prom.GaugeVec
	loopTimersFired   *prom.GaugeVec
	loopTimersPending *prom.GaugeVec
	loopReadyDepth    *prom.GaugeVec
	loopExternalDepth *prom.GaugeVec

	poolWorkers *prom.GaugeVec
	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolPosted  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	loopTurns := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "loop_turns_total",
		Help:      "Event loop turn count snapshot.",
	}, []string{"loop"})
	loopTasksExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "loop_tasks_executed_total",
		Help:      "Tasks executed on the event loop.",
	}, []string{"loop"})
	loopTimersFired := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "loop_timers_fired_total",
		Help:      "Timer entries moved to the ready queues.",
	}, []string{"loop"})
	loopTimersPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "loop_timers_pending",
		Help:      "Timer entries currently scheduled.",
	}, []string{"loop"})
	loopReadyDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "loop_ready_depth",
		Help:      "Ready-queue depth per priority class.",
	}, []string{"loop", "priority"})
	loopExternalDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "loop_external_depth",
		Help:      "Cross-thread posts waiting to enter the loop.",
	}, []string{"loop"})

	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "pool_workers",
		Help:      "Worker count per thread pool.",
	}, []string{"pool"})
	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "pool_queued",
		Help:      "Queued actions per thread pool.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "pool_active",
		Help:      "Actions currently running per thread pool.",
	}, []string{"pool"})
	poolPosted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flux",
		Name:      "pool_posted_total",
		Help:      "Actions posted per thread pool.",
	}, []string{"pool"})

	var err error
	if loopTurns, err = registerCollector(reg, loopTurns); err != nil {
		return nil, err
	}
	if loopTasksExecuted, err = registerCollector(reg, loopTasksExecuted); err != nil {
		return nil, err
	}
	if loopTimersFired, err = registerCollector(reg, loopTimersFired); err != nil {
		return nil, err
	}
	if loopTimersPending, err = registerCollector(reg, loopTimersPending); err != nil {
		return nil, err
	}
	if loopReadyDepth, err = registerCollector(reg, loopReadyDepth); err != nil {
		return nil, err
	}
	if loopExternalDepth, err = registerCollector(reg, loopExternalDepth); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if poolPosted, err = registerCollector(reg, poolPosted); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:          interval,
		loops:             make(map[string]LoopSnapshotProvider),
		pools:             make(map[string]PoolSnapshotProvider),
		loopTurns:         loopTurns,
		loopTasksExecuted: loopTasksExecuted,
		loopTimersFired:   loopTimersFired,
		loopTimersPending: loopTimersPending,
		loopReadyDepth:    loopReadyDepth,
		loopExternalDepth: loopExternalDepth,
		poolWorkers:       poolWorkers,
		poolQueued:        poolQueued,
		poolActive:        poolActive,
		poolPosted:        poolPosted,
	}, nil
}

// AddLoop adds or replaces a loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "network")
	p.loopsMu.Lock()
	p.loops[name] = provider
	p.loopsMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.loopsMu.RLock()
	for name, provider := range p.loops {
		stats := provider.Stats()
		p.loopTurns.WithLabelValues(name).Set(float64(stats.Turns))
		p.loopTasksExecuted.WithLabelValues(name).Set(float64(stats.TasksExecuted))
		p.loopTimersFired.WithLabelValues(name).Set(float64(stats.TimersFired))
		p.loopTimersPending.WithLabelValues(name).Set(float64(stats.TimersPending))
		p.loopExternalDepth.WithLabelValues(name).Set(float64(stats.ExternalDepth))
		for pri, depth := range stats.ReadyDepth {
			p.loopReadyDepth.WithLabelValues(name, priorityLabels[pri]).Set(float64(depth))
		}
	}
	p.loopsMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolPosted.WithLabelValues(name).Set(float64(stats.Posted))
	}
	p.poolsMu.RUnlock()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}
	if are, ok := err.(prom.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	var zero T
	return zero, err
}
