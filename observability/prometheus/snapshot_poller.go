package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-uthread/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
// *core.Scheduler satisfies it and may be polled from any goroutine.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// InterruptSource reports how many interrupts have been raised.
// *interrupt.Gate satisfies it.
type InterruptSource interface {
	Raised() uint64
}

// SnapshotPoller periodically exports scheduler Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	interruptsMu sync.RWMutex
	interrupts   map[string]InterruptSource

	live     *prom.GaugeVec
	ready    *prom.GaugeVec
	blocked  *prom.GaugeVec
	capacity *prom.GaugeVec
	current  *prom.GaugeVec
	switches *prom.GaugeVec
	closed   *prom.GaugeVec

	interruptsRaised *prom.GaugeVec

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

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "uthread",
			Name:      name,
			Help:      help,
		}, []string{"scheduler"})
	}

	p := &SnapshotPoller{
		interval:         interval,
		schedulers:       make(map[string]SchedulerSnapshotProvider),
		interrupts:       make(map[string]InterruptSource),
		live:             gauge("threads_live", "Threads occupying an identifier slot."),
		ready:            gauge("threads_ready", "Threads in the ready queue."),
		blocked:          gauge("threads_blocked", "Threads blocked on a wait queue."),
		capacity:         gauge("threads_capacity", "Thread table capacity."),
		current:          gauge("current_thread", "Identifier of the running thread (-3 when none)."),
		switches:         gauge("switches_snapshot", "Context switch count snapshot."),
		closed:           gauge("scheduler_closed", "Scheduler closed state (1=closed, 0=open)."),
		interruptsRaised: gauge("interrupts_raised", "Interrupts raised by the preemption source."),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.live, &p.ready, &p.blocked, &p.capacity,
		&p.current, &p.switches, &p.closed, &p.interruptsRaised,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}

	return p, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// AddInterruptSource adds or replaces an interrupt source, labeled with the
// name of the scheduler it preempts.
func (p *SnapshotPoller) AddInterruptSource(name string, source InterruptSource) {
	if p == nil || source == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.interruptsMu.Lock()
	p.interrupts[name] = source
	p.interruptsMu.Unlock()
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

	go p.loop(pollCtx, p.done)
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

// CollectOnce takes one snapshot of every provider.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil {
		return
	}
	p.collectOnce()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

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
	p.schedulersMu.RLock()
	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.live.WithLabelValues(name).Set(float64(stats.Live))
		p.ready.WithLabelValues(name).Set(float64(stats.Ready))
		p.blocked.WithLabelValues(name).Set(float64(stats.Blocked))
		p.capacity.WithLabelValues(name).Set(float64(stats.Capacity))
		p.current.WithLabelValues(name).Set(float64(stats.Current))
		p.switches.WithLabelValues(name).Set(float64(stats.Switches))
		if stats.Closed {
			p.closed.WithLabelValues(name).Set(1)
		} else {
			p.closed.WithLabelValues(name).Set(0)
		}
	}
	p.schedulersMu.RUnlock()

	p.interruptsMu.RLock()
	for name, source := range p.interrupts {
		p.interruptsRaised.WithLabelValues(name).Set(float64(source.Raised()))
	}
	p.interruptsMu.RUnlock()
}
