package interrupt

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the preemption period used when none is given.
const DefaultInterval = 10 * time.Millisecond

// Timer periodically raises an interrupt on a Gate.
type Timer struct {
	gate     *Gate
	interval time.Duration

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTimer creates a stopped timer for gate.
func NewTimer(gate *Gate, interval time.Duration) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Timer{gate: gate, interval: interval}
}

// Interval returns the period between interrupts.
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Start begins raising interrupts; repeated calls are no-ops.
func (t *Timer) Start(ctx context.Context) {
	if t == nil || t.gate == nil {
		return
	}

	t.stateMu.Lock()
	if t.running {
		t.stateMu.Unlock()
		return
	}
	tickCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true
	t.stateMu.Unlock()

	go t.loop(tickCtx)
}

// Stop stops the timer; repeated calls are safe.
func (t *Timer) Stop() {
	if t == nil {
		return
	}

	t.stateMu.Lock()
	if !t.running {
		t.stateMu.Unlock()
		return
	}
	cancel := t.cancel
	done := t.done
	t.stateMu.Unlock()

	cancel()
	<-done

	t.stateMu.Lock()
	t.running = false
	t.cancel = nil
	t.done = nil
	t.stateMu.Unlock()
}

// IsRunning reports whether the timer is raising interrupts.
func (t *Timer) IsRunning() bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.running
}

func (t *Timer) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.gate.Raise()
		}
	}
}
