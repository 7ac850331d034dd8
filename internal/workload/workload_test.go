package workload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Swind/go-uthread/core"
	"github.com/Swind/go-uthread/interrupt"
)

func newScheduler(t *testing.T, cfg *core.SchedulerConfig) *core.Scheduler {
	t.Helper()
	if cfg == nil {
		cfg = core.DefaultSchedulerConfig()
	}
	cfg.ExitFunc = func(code int) { t.Errorf("unexpected process exit with code %d", code) }
	s := core.NewScheduler(cfg)
	t.Cleanup(func() { s.Shutdown() })
	return s
}

// TestRoundRobin_CyclicOrder verifies the round-robin demo
// Given: Four workers yielding three rounds each
// When: RoundRobin runs
// Then: The observed order cycles through the workers in creation order
func TestRoundRobin_CyclicOrder(t *testing.T) {
	// Arrange
	s := newScheduler(t, nil)

	// Act
	order, err := RoundRobin(s, 4, 3)

	// Assert
	if err != nil {
		t.Fatalf("RoundRobin() error = %v", err)
	}
	if len(order) != 12 {
		t.Fatalf("len(order) = %d, want 12", len(order))
	}
	for i, id := range order {
		if want := core.Tid(i%4 + 1); id != want {
			t.Errorf("order[%d] = %d, want %d", i, id, want)
		}
	}
}

// TestRoundRobin_TableFull verifies that creation failures surface
// Given: A scheduler with room for two created threads
// When: RoundRobin asks for three
// Then: It fails with ErrNoMoreIDs
func TestRoundRobin_TableFull(t *testing.T) {
	cfg := core.DefaultSchedulerConfig()
	cfg.MaxThreads = 3
	s := newScheduler(t, cfg)

	_, err := RoundRobin(s, 3, 1)

	if !errors.Is(err, core.ErrNoMoreIDs) {
		t.Errorf("RoundRobin() error = %v, want ErrNoMoreIDs", err)
	}
}

// TestProducerConsumer_DeliversEverything verifies the bounded buffer demo
// Given: Three producers of twenty items, two consumers and a buffer of four
// When: ProducerConsumer runs
// Then: Every item is consumed once and per-producer order is preserved
func TestProducerConsumer_DeliversEverything(t *testing.T) {
	// Arrange
	s := newScheduler(t, nil)

	// Act
	res, err := ProducerConsumer(s, 3, 2, 20, 4)

	// Assert
	if err != nil {
		t.Fatalf("ProducerConsumer() error = %v", err)
	}
	if res.Produced != 60 || res.Consumed != 60 {
		t.Errorf("produced %d, consumed %d, want 60 each", res.Produced, res.Consumed)
	}
	if !res.Ordered {
		t.Error("items from one producer arrived out of order")
	}
	total := 0
	for _, n := range res.PerConsumer {
		total += n
	}
	if total != 60 {
		t.Errorf("per-consumer total = %d, want 60", total)
	}
	if live := s.Stats().Live; live != 1 {
		t.Errorf("Stats().Live = %d, want 1", live)
	}
}

// TestProducerConsumer_RequiresBothSides verifies argument validation
// Given: No consumers
// When: ProducerConsumer runs
// Then: It fails with ErrInvalid before creating anything
func TestProducerConsumer_RequiresBothSides(t *testing.T) {
	s := newScheduler(t, nil)

	_, err := ProducerConsumer(s, 1, 0, 5, 2)

	if !errors.Is(err, core.ErrInvalid) {
		t.Errorf("ProducerConsumer() error = %v, want ErrInvalid", err)
	}
	if created := s.Stats().Created; created != 0 {
		t.Errorf("Stats().Created = %d, want 0", created)
	}
}

// TestSpin_PreemptedByTimer verifies timer-driven preemption
// Given: Two spinners and an interrupt timer on the scheduler's gate
// When: Spin runs long enough for several ticks
// Then: At least one spinner is preempted and switches are recorded as preempt
func TestSpin_PreemptedByTimer(t *testing.T) {
	// Arrange
	gate := interrupt.NewGate(true)
	cfg := core.DefaultSchedulerConfig()
	cfg.Gate = gate
	s := newScheduler(t, cfg)

	timer := interrupt.NewTimer(gate, 2*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timer.Start(ctx)
	defer timer.Stop()

	// Act
	preempted, err := Spin(s, 2, 100*time.Millisecond)

	// Assert
	if err != nil {
		t.Fatalf("Spin() error = %v", err)
	}
	total := 0
	for _, n := range preempted {
		total += n
	}
	if total == 0 {
		t.Fatal("no spinner was preempted")
	}

	found := false
	for _, rec := range s.RecentSwitches(0) {
		if rec.Reason == core.SwitchPreempt {
			found = true
			break
		}
	}
	if !found {
		t.Error("no preempt switch in history")
	}
}
