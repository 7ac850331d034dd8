// Package interrupt models the single preemption source of the thread library.
//
// A Gate is the "interrupts enabled" flag. Scheduler code closes the gate for
// the duration of every mutation of shared scheduler state and restores the
// previous state afterwards:
//
//	enabled := gate.Off()
//	defer gate.Set(enabled)
//
// Interrupts raised while the gate is closed stay pending and are delivered at
// the next checkpoint after the gate reopens.
package interrupt

import "sync/atomic"

// Gate enables, disables and queries one preemption source.
// It is safe for concurrent use; the Timer raises interrupts from its own goroutine.
type Gate struct {
	enabled atomic.Bool
	pending atomic.Bool
	raised  atomic.Uint64
}

// NewGate creates a gate in the given initial state.
func NewGate(enabled bool) *Gate {
	g := &Gate{}
	g.enabled.Store(enabled)
	return g
}

// Off closes the gate and returns whether it was open before.
func (g *Gate) Off() bool {
	return g.enabled.Swap(false)
}

// On opens the gate and returns whether it was open before.
func (g *Gate) On() bool {
	return g.enabled.Swap(true)
}

// Set puts the gate into the given state and returns the previous state.
func (g *Gate) Set(enabled bool) bool {
	return g.enabled.Swap(enabled)
}

// Enabled reports whether interrupts are currently deliverable.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// Raise marks an interrupt as pending.
func (g *Gate) Raise() {
	g.raised.Add(1)
	g.pending.Store(true)
}

// Pending reports whether an interrupt is waiting for delivery.
func (g *Gate) Pending() bool {
	return g.pending.Load()
}

// Raised returns how many interrupts have been raised since creation.
func (g *Gate) Raised() uint64 {
	return g.raised.Load()
}

// Take consumes a pending interrupt if the gate is open.
// It returns true when the caller must run the interrupt handler.
func (g *Gate) Take() bool {
	if !g.enabled.Load() {
		return false
	}
	return g.pending.CompareAndSwap(true, false)
}
