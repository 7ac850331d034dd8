package core

import "time"

// SwitchRecord captures one context switch.
type SwitchRecord struct {
	Seq    uint64
	From   Tid
	To     Tid
	Reason SwitchReason
	At     time.Time
}

// SchedulerStats is a point-in-time snapshot of scheduler state.
// Snapshots are published at the end of every scheduling operation and can be
// read from any goroutine.
type SchedulerStats struct {
	Current  Tid
	Capacity int
	Live     int
	Ready    int
	Blocked  int
	Switches uint64
	Created  uint64
	Exited   uint64
	Killed   uint64
	Closed   bool
}
