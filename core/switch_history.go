package core

import "sync"

const defaultSwitchHistoryCapacity = 256

// switchHistory is a ring of the most recent context switches.
// It has its own mutex so RecentSwitches can be read from outside the scheduler.
type switchHistory struct {
	mu    sync.Mutex
	items []SwitchRecord
	head  int
	count int
	seq   uint64
}

func newSwitchHistory(capacity int) *switchHistory {
	if capacity < 1 {
		capacity = defaultSwitchHistoryCapacity
	}
	return &switchHistory{items: make([]SwitchRecord, capacity)}
}

// Add stamps record with the next sequence number and stores it.
func (h *switchHistory) Add(record SwitchRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	record.Seq = h.seq
	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, oldest first.
func (h *switchHistory) Recent(limit int) []SwitchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]SwitchRecord, limit)
	for i := range limit {
		idx := (h.head - limit + i + len(h.items)) % len(h.items)
		out[i] = h.items[idx]
	}
	return out
}

func (h *switchHistory) Last() (SwitchRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return SwitchRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

func (h *switchHistory) Total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}
