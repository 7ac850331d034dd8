package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// tidQueue is a FIFO of thread identifiers.
//
// It is not synchronized: every caller runs with the interrupt gate closed,
// and only one logical executor ever touches scheduler state.
type tidQueue struct {
	ids []Tid
}

func newTidQueue() *tidQueue {
	return &tidQueue{ids: make([]Tid, 0, defaultQueueCap)}
}

// Push appends id at the tail.
func (q *tidQueue) Push(id Tid) {
	q.ids = append(q.ids, id)
}

// Pop removes and returns the head.
func (q *tidQueue) Pop() (Tid, bool) {
	if len(q.ids) == 0 {
		return 0, false
	}

	id := q.ids[0]
	q.ids = q.ids[1:]
	q.maybeCompact()

	return id, true
}

// Peek returns the head without removing it.
func (q *tidQueue) Peek() (Tid, bool) {
	if len(q.ids) == 0 {
		return 0, false
	}
	return q.ids[0], true
}

// Remove deletes the first occurrence of id, keeping the order of the rest.
func (q *tidQueue) Remove(id Tid) bool {
	for i, v := range q.ids {
		if v != id {
			continue
		}
		copy(q.ids[i:], q.ids[i+1:])
		q.ids = q.ids[:len(q.ids)-1]
		q.maybeCompact()
		return true
	}
	return false
}

func (q *tidQueue) Len() int {
	return len(q.ids)
}

func (q *tidQueue) IsEmpty() bool {
	return len(q.ids) == 0
}

// Snapshot returns a copy of the queue from head to tail.
func (q *tidQueue) Snapshot() []Tid {
	out := make([]Tid, len(q.ids))
	copy(out, q.ids)
	return out
}

// Clear drops every identifier.
func (q *tidQueue) Clear() {
	q.ids = make([]Tid, 0, defaultQueueCap)
}

func (q *tidQueue) maybeCompact() {
	n := len(q.ids)
	c := cap(q.ids)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.ids = make([]Tid, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]Tid, n, newCap)
	copy(newSlice, q.ids)
	q.ids = newSlice
}
