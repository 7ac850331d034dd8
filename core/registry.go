package core

// registry is the fixed-capacity thread table.
// It owns the authoritative existence of every thread.
type registry struct {
	slots []*thread

	// exited[id] is true when the slot's last occupant exited or was killed,
	// and the slot has not been handed out again since.
	exited []bool

	live int
}

func newRegistry(capacity int) *registry {
	return &registry{
		slots:  make([]*thread, capacity),
		exited: make([]bool, capacity),
	}
}

func (r *registry) Cap() int {
	return len(r.slots)
}

func (r *registry) Live() int {
	return r.live
}

func (r *registry) InRange(id Tid) bool {
	return id >= 0 && int(id) < len(r.slots)
}

// Get returns the thread occupying id, or nil.
func (r *registry) Get(id Tid) *thread {
	if !r.InRange(id) {
		return nil
	}
	return r.slots[id]
}

// Allocate returns the lowest free identifier.
func (r *registry) Allocate() (Tid, error) {
	for i, t := range r.slots {
		if t == nil {
			return Tid(i), nil
		}
	}
	return 0, ErrNoMoreIDs
}

// Install places t in its slot. The slot must be free.
func (r *registry) Install(t *thread) bool {
	if !r.InRange(t.id) || r.slots[t.id] != nil {
		return false
	}
	r.slots[t.id] = t
	r.exited[t.id] = false
	r.live++
	return true
}

// Release frees id after the thread's resources have been released.
// terminated records whether the occupant ran to completion or was killed,
// as opposed to a create that was rolled back.
func (r *registry) Release(id Tid, terminated bool) bool {
	if !r.InRange(id) || r.slots[id] == nil {
		return false
	}
	r.slots[id] = nil
	r.exited[id] = terminated
	r.live--
	return true
}

// Exited reports whether id is free and its last occupant terminated.
func (r *registry) Exited(id Tid) bool {
	return r.InRange(id) && r.slots[id] == nil && r.exited[id]
}

// Each calls fn for every live thread in identifier order.
func (r *registry) Each(fn func(t *thread)) {
	for _, t := range r.slots {
		if t != nil {
			fn(t)
		}
	}
}
