package core

import "errors"

// WaitQueue is a FIFO of threads blocked on one synchronization object.
// A blocked thread is in exactly one wait queue and nowhere else.
type WaitQueue struct {
	s   *Scheduler
	ids *tidQueue
}

// NewWaitQueue creates an empty wait queue owned by s.
func (s *Scheduler) NewWaitQueue() *WaitQueue {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return s.newWaitQueueLocked()
}

func (s *Scheduler) newWaitQueueLocked() *WaitQueue {
	wq := &WaitQueue{s: s, ids: newTidQueue()}
	s.queues[wq] = struct{}{}
	return wq
}

func (s *Scheduler) dropQueueLocked(wq *WaitQueue) {
	delete(s.queues, wq)
}

func (s *Scheduler) ownsQueueLocked(wq *WaitQueue) bool {
	_, ok := s.queues[wq]
	return ok
}

// Destroy unregisters the queue. It fails with ErrQueueNotEmpty while threads wait on it.
func (wq *WaitQueue) Destroy() error {
	s := wq.s
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return wq.destroyLocked()
}

func (wq *WaitQueue) destroyLocked() error {
	if !wq.ids.IsEmpty() {
		return ErrQueueNotEmpty
	}
	wq.s.dropQueueLocked(wq)
	return nil
}

// Len returns the number of blocked threads.
func (wq *WaitQueue) Len() int {
	s := wq.s
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return wq.ids.Len()
}

// Waiters returns the blocked threads in arrival order.
func (wq *WaitQueue) Waiters() []Tid {
	s := wq.s
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return wq.ids.Snapshot()
}

// Sleep blocks the running thread on wq and runs the ready queue head.
// Once woken and scheduled again it returns the identifier of the thread that
// was chosen to run when it went to sleep. A thread killed while asleep does
// not return: it runs its exit path once woken and scheduled.
//
// Errors: ErrInvalid for a nil or foreign queue, ErrNone when no other thread
// is ready (sleeping would leave nothing to run).
func (s *Scheduler) Sleep(wq *WaitQueue) (Tid, error) {
	if wq == nil {
		return NoThread, ErrInvalid
	}
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	id, err := s.sleepLocked(wq)
	if errors.Is(err, errCancelled) {
		s.exitCancelled(s.current)
	}
	return id, err
}

func (s *Scheduler) sleepLocked(wq *WaitQueue) (Tid, error) {
	if wq.s != s || !s.ownsQueueLocked(wq) {
		return NoThread, ErrInvalid
	}

	id, ok := s.ready.Pop()
	if !ok {
		return NoThread, ErrNone
	}
	next := s.reg.Get(id)
	if next == nil || next.state != StateReady {
		s.fatal("sleep", "ready queue head is not a ready thread", F("tid", id))
	}

	cur := s.current
	cur.state = StateBlocked
	cur.waitq = wq
	wq.ids.Push(cur.id)

	if s.run(cur, next, SwitchSleep) {
		return next.id, errCancelled
	}
	return next.id, nil
}

// Wakeup moves the head of wq (or, with all, every waiter in arrival order)
// to the tail of the ready queue. It never switches; woken threads run at a
// later Yield or Sleep. It returns how many threads were woken.
func (s *Scheduler) Wakeup(wq *WaitQueue, all bool) int {
	if wq == nil {
		return 0
	}
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	n := s.wakeupLocked(wq, all)
	if n > 0 {
		s.publish()
	}
	return n
}

func (s *Scheduler) wakeupLocked(wq *WaitQueue, all bool) int {
	n := 0
	for {
		id, ok := wq.ids.Pop()
		if !ok {
			break
		}
		t := s.reg.Get(id)
		if t == nil || t.state != StateBlocked || t.waitq != wq {
			s.fatal("wakeup", "wait queue holds a thread not blocked on it", F("tid", id))
		}
		t.state = StateReady
		t.waitq = nil
		s.ready.Push(id)
		n++
		if !all {
			break
		}
	}
	return n
}

// Wait blocks the running thread until thread id exits and returns id.
//
// If the slot of id is free because its last occupant already exited or was
// killed, Wait returns id immediately. Once Create has reused the slot, id
// names the new occupant and Wait joins that thread instead.
//
// Errors: ErrInvalid for the caller's own id or an id that is out of range or
// was never occupied; ErrNone when waiting would leave nothing to run.
func (s *Scheduler) Wait(id Tid) (Tid, error) {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	if id == s.current.id {
		return NoThread, ErrInvalid
	}
	if s.reg.Exited(id) {
		return id, nil
	}
	t := s.reg.Get(id)
	if t == nil {
		return NoThread, ErrInvalid
	}

	if _, err := s.sleepLocked(t.joinq); err != nil {
		if errors.Is(err, errCancelled) {
			s.exitCancelled(s.current)
		}
		return NoThread, err
	}
	return id, nil
}
