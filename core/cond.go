package core

import "errors"

// Cond is a condition variable for user-level threads.
//
// It carries no lock reference. Every call must be made while holding the
// lock that protects the condition; that is the caller's responsibility.
type Cond struct {
	s  *Scheduler
	wq *WaitQueue
}

// NewCond creates a condition variable with no waiters.
func (s *Scheduler) NewCond() *Cond {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return &Cond{s: s, wq: s.newWaitQueueLocked()}
}

// Wait releases lock, sleeps until signaled, and re-acquires lock before
// returning. Releasing the lock and joining the wait queue happen with the
// gate closed, so a signal sent after the release cannot be missed.
//
// A waiter killed while asleep does not return. Once woken it hands the
// signal on to the next waiter, re-acquires lock, and exits; its deferred
// calls therefore run with lock held, as they would after a normal return.
func (c *Cond) Wait(lock *Lock) {
	enabled := c.s.gate.Off()
	defer c.s.gate.Set(enabled)

	lock.releaseLocked()
	_, err := c.s.sleepLocked(c.wq)
	switch {
	case errors.Is(err, errCancelled):
		c.s.wakeupLocked(c.wq, false)
		lock.holdLocked()
		c.s.exitCancelled(c.s.current)
	case err != nil:
		c.s.fatal("cond wait", "no other thread can run to signal",
			F("tid", c.s.current.id), F("error", err))
	}
	lock.acquireLocked()
}

// Signal wakes the longest waiting thread, if any, and returns how many were woken.
func (c *Cond) Signal(lock *Lock) int {
	enabled := c.s.gate.Off()
	defer c.s.gate.Set(enabled)
	return c.wake(false)
}

// Broadcast wakes every waiter in arrival order and returns how many were woken.
func (c *Cond) Broadcast(lock *Lock) int {
	enabled := c.s.gate.Off()
	defer c.s.gate.Set(enabled)
	return c.wake(true)
}

func (c *Cond) wake(all bool) int {
	n := c.s.wakeupLocked(c.wq, all)
	if n > 0 {
		c.s.publish()
	}
	return n
}

// Waiters returns the number of threads waiting on c.
func (c *Cond) Waiters() int {
	return c.wq.Len()
}

// Destroy releases the condition variable. It fails with ErrQueueNotEmpty while threads wait.
func (c *Cond) Destroy() error {
	return c.wq.Destroy()
}
