package core

import "errors"

// Lock is a mutual exclusion lock for user-level threads, built from a held
// flag and a wait queue.
//
// Ownership is not tracked: a thread that acquires a lock it already holds
// blocks forever, and any thread may release a held lock.
type Lock struct {
	s    *Scheduler
	held bool
	wq   *WaitQueue
}

// NewLock creates an unheld lock.
func (s *Scheduler) NewLock() *Lock {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return &Lock{s: s, wq: s.newWaitQueueLocked()}
}

// Acquire takes the lock, sleeping on its wait queue while another thread holds it.
func (l *Lock) Acquire() {
	enabled := l.s.gate.Off()
	defer l.s.gate.Set(enabled)
	l.acquireLocked()
}

// acquireLocked takes the lock or, if the caller is killed while waiting,
// passes the wakeup it consumed to the next waiter and exits.
func (l *Lock) acquireLocked() {
	for l.testAndSet() {
		if l.sleep() {
			if !l.held {
				l.s.wakeupLocked(l.wq, false)
			}
			l.s.exitCancelled(l.s.current)
		}
	}
}

// holdLocked takes the lock for a thread that may already be killed, so that
// its exit path runs with the lock held.
func (l *Lock) holdLocked() {
	for l.testAndSet() {
		l.sleep()
	}
}

// sleep blocks on the lock's wait queue and reports whether the caller was
// killed while blocked.
func (l *Lock) sleep() bool {
	_, err := l.s.sleepLocked(l.wq)
	if errors.Is(err, errCancelled) {
		return true
	}
	if err != nil {
		l.s.fatal("lock acquire", "lock is held and no other thread can run",
			F("tid", l.s.current.id), F("error", err))
	}
	return false
}

// testAndSet marks the lock held and reports whether it already was.
func (l *Lock) testAndSet() bool {
	was := l.held
	l.held = true
	return was
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *Lock) TryAcquire() bool {
	enabled := l.s.gate.Off()
	defer l.s.gate.Set(enabled)
	return !l.testAndSet()
}

// Release frees a held lock and wakes one waiter. Releasing a free lock does nothing.
func (l *Lock) Release() {
	enabled := l.s.gate.Off()
	defer l.s.gate.Set(enabled)
	l.releaseLocked()
	l.s.publish()
}

func (l *Lock) releaseLocked() {
	if !l.held {
		return
	}
	l.held = false
	l.s.wakeupLocked(l.wq, false)
}

// Held reports whether the lock is held.
func (l *Lock) Held() bool {
	enabled := l.s.gate.Off()
	defer l.s.gate.Set(enabled)
	return l.held
}

// Destroy releases the lock's wait queue. Only an unheld lock may be destroyed.
func (l *Lock) Destroy() error {
	enabled := l.s.gate.Off()
	defer l.s.gate.Set(enabled)

	if l.held {
		return ErrLockHeld
	}
	return l.wq.destroyLocked()
}
