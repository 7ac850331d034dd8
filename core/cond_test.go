package core

import (
	"errors"
	"slices"
	"testing"
)

// TestCond_NoMissedWakeup verifies the wait/signal handshake
// Given: A consumer that waits for a flag and a producer that sets it, created in that order
// When: Both run
// Then: The consumer observes the value the producer published
func TestCond_NoMissedWakeup(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	cv := s.NewCond()
	ready, value, got := false, 0, 0

	consumer := mustCreate(t, s, func(arg any) {
		lock.Acquire()
		for !ready {
			cv.Wait(lock)
		}
		got = value
		lock.Release()
	}, nil)
	producer := mustCreate(t, s, func(arg any) {
		lock.Acquire()
		value = 42
		ready = true
		cv.Signal(lock)
		lock.Release()
	}, nil)

	// Act
	mustJoin(t, s, consumer)
	mustJoin(t, s, producer)

	// Assert
	if got != 42 {
		t.Errorf("consumer got %d, want 42", got)
	}
	if n := cv.Waiters(); n != 0 {
		t.Errorf("Waiters() = %d, want 0", n)
	}
	assertInvariants(t, s)
}

// TestCond_Broadcast verifies waking every waiter
// Given: Three threads waiting on one condition variable
// When: The initial thread broadcasts
// Then: All three wake in arrival order and reacquire the lock one at a time
func TestCond_Broadcast(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	cv := s.NewCond()
	var order []Tid

	waiter := func(arg any) {
		lock.Acquire()
		cv.Wait(lock)
		order = append(order, s.ID())
		lock.Release()
	}
	ids := []Tid{
		mustCreate(t, s, waiter, nil),
		mustCreate(t, s, waiter, nil),
		mustCreate(t, s, waiter, nil),
	}
	if _, err := s.Yield(Any); err != nil {
		t.Fatalf("Yield(Any) error = %v", err)
	}
	if n := cv.Waiters(); n != 3 {
		t.Fatalf("Waiters() = %d, want 3", n)
	}
	if err := cv.Destroy(); !errors.Is(err, ErrQueueNotEmpty) {
		t.Errorf("Destroy() with waiters error = %v, want ErrQueueNotEmpty", err)
	}

	// Act
	lock.Acquire()
	woken := cv.Broadcast(lock)
	lock.Release()
	for _, id := range ids {
		mustJoin(t, s, id)
	}

	// Assert
	if woken != 3 {
		t.Errorf("Broadcast() = %d, want 3", woken)
	}
	if !slices.Equal(order, ids) {
		t.Errorf("wake order = %v, want %v", order, ids)
	}
	if n := cv.Signal(lock); n != 0 {
		t.Errorf("Signal() with no waiters = %d, want 0", n)
	}
	if err := cv.Destroy(); err != nil {
		t.Errorf("Destroy() error = %v", err)
	}
}

// TestCond_WaitDeadlockIsFatal verifies deadlock detection
// Given: The only thread holds a lock
// When: It waits on a condition variable
// Then: The scheduler raises an InvariantError and the lock has been released
func TestCond_WaitDeadlockIsFatal(t *testing.T) {
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	cv := s.NewCond()
	lock.Acquire()

	expectInvariantPanic(t, func() { cv.Wait(lock) })

	if lock.Held() {
		t.Error("lock still held after fatal wait")
	}
	if n := cv.Waiters(); n != 0 {
		t.Errorf("Waiters() = %d, want 0", n)
	}
}

// TestCond_KilledWaiterUnwindsHoldingLock verifies mutual exclusion across a cancelled wait
// Given: A thread that acquires the lock, defers its release and waits, and is then killed
// When: The initial thread takes the lock, signals and yields
// Then: The killed waiter blocks until the lock is free, and its deferred release never frees a lock it does not hold
func TestCond_KilledWaiterUnwindsHoldingLock(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	cv := s.NewCond()
	returned := false

	victim := mustCreate(t, s, func(arg any) {
		lock.Acquire()
		defer lock.Release()
		cv.Wait(lock)
		returned = true
	}, nil)
	if _, err := s.Yield(victim); err != nil {
		t.Fatalf("Yield(%d) error = %v", victim, err)
	}
	if _, err := s.Kill(victim); err != nil {
		t.Fatalf("Kill(%d) error = %v", victim, err)
	}

	// Act
	lock.Acquire()
	cv.Signal(lock)
	if _, err := s.Yield(Any); err != nil {
		t.Fatalf("Yield(Any) error = %v", err)
	}

	// Assert - the initial thread still owns the lock
	if !lock.Held() {
		t.Fatal("lock released behind its holder's back")
	}
	if state, ok := s.ThreadState(victim); !ok || state != StateBlocked {
		t.Errorf("ThreadState(%d) = %v, %v, want blocked on the lock", victim, state, ok)
	}
	assertInvariants(t, s)

	// Act - let it finish unwinding
	lock.Release()
	mustJoin(t, s, victim)

	// Assert
	if returned {
		t.Error("killed waiter returned from Wait")
	}
	if lock.Held() {
		t.Error("lock still held after the killed waiter exited")
	}
	if killed := s.Stats().Killed; killed != 1 {
		t.Errorf("Stats().Killed = %d, want 1", killed)
	}
	assertInvariants(t, s)
}

// TestCond_KilledWaiterPassesSignal verifies that a signal is not lost on a killed waiter
// Given: Two threads waiting on a condition, the first of them killed
// When: The condition is set and signaled once
// Then: The killed waiter exits and the second waiter wakes and observes the condition
func TestCond_KilledWaiterPassesSignal(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	cv := s.NewCond()
	ready := false
	var observed []Tid

	waiter := func(arg any) {
		lock.Acquire()
		defer lock.Release()
		for !ready {
			cv.Wait(lock)
		}
		observed = append(observed, s.ID())
	}
	victim := mustCreate(t, s, waiter, nil)
	survivor := mustCreate(t, s, waiter, nil)
	if _, err := s.Yield(Any); err != nil {
		t.Fatalf("Yield(Any) error = %v", err)
	}
	if n := cv.Waiters(); n != 2 {
		t.Fatalf("Waiters() = %d, want 2", n)
	}
	if _, err := s.Kill(victim); err != nil {
		t.Fatalf("Kill(%d) error = %v", victim, err)
	}

	// Act
	lock.Acquire()
	ready = true
	woken := cv.Signal(lock)
	lock.Release()
	mustJoin(t, s, survivor)

	// Assert
	if woken != 1 {
		t.Errorf("Signal() = %d, want 1", woken)
	}
	if !slices.Equal(observed, []Tid{survivor}) {
		t.Errorf("observed = %v, want [%d]", observed, survivor)
	}
	if _, ok := s.ThreadState(victim); ok {
		t.Errorf("killed waiter %d still holds its slot", victim)
	}
	if lock.Held() {
		t.Error("lock still held")
	}
	if n := cv.Waiters(); n != 0 {
		t.Errorf("Waiters() = %d, want 0", n)
	}
	assertInvariants(t, s)
}
