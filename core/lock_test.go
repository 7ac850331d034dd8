package core

import (
	"errors"
	"slices"
	"testing"
)

// TestLock_MutualExclusion verifies that at most one thread holds the lock
// Given: Three threads that yield while inside the critical section
// When: They all run to completion
// Then: No two threads are ever inside at once and every increment lands
func TestLock_MutualExclusion(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	inside, total := 0, 0

	worker := func(arg any) {
		for range 3 {
			lock.Acquire()
			inside++
			if inside != 1 {
				t.Errorf("thread %d: %d threads inside the critical section", s.ID(), inside)
			}
			s.Yield(Any)
			total++
			inside--
			lock.Release()
			s.Yield(Any)
		}
	}
	ids := []Tid{
		mustCreate(t, s, worker, nil),
		mustCreate(t, s, worker, nil),
		mustCreate(t, s, worker, nil),
	}

	// Act
	for _, id := range ids {
		mustJoin(t, s, id)
	}

	// Assert
	if total != 9 {
		t.Errorf("total = %d, want 9", total)
	}
	if lock.Held() {
		t.Error("lock still held")
	}
	if err := lock.Destroy(); err != nil {
		t.Errorf("Destroy() error = %v", err)
	}
	assertInvariants(t, s)
}

// TestLock_WaitersAcquireInOrder verifies FIFO handoff
// Given: The initial thread holds the lock and three threads queue on it
// When: The lock is released
// Then: The waiters take it in the order they arrived
func TestLock_WaitersAcquireInOrder(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	var order []Tid

	lock.Acquire()
	contender := func(arg any) {
		lock.Acquire()
		order = append(order, s.ID())
		lock.Release()
	}
	ids := []Tid{
		mustCreate(t, s, contender, nil),
		mustCreate(t, s, contender, nil),
		mustCreate(t, s, contender, nil),
	}
	if _, err := s.Yield(Any); err != nil {
		t.Fatalf("Yield(Any) error = %v", err)
	}
	if n := s.Stats().Blocked; n != 3 {
		t.Fatalf("Stats().Blocked = %d, want 3", n)
	}

	// Act
	lock.Release()
	for _, id := range ids {
		mustJoin(t, s, id)
	}

	// Assert
	if !slices.Equal(order, ids) {
		t.Errorf("acquire order = %v, want %v", order, ids)
	}
}

// TestLock_TryAcquireAndDestroy verifies non-blocking acquisition and destruction
// Given: A free lock
// When: It is taken with TryAcquire, tried again, destroyed, released and destroyed again
// Then: The second try fails, destroying a held lock fails with ErrLockHeld, and the last destroy succeeds
func TestLock_TryAcquireAndDestroy(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()

	// Act & Assert
	if !lock.TryAcquire() {
		t.Fatal("TryAcquire() on free lock = false")
	}
	if lock.TryAcquire() {
		t.Error("TryAcquire() on held lock = true")
	}
	if !lock.Held() {
		t.Error("Held() = false after acquire")
	}
	if err := lock.Destroy(); !errors.Is(err, ErrLockHeld) {
		t.Errorf("Destroy() on held lock error = %v, want ErrLockHeld", err)
	}

	lock.Release()
	lock.Release()
	if lock.Held() {
		t.Error("Held() = true after release")
	}
	if err := lock.Destroy(); err != nil {
		t.Errorf("Destroy() error = %v", err)
	}
}

// TestLock_AcquireDeadlockIsFatal verifies deadlock detection
// Given: The only thread holds the lock
// When: It tries to acquire it again
// Then: The scheduler raises an InvariantError instead of hanging
func TestLock_AcquireDeadlockIsFatal(t *testing.T) {
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	lock.Acquire()

	expectInvariantPanic(t, func() { lock.Acquire() })

	if !s.Gate().Enabled() {
		t.Error("gate left closed after fatal acquire")
	}
}

// TestLock_KilledWaiterPassesWakeup verifies that a release is not lost on a killed waiter
// Given: The initial thread holds the lock and two threads queue on it, the first of them killed
// When: The lock is released and the killed waiter is scheduled
// Then: It exits without taking the lock and the second waiter becomes ready and acquires it
func TestLock_KilledWaiterPassesWakeup(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, nil)
	lock := s.NewLock()
	var acquired []Tid

	lock.Acquire()
	contender := func(arg any) {
		lock.Acquire()
		acquired = append(acquired, s.ID())
		lock.Release()
	}
	victim := mustCreate(t, s, contender, nil)
	survivor := mustCreate(t, s, contender, nil)
	if _, err := s.Yield(Any); err != nil {
		t.Fatalf("Yield(Any) error = %v", err)
	}
	if _, err := s.Kill(victim); err != nil {
		t.Fatalf("Kill(%d) error = %v", victim, err)
	}

	// Act
	lock.Release()
	if _, err := s.Yield(Any); err != nil {
		t.Fatalf("Yield(Any) error = %v", err)
	}

	// Assert
	if _, ok := s.ThreadState(victim); ok {
		t.Errorf("killed waiter %d still holds its slot", victim)
	}
	if state, ok := s.ThreadState(survivor); !ok || state != StateReady {
		t.Errorf("ThreadState(%d) = %v, %v, want ready", survivor, state, ok)
	}
	if lock.Held() {
		t.Error("lock held after the killed waiter exited")
	}
	assertInvariants(t, s)

	mustJoin(t, s, survivor)
	if !slices.Equal(acquired, []Tid{survivor}) {
		t.Errorf("acquired = %v, want [%d]", acquired, survivor)
	}
	if killed := s.Stats().Killed; killed != 1 {
		t.Errorf("Stats().Killed = %d, want 1", killed)
	}
	assertInvariants(t, s)
}
