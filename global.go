package uthread

import (
	"sync"

	"github.com/Swind/go-uthread/core"
)

// =============================================================================
// Global Scheduler Helper (Singleton)
// =============================================================================

var (
	globalScheduler *core.Scheduler
	globalMu        sync.Mutex
)

// InitGlobalScheduler sets up the process-wide scheduler and makes the calling
// goroutine its initial thread. Later calls return the existing scheduler.
func InitGlobalScheduler(cfg *SchedulerConfig) *Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler != nil {
		return globalScheduler
	}

	globalScheduler = core.NewScheduler(cfg)
	return globalScheduler
}

// GetGlobalScheduler returns the global scheduler instance.
// It panics if InitGlobalScheduler has not been called.
func GetGlobalScheduler() *Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler == nil {
		panic("GlobalScheduler not initialized. Call InitGlobalScheduler() first.")
	}
	return globalScheduler
}

// ShutdownGlobalScheduler tears down every thread of the global scheduler and
// forgets it. It must be called from the initial thread.
func ShutdownGlobalScheduler() error {
	globalMu.Lock()
	s := globalScheduler
	globalMu.Unlock()

	if s == nil {
		return nil
	}
	// Unwound threads may still reach the global scheduler from deferred calls.
	if err := s.Shutdown(); err != nil {
		return err
	}

	globalMu.Lock()
	if globalScheduler == s {
		globalScheduler = nil
	}
	globalMu.Unlock()
	return nil
}

// ID returns the identifier of the running thread.
func ID() Tid { return GetGlobalScheduler().ID() }

// Create makes a new ready thread running fn(arg).
func Create(fn Entry, arg any) (Tid, error) { return GetGlobalScheduler().Create(fn, arg) }

// Yield gives up the processor to target (Any, Self, or a ready thread).
func Yield(target Tid) (Tid, error) { return GetGlobalScheduler().Yield(target) }

// Exit terminates the running thread.
func Exit() { GetGlobalScheduler().Exit() }

// Kill terminates another thread.
func Kill(id Tid) (Tid, error) { return GetGlobalScheduler().Kill(id) }

// Wait blocks until thread id exits.
func Wait(id Tid) (Tid, error) { return GetGlobalScheduler().Wait(id) }

// Checkpoint delivers a pending preemption interrupt.
func Checkpoint() bool { return GetGlobalScheduler().Checkpoint() }

// NewWaitQueue creates a wait queue on the global scheduler.
func NewWaitQueue() *WaitQueue { return GetGlobalScheduler().NewWaitQueue() }

// Sleep blocks the running thread on wq.
func Sleep(wq *WaitQueue) (Tid, error) { return GetGlobalScheduler().Sleep(wq) }

// Wakeup moves one (or all) waiters of wq to the ready queue.
func Wakeup(wq *WaitQueue, all bool) int { return GetGlobalScheduler().Wakeup(wq, all) }

// NewLock creates a lock on the global scheduler.
func NewLock() *Lock { return GetGlobalScheduler().NewLock() }

// NewCond creates a condition variable on the global scheduler.
func NewCond() *Cond { return GetGlobalScheduler().NewCond() }
