package core

import (
	"errors"
	"fmt"
)

// Tid identifies a thread. Valid identifiers lie in [0, MaxThreads).
type Tid int

// Yield targets that are not thread identifiers.
const (
	// Any selects the head of the ready queue.
	Any Tid = -1
	// Self is a no-op yield that returns the caller's own identifier.
	Self Tid = -2
)

const (
	// DefaultMaxThreads is the thread table capacity used when none is configured.
	DefaultMaxThreads = 1024

	// MinStackSize is the smallest stack region handed to a thread.
	MinStackSize = 32768
)

// Sentinel results. Callers compare with errors.Is.
var (
	// ErrInvalid reports an out-of-range, unknown, wrong-state or disallowed target.
	ErrInvalid = errors.New("uthread: invalid thread")

	// ErrNone reports that no other thread is runnable.
	ErrNone = errors.New("uthread: no runnable thread")

	// ErrNoMoreIDs reports that the thread table is full.
	ErrNoMoreIDs = errors.New("uthread: no more thread ids")

	// ErrNoMemory reports that a stack region could not be allocated.
	ErrNoMemory = errors.New("uthread: no memory for thread")

	// ErrClosed reports an operation on a scheduler that has been shut down.
	ErrClosed = errors.New("uthread: scheduler closed")

	// ErrQueueNotEmpty reports destroying a wait queue that still has waiters.
	ErrQueueNotEmpty = errors.New("uthread: wait queue not empty")

	// ErrLockHeld reports destroying a lock that is held.
	ErrLockHeld = errors.New("uthread: lock is held")

	// errCancelled is returned by sleepLocked when the sleeper was killed
	// while blocked. It never reaches callers of exported methods.
	errCancelled = errors.New("uthread: thread cancelled")
)

// InvariantError is the panic value raised when scheduler state is found corrupt.
// The scheduler cannot re-establish its invariants locally, so these are never recovered.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("uthread: invariant violated in %s: %s", e.Op, e.Msg)
}

// State is the scheduling state of a thread.
type State int

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateExiting:
		return "exiting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Entry is the function a created thread runs.
type Entry func(arg any)

// thread is the control block of one user-level thread.
type thread struct {
	id    Tid
	state State

	cont  *continuation
	stack *Stack

	// cancelled is the pending-cancellation flag set by Kill on a blocked thread.
	cancelled bool

	// joinq holds threads waiting for this one to exit.
	joinq *WaitQueue

	// waitq is the queue this thread is blocked on, nil unless Blocked.
	waitq *WaitQueue

	entry Entry
	arg   any
}
