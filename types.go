package uthread

import "github.com/Swind/go-uthread/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the uthread package for most use cases.

// Tid identifies a thread
type Tid = core.Tid

// Entry is the function a created thread runs
type Entry = core.Entry

// Scheduler multiplexes user-level threads
type Scheduler = core.Scheduler

// SchedulerConfig holds scheduler limits and pluggable handlers
type SchedulerConfig = core.SchedulerConfig

// SchedulerStats is a point-in-time snapshot of scheduler state
type SchedulerStats = core.SchedulerStats

// SwitchRecord captures one context switch
type SwitchRecord = core.SwitchRecord

// WaitQueue is a FIFO of blocked threads
type WaitQueue = core.WaitQueue

// Lock is a mutual exclusion lock for user-level threads
type Lock = core.Lock

// Cond is a condition variable for user-level threads
type Cond = core.Cond

// BoundedBuffer is a fixed-capacity FIFO shared by user-level threads
type BoundedBuffer[T any] = core.BoundedBuffer[T]

// Logger and Field are the structured logging interface
type (
	Logger = core.Logger
	Field  = core.Field
)

// Yield targets and limits
const (
	Any      Tid = core.Any
	Self     Tid = core.Self
	NoThread Tid = core.NoThread

	DefaultMaxThreads = core.DefaultMaxThreads
	MinStackSize      = core.MinStackSize
)

// Sentinel errors
var (
	ErrInvalid       = core.ErrInvalid
	ErrNone          = core.ErrNone
	ErrNoMoreIDs     = core.ErrNoMoreIDs
	ErrNoMemory      = core.ErrNoMemory
	ErrClosed        = core.ErrClosed
	ErrQueueNotEmpty = core.ErrQueueNotEmpty
	ErrLockHeld      = core.ErrLockHeld
	ErrBufferClosed  = core.ErrBufferClosed
)

// Convenience constructors
var (
	DefaultSchedulerConfig = core.DefaultSchedulerConfig
	NewScheduler           = core.NewScheduler
	F                      = core.F
)

// NewBoundedBuffer creates a bounded buffer on s.
func NewBoundedBuffer[T any](s *Scheduler, capacity int) *BoundedBuffer[T] {
	return core.NewBoundedBuffer[T](s, capacity)
}
