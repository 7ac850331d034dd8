package core

import (
	"fmt"
	"os"
	"time"

	"github.com/Swind/go-uthread/interrupt"
)

// =============================================================================
// PanicHandler: Interface for handling thread panics
// =============================================================================

// PanicHandler is called when a thread's entry function panics.
// The thread then exits normally; other threads are unaffected.
type PanicHandler interface {
	// HandlePanic is called on the panicking thread before it exits.
	//
	// Parameters:
	// - tid: The identifier of the thread that panicked
	// - panicInfo: The panic value recovered from the entry function
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(tid Tid, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(tid Tid, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Thread %d] Panic: %v\nStack trace:\n%s", tid, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// SwitchReason names the scheduling event that caused a context switch.
type SwitchReason string

const (
	SwitchYield   SwitchReason = "yield"
	SwitchSleep   SwitchReason = "sleep"
	SwitchExit    SwitchReason = "exit"
	SwitchPreempt SwitchReason = "preempt"
)

// Exit causes reported to Metrics.
const (
	ExitCauseReturned = "returned"
	ExitCauseKilled   = "killed"
	ExitCausePanicked = "panicked"
)

// Create rejection reasons reported to Metrics.
const (
	RejectNoMoreIDs = "no_more_ids"
	RejectNoMemory  = "no_memory"
	RejectClosed    = "closed"
)

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called with the interrupt gate closed, from whichever thread is
// running, so they must be fast and must never call back into the scheduler.
type Metrics interface {
	// RecordSwitch records one context switch. ran is how long the outgoing
	// thread held the processor since the previous switch.
	RecordSwitch(reason SwitchReason, ran time.Duration)

	// RecordThreadCreated records a successful Create.
	RecordThreadCreated()

	// RecordThreadExited records a thread teardown with one of the ExitCause constants.
	RecordThreadExited(cause string)

	// RecordCreateRejected records a failed Create with one of the Reject constants.
	RecordCreateRejected(reason string)

	// RecordReadyDepth records the current ready queue length.
	RecordReadyDepth(depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordSwitch is a no-op.
func (m *NilMetrics) RecordSwitch(reason SwitchReason, ran time.Duration) {}

// RecordThreadCreated is a no-op.
func (m *NilMetrics) RecordThreadCreated() {}

// RecordThreadExited is a no-op.
func (m *NilMetrics) RecordThreadExited(cause string) {}

// RecordCreateRejected is a no-op.
func (m *NilMetrics) RecordCreateRejected(reason string) {}

// RecordReadyDepth is a no-op.
func (m *NilMetrics) RecordReadyDepth(depth int) {}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

// SchedulerConfig holds limits and pluggable handlers for a Scheduler.
// Zero or nil fields fall back to the defaults of DefaultSchedulerConfig.
type SchedulerConfig struct {
	// MaxThreads is the capacity of the thread table, including the initial thread.
	MaxThreads int

	// StackSize is the stack region size per created thread. Values below
	// MinStackSize are raised to MinStackSize.
	StackSize int

	// Stacks allocates thread stack regions. Defaults to an unlimited BudgetStackAllocator.
	Stacks StackAllocator

	// Gate is the interrupt gate. Share it with an interrupt.Timer to enable preemption.
	Gate *interrupt.Gate

	// Logger receives lifecycle logs. Defaults to NoOpLogger.
	Logger Logger

	// Metrics records scheduler events. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler is called when an entry function panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// ExitFunc terminates the process when the last runnable thread exits. Defaults to os.Exit.
	ExitFunc func(code int)

	// HistoryCapacity is the number of context switches kept for RecentSwitches.
	HistoryCapacity int
}

// DefaultSchedulerConfig returns a config with default limits and handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		MaxThreads:      DefaultMaxThreads,
		StackSize:       MinStackSize,
		Stacks:          NewBudgetStackAllocator(0),
		Gate:            interrupt.NewGate(true),
		Logger:          NewNoOpLogger(),
		Metrics:         &NilMetrics{},
		PanicHandler:    &DefaultPanicHandler{},
		ExitFunc:        os.Exit,
		HistoryCapacity: defaultSwitchHistoryCapacity,
	}
}

// withDefaults returns a copy of cfg with every unset field filled in.
func (cfg *SchedulerConfig) withDefaults() SchedulerConfig {
	def := DefaultSchedulerConfig()
	if cfg == nil {
		return *def
	}

	out := *cfg
	if out.MaxThreads < 1 {
		out.MaxThreads = def.MaxThreads
	}
	if out.StackSize < MinStackSize {
		out.StackSize = MinStackSize
	}
	if out.Stacks == nil {
		out.Stacks = def.Stacks
	}
	if out.Gate == nil {
		out.Gate = def.Gate
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	if out.Metrics == nil {
		out.Metrics = def.Metrics
	}
	if out.PanicHandler == nil {
		out.PanicHandler = def.PanicHandler
	}
	if out.ExitFunc == nil {
		out.ExitFunc = def.ExitFunc
	}
	if out.HistoryCapacity < 1 {
		out.HistoryCapacity = def.HistoryCapacity
	}
	return out
}
