package core

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Swind/go-uthread/interrupt"
)

// NoThread is the identifier returned alongside a non-nil error.
const NoThread Tid = -3

// Scheduler multiplexes user-level threads onto a single logical executor.
//
// Every thread is backed by a goroutine, but exactly one of them runs at a
// time: control moves only at Yield, Sleep (and therefore contended
// Lock.Acquire and Cond.Wait), Exit, and Checkpoint when an interrupt is
// pending. All scheduler methods except Stats and RecentSwitches must be
// called from the thread that is currently running.
//
// Scheduler state is mutated only with the interrupt gate closed; the
// previous gate state is restored on every return path.
type Scheduler struct {
	gate      *interrupt.Gate
	logger    Logger
	metrics   Metrics
	panics    PanicHandler
	stacks    StackAllocator
	stackSize int
	exitFunc  func(code int)

	reg     *registry
	ready   *tidQueue
	queues  map[*WaitQueue]struct{}
	current *thread
	closed  bool

	history    *switchHistory
	lastSwitch time.Time
	switches   uint64
	created    uint64
	exited     uint64
	killed     uint64

	statsMu sync.Mutex
	stats   SchedulerStats
}

// NewScheduler performs one-time setup and makes the calling goroutine the
// initial thread (identifier 0) in the Running state.
func NewScheduler(cfg *SchedulerConfig) *Scheduler {
	c := cfg.withDefaults()

	s := &Scheduler{
		gate:      c.Gate,
		logger:    c.Logger,
		metrics:   c.Metrics,
		panics:    c.PanicHandler,
		stacks:    c.Stacks,
		stackSize: c.StackSize,
		exitFunc:  c.ExitFunc,
		reg:       newRegistry(c.MaxThreads),
		ready:     newTidQueue(),
		queues:    make(map[*WaitQueue]struct{}),
		history:   newSwitchHistory(c.HistoryCapacity),
	}
	s.lastSwitch = time.Now()

	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	initial := &thread{
		id:    0,
		state: StateRunning,
		cont:  initialContinuation(),
	}
	initial.joinq = s.newWaitQueueLocked()
	s.reg.Install(initial)
	s.current = initial
	s.publish()

	s.logger.Debug("scheduler initialized",
		F("max_threads", c.MaxThreads), F("stack_size", c.StackSize))
	return s
}

// Gate returns the interrupt gate guarding this scheduler.
func (s *Scheduler) Gate() *interrupt.Gate {
	return s.gate
}

// ID returns the identifier of the running thread.
func (s *Scheduler) ID() Tid {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return s.current.id
}

// Stack returns the stack region owned by the running thread.
// The initial thread runs on the stack it was created with and returns nil.
func (s *Scheduler) Stack() []byte {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return s.current.stack.Bytes()
}

// Create makes a new Ready thread at the tail of the ready queue that will run
// fn(arg). It does not switch control.
//
// Errors: ErrNoMoreIDs when the table is full, ErrNoMemory when no stack region
// could be allocated, ErrInvalid for a nil fn, ErrClosed after Shutdown.
func (s *Scheduler) Create(fn Entry, arg any) (Tid, error) {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	if s.closed {
		s.metrics.RecordCreateRejected(RejectClosed)
		return NoThread, ErrClosed
	}
	if fn == nil {
		return NoThread, ErrInvalid
	}

	id, err := s.reg.Allocate()
	if err != nil {
		s.logger.Warn("thread create rejected", F("reason", RejectNoMoreIDs), F("live", s.reg.Live()))
		s.metrics.RecordCreateRejected(RejectNoMoreIDs)
		return NoThread, err
	}

	t := &thread{
		id:    id,
		state: StateReady,
		cont:  newContinuation(),
		entry: fn,
		arg:   arg,
	}
	if !s.reg.Install(t) {
		s.fatal("create", "allocated slot is occupied", F("tid", id))
	}

	stack, err := s.stacks.Allocate(s.stackSize)
	if err != nil {
		s.reg.Release(id, false)
		s.logger.Warn("thread create rejected", F("reason", RejectNoMemory), F("tid", id), F("error", err))
		s.metrics.RecordCreateRejected(RejectNoMemory)
		return NoThread, fmt.Errorf("%w: %v", ErrNoMemory, err)
	}
	t.stack = stack
	t.joinq = s.newWaitQueueLocked()

	s.ready.Push(id)
	s.created++
	s.metrics.RecordThreadCreated()
	s.publish()

	s.logger.Debug("thread created", F("tid", id), F("ready", s.ready.Len()))
	return id, nil
}

// Yield gives up the processor.
//
// target is Self (no-op, returns the caller's id), Any (the ready queue head),
// or a specific Ready thread. The caller goes to the tail of the ready queue.
// Yield returns, once the caller runs again, the identifier of the thread it
// switched to.
//
// Errors: ErrNone when target is Any and no other thread is ready, ErrInvalid
// when target is out of range, unknown, or not Ready. Neither switches.
func (s *Scheduler) Yield(target Tid) (Tid, error) {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return s.yieldLocked(target, SwitchYield)
}

func (s *Scheduler) yieldLocked(want Tid, reason SwitchReason) (Tid, error) {
	cur := s.current
	if want == Self || want == cur.id {
		return cur.id, nil
	}

	var next *thread
	switch {
	case want == Any:
		id, ok := s.ready.Peek()
		if !ok {
			return NoThread, ErrNone
		}
		next = s.reg.Get(id)
		if next == nil {
			s.fatal("yield", "ready queue holds a free identifier", F("tid", id))
		}
	case !s.reg.InRange(want):
		return NoThread, ErrInvalid
	default:
		next = s.reg.Get(want)
		if next == nil || next.state != StateReady {
			return NoThread, ErrInvalid
		}
	}

	if next.state != StateReady {
		s.fatal("yield", "ready queue holds a thread that is not ready",
			F("tid", next.id), F("state", next.state))
	}
	if !s.ready.Remove(next.id) {
		s.fatal("yield", "ready thread missing from ready queue", F("tid", next.id))
	}

	cur.state = StateReady
	s.ready.Push(cur.id)
	if s.run(cur, next, reason) {
		s.exitCancelled(cur)
	}
	return next.id, nil
}

// Exit terminates the running thread and never returns.
//
// Deferred calls of the thread run first. Then threads waiting on it are
// woken, its stack and identifier are released, and the ready queue head runs.
// If nothing is ready the process exits through the configured ExitFunc.
//
// The initial thread has no trampoline to unwind into: its teardown happens
// before its deferred calls, which then run after control has moved on and
// must not use the scheduler.
func (s *Scheduler) Exit() {
	cur := s.current
	if cur.cont.initial {
		s.gate.Off()
		cause := ExitCauseReturned
		if cur.cancelled {
			cause = ExitCauseKilled
		}
		s.exitLocked(cur, cause)
	}
	runtime.Goexit()
}

// Kill terminates another thread.
//
// A Ready thread is removed from the ready queue and released at once; its
// deferred calls run before Kill returns, with the victim reported by ID. A
// Blocked thread is only flagged; it runs its own exit path the next time it
// is scheduled, instead of returning to the code it was blocked in.
//
// Errors: ErrInvalid for the caller's own id, an out-of-range id, a free slot,
// or the initial thread, which can only leave through Exit.
func (s *Scheduler) Kill(id Tid) (Tid, error) {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	t := s.reg.Get(id)
	if t == nil || t == s.current || t.cont.initial {
		return NoThread, ErrInvalid
	}

	switch t.state {
	case StateReady:
		if !s.ready.Remove(id) {
			s.fatal("kill", "ready thread missing from ready queue", F("tid", id))
		}
		t.cancelled = true
		s.teardownLocked(t)
		s.killed++
		s.metrics.RecordThreadExited(ExitCauseKilled)
		s.logger.Debug("ready thread killed", F("tid", id))
	case StateBlocked:
		t.cancelled = true
		s.logger.Debug("blocked thread flagged for cancellation", F("tid", id))
	default:
		s.fatal("kill", "target is neither ready nor blocked", F("tid", id), F("state", t.state))
	}

	s.publish()
	return id, nil
}

// Checkpoint delivers a pending interrupt: if the gate is open and the
// interrupt source has fired, the running thread yields to the ready queue
// head. It reports whether a switch happened.
func (s *Scheduler) Checkpoint() bool {
	if !s.gate.Take() {
		return false
	}
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	_, err := s.yieldLocked(Any, SwitchPreempt)
	return err == nil
}

// Shutdown tears down every thread except the caller, which must be the
// initial thread. Deferred calls of started threads run before Shutdown
// returns. Afterwards Create fails with ErrClosed.
func (s *Scheduler) Shutdown() error {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	if s.closed {
		return nil
	}
	cur := s.current
	if !cur.cont.initial {
		return ErrInvalid
	}
	s.closed = true

	var victims []*thread
	s.reg.Each(func(t *thread) {
		if t != cur {
			victims = append(victims, t)
		}
	})

	for _, t := range victims {
		if s.reg.Get(t.id) != t {
			continue
		}
		switch t.state {
		case StateReady:
			s.ready.Remove(t.id)
		case StateBlocked:
			t.waitq.ids.Remove(t.id)
			t.waitq = nil
		}
		t.state = StateExiting
		s.unwind(t)
		s.destroyLocked(t, "shutdown")
	}

	s.publish()
	s.logger.Info("scheduler shut down", F("torn_down", len(victims)))
	return nil
}

// exitLocked tears down the running thread t and hands control to the ready
// queue head. The caller's goroutine must terminate right after.
func (s *Scheduler) exitLocked(t *thread, cause string) {
	if s.current != t {
		s.fatal("exit", "exiting thread is not the running thread", F("tid", t.id))
	}

	t.state = StateExiting
	s.wakeupLocked(t.joinq, true)
	s.destroyLocked(t, "exit")
	if cause == ExitCauseKilled {
		s.killed++
	}
	s.metrics.RecordThreadExited(cause)
	s.logger.Debug("thread exited", F("tid", t.id), F("cause", cause))

	id, ok := s.ready.Pop()
	if !ok {
		s.current = nil
		s.publish()
		s.logger.Info("last runnable thread exited", F("tid", t.id), F("live", s.reg.Live()))
		s.exitFunc(0)
		return
	}

	next := s.reg.Get(id)
	if next == nil || next.state != StateReady {
		s.fatal("exit", "ready queue head is not a ready thread", F("tid", id))
	}
	next.state = StateRunning
	s.current = next
	s.recordSwitch(t.id, next.id, SwitchExit)
	s.publish()
	s.dispatch(next)
}

// teardownLocked releases a thread that is not running and not queued.
func (s *Scheduler) teardownLocked(t *thread) {
	t.state = StateExiting
	s.wakeupLocked(t.joinq, true)
	s.unwind(t)
	s.destroyLocked(t, "kill")
}

// destroyLocked releases the stack, join queue and identifier of t, in that order.
func (s *Scheduler) destroyLocked(t *thread, op string) {
	if t.stack != nil {
		if err := s.stacks.Release(t.stack); err != nil {
			s.fatal(op, "stack release failed", F("tid", t.id), F("error", err))
		}
		t.stack = nil
	}
	if t.joinq != nil {
		t.joinq.ids.Clear()
		s.dropQueueLocked(t.joinq)
	}
	if !s.reg.Release(t.id, true) {
		s.fatal(op, "thread record released twice", F("tid", t.id))
	}
	s.exited++
}

// run makes next the running thread and switches to it. It returns when cur
// is scheduled again and reports whether cur was killed in the meantime.
func (s *Scheduler) run(cur, next *thread, reason SwitchReason) bool {
	next.state = StateRunning
	s.current = next
	s.recordSwitch(cur.id, next.id, reason)
	s.publish()

	s.switchTo(cur, next)

	if s.current != cur {
		s.fatal("resume", "resumed thread is not the current thread", F("tid", cur.id))
	}
	return cur.cancelled
}

// exitCancelled runs the exit path of t, the running thread, after it resumed
// with a pending cancellation. It does not return.
func (s *Scheduler) exitCancelled(t *thread) {
	s.logger.Debug("cancelled thread resumed, exiting", F("tid", t.id))
	s.Exit()
}

func (s *Scheduler) recordSwitch(from, to Tid, reason SwitchReason) {
	now := time.Now()
	ran := now.Sub(s.lastSwitch)
	s.lastSwitch = now

	s.switches++
	s.history.Add(SwitchRecord{From: from, To: to, Reason: reason, At: now})
	s.metrics.RecordSwitch(reason, ran)
}

// publish refreshes the snapshot returned by Stats.
func (s *Scheduler) publish() {
	current := NoThread
	running := 0
	if s.current != nil {
		current = s.current.id
		running = 1
	}
	ready := s.ready.Len()
	live := s.reg.Live()

	s.statsMu.Lock()
	s.stats = SchedulerStats{
		Current:  current,
		Capacity: s.reg.Cap(),
		Live:     live,
		Ready:    ready,
		Blocked:  live - ready - running,
		Switches: s.switches,
		Created:  s.created,
		Exited:   s.exited,
		Killed:   s.killed,
		Closed:   s.closed,
	}
	s.statsMu.Unlock()

	s.metrics.RecordReadyDepth(ready)
}

// Stats returns the latest published snapshot. Safe to call from any goroutine.
func (s *Scheduler) Stats() SchedulerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// RecentSwitches returns up to limit of the latest context switches, oldest
// first. Safe to call from any goroutine.
func (s *Scheduler) RecentSwitches(limit int) []SwitchRecord {
	return s.history.Recent(limit)
}

// ThreadState reports the state of id, or false if the slot is free.
func (s *Scheduler) ThreadState(id Tid) (State, bool) {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	t := s.reg.Get(id)
	if t == nil {
		return 0, false
	}
	return t.state, true
}

// ReadyQueue returns the ready queue from head to tail.
func (s *Scheduler) ReadyQueue() []Tid {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)
	return s.ready.Snapshot()
}

// CheckInvariants verifies that exactly one thread is running and that every
// live thread is in exactly one of: the running slot, the ready queue, or one
// wait queue.
func (s *Scheduler) CheckInvariants() error {
	enabled := s.gate.Off()
	defer s.gate.Set(enabled)

	var errs []error
	seen := make(map[Tid]int)

	for _, id := range s.ready.ids {
		seen[id]++
		t := s.reg.Get(id)
		switch {
		case t == nil:
			errs = append(errs, fmt.Errorf("ready queue holds free id %d", id))
		case t.state != StateReady:
			errs = append(errs, fmt.Errorf("ready queue holds thread %d in state %s", id, t.state))
		}
	}

	for wq := range s.queues {
		for _, id := range wq.ids.ids {
			seen[id]++
			t := s.reg.Get(id)
			switch {
			case t == nil:
				errs = append(errs, fmt.Errorf("wait queue holds free id %d", id))
			case t.state != StateBlocked:
				errs = append(errs, fmt.Errorf("wait queue holds thread %d in state %s", id, t.state))
			case t.waitq != wq:
				errs = append(errs, fmt.Errorf("thread %d queued on a wait queue it is not blocked on", id))
			}
		}
	}

	running := 0
	s.reg.Each(func(t *thread) {
		switch t.state {
		case StateRunning:
			running++
			if t != s.current {
				errs = append(errs, fmt.Errorf("thread %d is running but not current", t.id))
			}
			if seen[t.id] != 0 {
				errs = append(errs, fmt.Errorf("running thread %d is also queued", t.id))
			}
		case StateReady, StateBlocked:
			if seen[t.id] != 1 {
				errs = append(errs, fmt.Errorf("thread %d (%s) is queued %d times", t.id, t.state, seen[t.id]))
			}
		default:
			errs = append(errs, fmt.Errorf("thread %d observed in state %s", t.id, t.state))
		}
	})
	if running != 1 {
		errs = append(errs, fmt.Errorf("%d running threads, want 1", running))
	}

	return errors.Join(errs...)
}

// fatal reports an unrecoverable inconsistency and aborts.
func (s *Scheduler) fatal(op, msg string, fields ...Field) {
	s.logger.Error("scheduler invariant violated: "+msg, append([]Field{F("op", op)}, fields...)...)
	panic(&InvariantError{Op: op, Msg: msg})
}
