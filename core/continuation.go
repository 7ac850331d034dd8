package core

import (
	"runtime"
	"runtime/debug"
)

type wakeSignal uint8

const (
	wakeRun wakeSignal = iota
	// wakeCancel makes a parked thread unwind without returning to user code.
	wakeCancel
)

// continuation is the saved execution context of one thread.
//
// Every thread runs on its own goroutine, and at most one of those goroutines
// is outside park at any time. A thread suspends by parking on its wake
// channel; it is resumed when another thread posts a token there. The wake
// channel has one slot, so a token posted before the target reaches park is
// not lost.
//
// A continuation is owned by exactly one thread record and is never copied.
type continuation struct {
	wake chan wakeSignal

	// done is closed once a trampoline goroutine has finished unwinding.
	done chan struct{}

	// started is set when the goroutine has been launched.
	started bool

	// initial marks the context that called NewScheduler. It has no trampoline.
	initial bool

	// detached is set by the scheduler before it cancels a parked thread whose
	// record has already been torn down.
	detached bool
}

// newContinuation seeds a context that will begin in the trampoline on its first dispatch.
func newContinuation() *continuation {
	return &continuation{
		wake: make(chan wakeSignal, 1),
		done: make(chan struct{}),
	}
}

// initialContinuation captures the calling goroutine as an already running context.
func initialContinuation() *continuation {
	c := newContinuation()
	c.started = true
	c.initial = true
	return c
}

// post hands a token to the context. It fails if a token is already waiting,
// which means two threads tried to resume the same context.
func (c *continuation) post(sig wakeSignal) bool {
	select {
	case c.wake <- sig:
		return true
	default:
		return false
	}
}

// park suspends the calling goroutine until its context is resumed.
func (c *continuation) park() {
	if sig := <-c.wake; sig == wakeCancel {
		runtime.Goexit()
	}
}

// dispatch transfers control to t, starting its goroutine on first use.
// The caller must park (or terminate) right after; it must not touch
// scheduler state once dispatch returns.
func (s *Scheduler) dispatch(t *thread) {
	c := t.cont
	if !c.started {
		c.started = true
		go s.trampoline(t)
		return
	}
	if !c.post(wakeRun) {
		s.fatal("dispatch", "thread already holds a wake token", F("tid", t.id))
	}
}

// switchTo suspends from and resumes to. It returns when from is resumed.
func (s *Scheduler) switchTo(from, to *thread) {
	c := from.cont
	s.dispatch(to)
	c.park()
}

// unwind terminates the goroutine of a thread that is not running and whose
// record is being torn down. It waits until the goroutine has finished, so
// deferred calls in the victim never overlap with the caller. While they run
// the victim is the current thread.
func (s *Scheduler) unwind(t *thread) {
	c := t.cont
	if !c.started {
		return
	}
	if c.initial {
		s.fatal("unwind", "the initial thread has no trampoline to unwind", F("tid", t.id))
	}
	c.detached = true

	prev := s.current
	s.current = t
	if !c.post(wakeCancel) {
		s.fatal("unwind", "thread already holds a wake token", F("tid", t.id))
	}
	<-c.done
	s.current = prev
	// The victim's deferred calls may have restored their own gate state.
	s.gate.Off()
}

// trampoline is where every created thread begins: it opens the interrupt
// gate, runs the entry function, and then falls into the exit path.
func (s *Scheduler) trampoline(t *thread) {
	defer s.finish(t)

	s.gate.On()
	if t.cancelled {
		return
	}
	t.entry(t.arg)
}

// finish runs after the entry function returned, called Exit, or panicked,
// once all of the thread's own deferred calls have run.
func (s *Scheduler) finish(t *thread) {
	rec := recover()
	if ie, ok := rec.(*InvariantError); ok {
		panic(ie)
	}

	c := t.cont
	if c.detached {
		if rec != nil {
			s.panics.HandlePanic(t.id, rec, debug.Stack())
		}
		close(c.done)
		return
	}

	cause := ExitCauseReturned
	if t.cancelled {
		cause = ExitCauseKilled
	}
	if rec != nil {
		cause = ExitCausePanicked
		s.logger.Warn("thread panicked", F("tid", t.id), F("panic", rec))
		s.panics.HandlePanic(t.id, rec, debug.Stack())
	}

	s.gate.Off()
	close(c.done)
	s.exitLocked(t, cause)
}
