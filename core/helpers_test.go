package core

import (
	"errors"
	"sync"
	"testing"
)

// recordingPanicHandler captures panics raised by thread entry functions.
type recordingPanicHandler struct {
	mu    sync.Mutex
	calls []panicCall
}

type panicCall struct {
	Tid       Tid
	PanicInfo any
	Stack     []byte
}

func (h *recordingPanicHandler) HandlePanic(tid Tid, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, panicCall{Tid: tid, PanicInfo: panicInfo, Stack: stackTrace})
}

func (h *recordingPanicHandler) Calls() []panicCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]panicCall, len(h.calls))
	copy(out, h.calls)
	return out
}

// newTestScheduler makes the test goroutine the initial thread of a fresh
// scheduler and shuts it down when the test ends.
func newTestScheduler(t *testing.T, configure func(cfg *SchedulerConfig)) *Scheduler {
	t.Helper()

	cfg := DefaultSchedulerConfig()
	cfg.ExitFunc = func(code int) {
		t.Errorf("unexpected process exit with code %d", code)
	}
	if configure != nil {
		configure(cfg)
	}

	s := NewScheduler(cfg)
	t.Cleanup(func() {
		if err := s.Shutdown(); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return s
}

// mustCreate creates a thread or fails the test.
func mustCreate(t *testing.T, s *Scheduler, fn Entry, arg any) Tid {
	t.Helper()
	id, err := s.Create(fn, arg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return id
}

// mustJoin waits for id from the initial thread or fails the test.
func mustJoin(t *testing.T, s *Scheduler, id Tid) {
	t.Helper()
	got, err := s.Wait(id)
	if err != nil {
		t.Fatalf("Wait(%d) error = %v", id, err)
	}
	if got != id {
		t.Fatalf("Wait(%d) = %d", id, got)
	}
}

func assertInvariants(t *testing.T, s *Scheduler) {
	t.Helper()
	if err := s.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants() = %v", err)
	}
}

// expectInvariantPanic runs fn and asserts it raises an *InvariantError.
func expectInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		rec := recover()
		var ie *InvariantError
		err, ok := rec.(error)
		if !ok || !errors.As(err, &ie) {
			t.Fatalf("recovered %v, want *InvariantError", rec)
		}
	}()
	fn()
}
