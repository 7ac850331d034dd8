package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStackBudget is returned by BudgetStackAllocator when the byte limit would be exceeded.
var ErrStackBudget = errors.New("uthread: stack budget exhausted")

// Stack is a stack region owned exclusively by one thread.
// Threads may use Bytes as scratch memory for the lifetime of the thread.
type Stack struct {
	mem []byte
}

// Bytes returns the region.
func (s *Stack) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.mem
}

// Size returns the region length.
func (s *Stack) Size() int {
	if s == nil {
		return 0
	}
	return len(s.mem)
}

// StackAllocator hands out and takes back thread stack regions.
// Each region is allocated once per thread lifetime and released exactly once.
type StackAllocator interface {
	Allocate(size int) (*Stack, error)
	Release(stack *Stack) error
}

// BudgetStackAllocator allocates regions from the Go heap while keeping the
// total bytes in use under an optional limit.
type BudgetStackAllocator struct {
	mu    sync.Mutex
	limit int64
	inUse int64
	live  map[*Stack]struct{}
}

// NewBudgetStackAllocator creates an allocator. limit <= 0 means unlimited.
func NewBudgetStackAllocator(limit int64) *BudgetStackAllocator {
	return &BudgetStackAllocator{
		limit: limit,
		live:  make(map[*Stack]struct{}),
	}
}

// Allocate returns a fresh zeroed region of size bytes.
func (a *BudgetStackAllocator) Allocate(size int) (*Stack, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocate stack of %d bytes: %w", size, ErrStackBudget)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.limit > 0 && a.inUse+int64(size) > a.limit {
		return nil, fmt.Errorf("allocate %d bytes with %d/%d in use: %w", size, a.inUse, a.limit, ErrStackBudget)
	}

	s := &Stack{mem: make([]byte, size)}
	a.live[s] = struct{}{}
	a.inUse += int64(size)
	return s, nil
}

// Release returns a region. Releasing an unknown or already released region is an error.
func (a *BudgetStackAllocator) Release(stack *Stack) error {
	if stack == nil {
		return errors.New("release nil stack")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.live[stack]; !ok {
		return errors.New("release of a stack that is not allocated")
	}
	delete(a.live, stack)
	a.inUse -= int64(len(stack.mem))
	stack.mem = nil
	return nil
}

// InUse returns the bytes currently allocated.
func (a *BudgetStackAllocator) InUse() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Outstanding returns the number of regions not yet released.
func (a *BudgetStackAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
