package core

import "errors"

// ErrBufferClosed is returned by Put on a closed buffer.
var ErrBufferClosed = errors.New("uthread: buffer closed")

// BoundedBuffer is a fixed-capacity FIFO shared by user-level threads.
// Producers block while it is full and consumers block while it is empty.
type BoundedBuffer[T any] struct {
	lock     *Lock
	notFull  *Cond
	notEmpty *Cond

	items  []T
	in     int
	out    int
	count  int
	closed bool
}

// NewBoundedBuffer creates a buffer holding at most capacity items.
func NewBoundedBuffer[T any](s *Scheduler, capacity int) *BoundedBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedBuffer[T]{
		lock:     s.NewLock(),
		notFull:  s.NewCond(),
		notEmpty: s.NewCond(),
		items:    make([]T, capacity),
	}
}

// Put appends v, waiting for room.
func (b *BoundedBuffer[T]) Put(v T) error {
	b.lock.Acquire()
	defer b.lock.Release()

	for b.count == len(b.items) && !b.closed {
		b.notFull.Wait(b.lock)
	}
	if b.closed {
		return ErrBufferClosed
	}

	b.items[b.in] = v
	b.in = (b.in + 1) % len(b.items)
	b.count++
	b.notEmpty.Signal(b.lock)
	return nil
}

// Get removes the oldest item, waiting for one to arrive. It returns false
// once the buffer is closed and drained.
func (b *BoundedBuffer[T]) Get() (T, bool) {
	b.lock.Acquire()
	defer b.lock.Release()

	for b.count == 0 && !b.closed {
		b.notEmpty.Wait(b.lock)
	}

	var zero T
	if b.count == 0 {
		return zero, false
	}

	v := b.items[b.out]
	b.items[b.out] = zero
	b.out = (b.out + 1) % len(b.items)
	b.count--
	b.notFull.Signal(b.lock)
	return v, true
}

// Close wakes every blocked producer and consumer. Items already buffered
// can still be taken.
func (b *BoundedBuffer[T]) Close() {
	b.lock.Acquire()
	defer b.lock.Release()

	b.closed = true
	b.notFull.Broadcast(b.lock)
	b.notEmpty.Broadcast(b.lock)
}

// Len returns the number of buffered items.
func (b *BoundedBuffer[T]) Len() int {
	b.lock.Acquire()
	defer b.lock.Release()
	return b.count
}

// Cap returns the buffer capacity.
func (b *BoundedBuffer[T]) Cap() int {
	return len(b.items)
}
