// Package uthread provides user-level threads multiplexed onto a single
// logical execution stream.
//
// Threads are created, scheduled in strict FIFO order, yield voluntarily,
// exit, and may be killed by other threads. They block on wait queues, locks
// and condition variables. Exactly one thread runs at a time; control moves
// only at Yield, Sleep (and therefore contended Lock.Acquire and Cond.Wait),
// Exit, and at Checkpoint when a preemption timer has fired.
//
// # Quick Start
//
// Initialize the global scheduler from the goroutine that will become
// thread 0:
//
//	uthread.InitGlobalScheduler(nil)
//	defer uthread.ShutdownGlobalScheduler()
//
// Create threads and join them:
//
//	id, err := uthread.Create(func(arg any) {
//		for range 3 {
//			fmt.Println("hello from", uthread.ID())
//			uthread.Yield(uthread.Any)
//		}
//	}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	uthread.Wait(id)
//
// # Key Concepts
//
// Scheduler: owns the thread table, the ready queue and every wait queue.
// Create one directly with core.NewScheduler for isolated use, or use the
// process-wide scheduler through the package-level functions.
//
// Tid: a thread identifier in [0, MaxThreads). Identifiers are reused lowest
// first. Any and Self are yield targets, not identifiers.
//
// Lock and Cond: mutual exclusion and condition variables for user-level
// threads. A Cond carries no lock; every call takes the lock explicitly.
//
// # Preemption
//
// An interrupt.Timer raises interrupts on the scheduler's gate. Threads
// observe them by calling Checkpoint in long-running loops:
//
//	timer := interrupt.NewTimer(uthread.GetGlobalScheduler().Gate(), 10*time.Millisecond)
//	timer.Start(ctx)
//	defer timer.Stop()
//
// # Errors
//
// Operations return sentinel errors (ErrInvalid, ErrNone, ErrNoMoreIDs,
// ErrNoMemory, ErrClosed) compared with errors.Is. Corrupted scheduler state
// is reported by panicking with *core.InvariantError.
package uthread
