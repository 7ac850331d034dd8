// Package workload holds the demo programs run by the uthread command.
// Every function must be called from the running thread of s.
package workload

import (
	"fmt"
	"time"

	"github.com/Swind/go-uthread/core"
)

// RoundRobin creates threads that each record their id and yield rounds
// times, joins them all, and returns the observed run order.
func RoundRobin(s *core.Scheduler, threads, rounds int) ([]core.Tid, error) {
	var order []core.Tid

	ids := make([]core.Tid, 0, threads)
	for range threads {
		id, err := s.Create(func(arg any) {
			for range rounds {
				order = append(order, s.ID())
				s.Yield(core.Any)
			}
		}, nil)
		if err != nil {
			return order, fmt.Errorf("create worker %d: %w", len(ids), err)
		}
		ids = append(ids, id)
	}

	if err := joinAll(s, ids); err != nil {
		return order, err
	}
	return order, nil
}

// ProducerConsumerResult summarizes one producer/consumer run.
type ProducerConsumerResult struct {
	Produced int
	Consumed int
	// PerConsumer maps each consumer id to the number of items it took.
	PerConsumer map[core.Tid]int
	// Ordered is true when every consumer saw each producer's items in order.
	Ordered bool
}

type item struct {
	producer int
	seq      int
}

// ProducerConsumer moves items from producers to consumers through a bounded
// buffer of the given capacity. Each producer puts itemsEach items.
func ProducerConsumer(s *core.Scheduler, producers, consumers, itemsEach, capacity int) (ProducerConsumerResult, error) {
	res := ProducerConsumerResult{PerConsumer: make(map[core.Tid]int), Ordered: true}
	if producers < 1 || consumers < 1 {
		return res, fmt.Errorf("need at least one producer and one consumer: %w", core.ErrInvalid)
	}
	buf := core.NewBoundedBuffer[item](s, capacity)

	var consumerIDs []core.Tid
	for range consumers {
		id, err := s.Create(func(arg any) {
			last := make(map[int]int)
			for {
				it, ok := buf.Get()
				if !ok {
					return
				}
				if prev, seen := last[it.producer]; seen && it.seq <= prev {
					res.Ordered = false
				}
				last[it.producer] = it.seq
				res.Consumed++
				res.PerConsumer[s.ID()]++
			}
		}, nil)
		if err != nil {
			return res, fmt.Errorf("create consumer: %w", err)
		}
		consumerIDs = append(consumerIDs, id)
	}

	var producerIDs []core.Tid
	for p := range producers {
		id, err := s.Create(func(arg any) {
			for i := range itemsEach {
				if err := buf.Put(item{producer: p, seq: i}); err != nil {
					return
				}
				res.Produced++
			}
		}, nil)
		if err != nil {
			buf.Close()
			return res, fmt.Errorf("create producer: %w", err)
		}
		producerIDs = append(producerIDs, id)
	}

	if err := joinAll(s, producerIDs); err != nil {
		return res, err
	}
	buf.Close()
	if err := joinAll(s, consumerIDs); err != nil {
		return res, err
	}
	return res, nil
}

// Spin creates threads that busy-loop for d, calling Checkpoint on every
// iteration. It returns how many preemptions each thread observed. With no
// interrupt source running, each thread spins to completion in turn.
func Spin(s *core.Scheduler, threads int, d time.Duration) (map[core.Tid]int, error) {
	preempted := make(map[core.Tid]int)

	ids := make([]core.Tid, 0, threads)
	for range threads {
		id, err := s.Create(func(arg any) {
			deadline := time.Now().Add(d)
			for time.Now().Before(deadline) {
				if s.Checkpoint() {
					preempted[s.ID()]++
				}
			}
		}, nil)
		if err != nil {
			return preempted, fmt.Errorf("create spinner: %w", err)
		}
		ids = append(ids, id)
	}

	if err := joinAll(s, ids); err != nil {
		return preempted, err
	}
	return preempted, nil
}

func joinAll(s *core.Scheduler, ids []core.Tid) error {
	for _, id := range ids {
		if _, err := s.Wait(id); err != nil {
			return fmt.Errorf("join thread %d: %w", id, err)
		}
	}
	return nil
}
