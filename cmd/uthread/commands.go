package main

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Swind/go-uthread/internal/workload"
	"github.com/urfave/cli/v2"
)

func RoundRobinCommand() *cli.Command {
	return &cli.Command{
		Name:    "roundrobin",
		Aliases: []string{"rr"},
		Usage:   "Threads take turns through Yield(Any)",

		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threads", Aliases: []string{"n"}, Value: 4, Usage: "Number of worker threads"},
			&cli.IntFlag{Name: "rounds", Aliases: []string{"r"}, Value: 3, Usage: "Yields per worker"},
		},

		Action: RoundRobinAction,
	}
}

func RoundRobinAction(c *cli.Context) error {
	threads, rounds := c.Int("threads"), c.Int("rounds")
	if threads < 1 || rounds < 1 {
		return cli.Exit("threads and rounds must be positive", 1)
	}

	e, err := newEnv(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer e.close()

	order, err := workload.RoundRobin(e.sched, threads, rounds)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	fmt.Printf("✓ Run order: %v\n", order)
	printStats(e)
	return nil
}

func ProducerConsumerCommand() *cli.Command {
	return &cli.Command{
		Name:    "prodcons",
		Aliases: []string{"pc"},
		Usage:   "Producers and consumers share a bounded buffer",

		Flags: []cli.Flag{
			&cli.IntFlag{Name: "producers", Aliases: []string{"p"}, Value: 2, Usage: "Number of producer threads"},
			&cli.IntFlag{Name: "consumers", Aliases: []string{"c"}, Value: 2, Usage: "Number of consumer threads"},
			&cli.IntFlag{Name: "items", Value: 100, Usage: "Items put by each producer"},
			&cli.IntFlag{Name: "capacity", Value: 8, Usage: "Buffer capacity"},
		},

		Action: ProducerConsumerAction,
	}
}

func ProducerConsumerAction(c *cli.Context) error {
	producers, consumers := c.Int("producers"), c.Int("consumers")
	items, capacity := c.Int("items"), c.Int("capacity")
	if producers < 1 || consumers < 1 || items < 0 || capacity < 1 {
		return cli.Exit("producers, consumers and capacity must be positive", 1)
	}

	e, err := newEnv(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer e.close()

	res, err := workload.ProducerConsumer(e.sched, producers, consumers, items, capacity)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	fmt.Printf("✓ Produced %d, consumed %d, ordered=%v\n", res.Produced, res.Consumed, res.Ordered)
	for _, id := range slices.Sorted(maps.Keys(res.PerConsumer)) {
		fmt.Printf("  consumer %d took %d\n", id, res.PerConsumer[id])
	}
	printStats(e)
	return nil
}

const defaultSpin = 500 * time.Millisecond

func SpinCommand() *cli.Command {
	return &cli.Command{
		Name:  "spin",
		Usage: "Busy threads that only switch when preempted (use with --preempt)",

		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threads", Aliases: []string{"n"}, Value: 3, Usage: "Number of spinning threads"},
			&cli.DurationFlag{Name: "duration", Value: defaultSpin, Usage: "How long each thread spins"},
		},

		Action: SpinAction,
	}
}

func SpinAction(c *cli.Context) error {
	threads := c.Int("threads")
	if threads < 1 {
		return cli.Exit("threads must be positive", 1)
	}

	e, err := newEnv(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer e.close()

	preempted, err := workload.Spin(e.sched, threads, c.Duration("duration"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	fmt.Println("✓ Spin finished")
	for _, id := range slices.Sorted(maps.Keys(preempted)) {
		fmt.Printf("  thread %d preempted %d times\n", id, preempted[id])
	}
	printStats(e)
	return nil
}

func printStats(e *env) {
	st := e.sched.Stats()
	fmt.Printf("  switches=%d created=%d exited=%d killed=%d live=%d\n",
		st.Switches, st.Created, st.Exited, st.Killed, st.Live)
}
