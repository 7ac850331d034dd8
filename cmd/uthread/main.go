// Command uthread runs demo workloads on the user-level thread scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/Swind/go-uthread/core"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "uthread",
		Usage: "Run workloads on a user-level thread scheduler",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-threads",
				Value: core.DefaultMaxThreads,
				Usage: "Thread table capacity, including the initial thread",
			},
			&cli.IntFlag{
				Name:  "stack-size",
				Value: core.MinStackSize,
				Usage: "Stack region size per thread in bytes",
			},
			&cli.Int64Flag{
				Name:  "stack-budget",
				Usage: "Total bytes of stack regions that may be allocated (0 = unlimited)",
			},
			&cli.DurationFlag{
				Name:  "preempt",
				Usage: "Interrupt interval for preemption at checkpoints (0 = cooperative only)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. :2112",
			},
			&cli.DurationFlag{
				Name:  "metrics-linger",
				Usage: "Keep the metrics endpoint up this long after the workload finishes",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			RoundRobinCommand(),
			ProducerConsumerCommand(),
			SpinCommand(),
		},
	}
}
