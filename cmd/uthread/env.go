package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Swind/go-uthread/core"
	"github.com/Swind/go-uthread/interrupt"
	obs "github.com/Swind/go-uthread/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

// env is the scheduler and its supporting services for one command run.
// It must be created on the goroutine that runs the workload.
type env struct {
	sched  *core.Scheduler
	logger core.Logger

	timer  *interrupt.Timer
	poller *obs.SnapshotPoller
	server *http.Server
	linger time.Duration
}

func newEnv(c *cli.Context) (*env, error) {
	logger := core.NewDefaultLogger(c.Bool("debug"))
	gate := interrupt.NewGate(true)

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter("uthread", reg, obs.ExporterOptions{})
	if err != nil {
		return nil, err
	}

	cfg := core.DefaultSchedulerConfig()
	cfg.MaxThreads = c.Int("max-threads")
	cfg.StackSize = c.Int("stack-size")
	cfg.Stacks = core.NewBudgetStackAllocator(c.Int64("stack-budget"))
	cfg.Gate = gate
	cfg.Logger = logger
	cfg.Metrics = exporter

	e := &env{
		sched:  core.NewScheduler(cfg),
		logger: logger,
		linger: c.Duration("metrics-linger"),
	}

	if interval := c.Duration("preempt"); interval > 0 {
		e.timer = interrupt.NewTimer(gate, interval)
		e.timer.Start(c.Context)
		logger.Info("preemption enabled", core.F("interval", interval))
	}

	if addr := c.String("metrics-addr"); addr != "" {
		poller, err := obs.NewSnapshotPoller(reg, 100*time.Millisecond)
		if err != nil {
			e.close()
			return nil, err
		}
		poller.AddScheduler("main", e.sched)
		poller.AddInterruptSource("main", gate)
		poller.Start(c.Context)
		e.poller = poller

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		e.server = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", core.F("addr", addr), core.F("error", err))
			}
		}()
		logger.Info("serving metrics", core.F("addr", addr))
	}

	return e, nil
}

// close stops preemption, tears down remaining threads, and stops the metrics
// endpoint after the configured linger time.
func (e *env) close() {
	if e.timer != nil {
		e.timer.Stop()
	}
	if err := e.sched.Shutdown(); err != nil {
		e.logger.Warn("scheduler shutdown failed", core.F("error", err))
	}

	if e.poller != nil {
		e.poller.CollectOnce()
		if e.linger > 0 {
			e.logger.Info("keeping metrics endpoint up", core.F("linger", e.linger))
			time.Sleep(e.linger)
		}
		e.poller.Stop()
	}
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.server.Shutdown(ctx)
	}
}
