package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-uthread/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// SliceBuckets are the histogram buckets, in seconds, for the time a thread
	// held the processor between two switches.
	SliceBuckets []float64
}

// DefaultSliceBuckets spans 1µs to about 1s.
var DefaultSliceBuckets = prom.ExponentialBuckets(1e-6, 4, 11)

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	switchesTotal       *prom.CounterVec
	runSliceSeconds     *prom.HistogramVec
	threadsCreatedTotal prom.Counter
	threadsExitedTotal  *prom.CounterVec
	createRejectedTotal *prom.CounterVec
	readyQueueDepth     prom.Gauge
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "uthread"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.SliceBuckets
	if len(buckets) == 0 {
		buckets = DefaultSliceBuckets
	}

	switchesVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "switches_total",
		Help:      "Total number of context switches by reason.",
	}, []string{"reason"})
	sliceVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "run_slice_seconds",
		Help:      "Time the outgoing thread held the processor before a switch.",
		Buckets:   buckets,
	}, []string{"reason"})
	created := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "threads_created_total",
		Help:      "Total number of threads created.",
	})
	exitedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "threads_exited_total",
		Help:      "Total number of threads torn down by cause.",
	}, []string{"cause"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "create_rejected_total",
		Help:      "Total number of failed thread creations by reason.",
	}, []string{"reason"})
	readyDepth := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ready_queue_depth",
		Help:      "Current ready queue length.",
	})

	var err error
	if switchesVec, err = registerCollector(reg, switchesVec); err != nil {
		return nil, err
	}
	if sliceVec, err = registerCollector(reg, sliceVec); err != nil {
		return nil, err
	}
	if created, err = registerCollector(reg, created); err != nil {
		return nil, err
	}
	if exitedVec, err = registerCollector(reg, exitedVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if readyDepth, err = registerCollector(reg, readyDepth); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		switchesTotal:       switchesVec,
		runSliceSeconds:     sliceVec,
		threadsCreatedTotal: created,
		threadsExitedTotal:  exitedVec,
		createRejectedTotal: rejectedVec,
		readyQueueDepth:     readyDepth,
	}, nil
}

// RecordSwitch records a context switch and the run slice that preceded it.
func (m *MetricsExporter) RecordSwitch(reason core.SwitchReason, ran time.Duration) {
	if m == nil {
		return
	}
	label := normalizeLabel(string(reason), "unknown")
	m.switchesTotal.WithLabelValues(label).Inc()
	m.runSliceSeconds.WithLabelValues(label).Observe(ran.Seconds())
}

// RecordThreadCreated records a successful thread creation.
func (m *MetricsExporter) RecordThreadCreated() {
	if m == nil {
		return
	}
	m.threadsCreatedTotal.Inc()
}

// RecordThreadExited records a thread teardown.
func (m *MetricsExporter) RecordThreadExited(cause string) {
	if m == nil {
		return
	}
	m.threadsExitedTotal.WithLabelValues(normalizeLabel(cause, "unknown")).Inc()
}

// RecordCreateRejected records a failed thread creation.
func (m *MetricsExporter) RecordCreateRejected(reason string) {
	if m == nil {
		return
	}
	m.createRejectedTotal.WithLabelValues(normalizeLabel(reason, "unknown")).Inc()
}

// RecordReadyDepth records the ready queue length.
func (m *MetricsExporter) RecordReadyDepth(depth int) {
	if m == nil {
		return
	}
	m.readyQueueDepth.Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
