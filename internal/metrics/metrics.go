package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	execTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskrun",
			Subsystem: "exec",
			Name:      "invocations_total",
			Help:      "Number of process invocations by mode and outcome.",
		}, []string{"mode", "outcome"},
	)
	execDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskrun",
			Subsystem: "exec",
			Name:      "duration_seconds",
			Help:      "Wall time of buffered and streaming invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"},
	)
	fileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskrun",
			Subsystem: "fs",
			Name:      "operations_total",
			Help:      "Number of filesystem operations by name and outcome.",
		}, []string{"op", "outcome"},
	)
	runLogLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskrun",
			Subsystem: "runlog",
			Name:      "lines_total",
			Help:      "Lines appended to the run log.",
		},
	)
	runLogErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskrun",
			Subsystem: "runlog",
			Name:      "write_errors_total",
			Help:      "Run log writes that failed and were skipped.",
		},
	)
	historyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskrun",
			Subsystem: "history",
			Name:      "send_errors_total",
			Help:      "History events a sink failed to accept.",
		}, []string{"type"},
	)
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{execTotal, execDuration, fileOps, runLogLines, runLogErrors, historyErrors}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile writes the current state of g in the text exposition format
// to path, suitable for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func ObserveExec(mode string, seconds float64, err error) {
	if regOK.Load() {
		execTotal.WithLabelValues(mode, outcome(err)).Inc()
		if seconds > 0 {
			execDuration.WithLabelValues(mode).Observe(seconds)
		}
	}
}

func IncFileOp(op string, err error) {
	if regOK.Load() {
		fileOps.WithLabelValues(op, outcome(err)).Inc()
	}
}

func IncRunLogLine() {
	if regOK.Load() {
		runLogLines.Inc()
	}
}

func IncRunLogError() {
	if regOK.Load() {
		runLogErrors.Inc()
	}
}

func IncHistoryError(eventType string) {
	if regOK.Load() {
		historyErrors.WithLabelValues(eventType).Inc()
	}
}
