// Package metrics exposes pipeline compiler/executor observability data.
//
// # Design rationale
//
// Two metric surfaces coexist, matching the dual-store pattern the teacher
// ships for its own FaaS metrics: plain package-level Prometheus collectors
// registered once via sync.Once (for external scraping), plus atomic
// in-process counters the CLI can print without standing up a Prometheus
// endpoint at all.
//
// # Concurrency
//
// Every exported collector is safe for concurrent use; Inc/Observe calls
// happen on the compiler and executor's hot paths and must not block.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// CompilationsTotal counts compile() calls by outcome ("success" or
	// "failure").
	CompilationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "compilations_total",
		Help:      "Total number of compiler invocations by outcome",
	}, []string{"outcome"})

	// CompilationDuration observes compile() wall time in seconds.
	CompilationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Name:      "compilation_duration_seconds",
		Help:      "Compiler wall-clock duration",
		Buckets:   prometheus.DefBuckets,
	})

	// NodesExecuted counts node dispatches by runtime kind.
	NodesExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "nodes_executed_total",
		Help:      "Total number of node executions by runtime",
	}, []string{"runtime"})

	// SandboxTimeouts is a per-runtime counter for sandbox invocations that
	// hit the wall-clock cap. It is registered with the others, but the
	// sandbox runner does not increment it, so it stays at zero.
	SandboxTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "sandbox_timeouts_total",
		Help:      "Total number of sandbox node executions that timed out",
	}, []string{"runtime"})

	// PipelinesStarted, PipelinesSucceeded, PipelinesFailed, and
	// PipelinesCancelled count execute() calls by terminal outcome.
	PipelinesStarted   = prometheus.NewCounter(prometheus.CounterOpts{Namespace: "pipeline", Name: "runs_started_total", Help: "Total pipeline runs started"})
	PipelinesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Namespace: "pipeline", Name: "runs_succeeded_total", Help: "Total pipeline runs that completed successfully"})
	PipelinesFailed    = prometheus.NewCounter(prometheus.CounterOpts{Namespace: "pipeline", Name: "runs_failed_total", Help: "Total pipeline runs that failed"})
	PipelinesCancelled = prometheus.NewCounter(prometheus.CounterOpts{Namespace: "pipeline", Name: "runs_cancelled_total", Help: "Total pipeline runs that were cancelled"})
)

// Register adds every collector in this package to reg. Safe to call more
// than once; registration only happens on the first call.
func Register(reg *prometheus.Registry) {
	registerOnce.Do(func() {
		reg.MustRegister(
			CompilationsTotal, CompilationDuration, NodesExecuted, SandboxTimeouts,
			PipelinesStarted, PipelinesSucceeded, PipelinesFailed, PipelinesCancelled,
		)
	})
}

// InProcess mirrors a small subset of the Prometheus counters as plain
// atomics, for callers (e.g. the CLI's `status` subcommand) that want a
// cheap snapshot without scraping an HTTP endpoint.
type InProcess struct {
	runsStarted   atomic.Int64
	runsSucceeded atomic.Int64
	runsFailed    atomic.Int64
	runsCancelled atomic.Int64
}

// Snapshot is a point-in-time read of InProcess's counters.
type Snapshot struct {
	RunsStarted   int64
	RunsSucceeded int64
	RunsFailed    int64
	RunsCancelled int64
}

var inProcess InProcess

// RecordRunStarted increments both the Prometheus and in-process counters.
func RecordRunStarted() {
	PipelinesStarted.Inc()
	inProcess.runsStarted.Add(1)
}

// RecordRunOutcome increments the matching Prometheus and in-process
// counters for a run's terminal state.
func RecordRunOutcome(success, cancelled bool) {
	switch {
	case cancelled:
		PipelinesCancelled.Inc()
		inProcess.runsCancelled.Add(1)
	case success:
		PipelinesSucceeded.Inc()
		inProcess.runsSucceeded.Add(1)
	default:
		PipelinesFailed.Inc()
		inProcess.runsFailed.Add(1)
	}
}

// ReadSnapshot returns the current in-process counter values.
func ReadSnapshot() Snapshot {
	return Snapshot{
		RunsStarted:   inProcess.runsStarted.Load(),
		RunsSucceeded: inProcess.runsSucceeded.Load(),
		RunsFailed:    inProcess.runsFailed.Load(),
		RunsCancelled: inProcess.runsCancelled.Load(),
	}
}
