package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CommitsTotal    *prometheus.CounterVec
	CommitRejected  *prometheus.CounterVec
	ConflictRetries prometheus.Counter
	FanoutFailures  *prometheus.CounterVec
	CommitDuration  prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CommitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_commits_total",
			Help: "Committed actions by action type",
		}, []string{"action"}),
		CommitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_commits_rejected_total",
			Help: "Rejected actions by reason (scope, status, pending, conflict)",
		}, []string{"reason"}),
		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_conflict_retries_total",
			Help: "Store write conflicts recovered by identifier regeneration",
		}),
		FanoutFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_fanout_failures_total",
			Help: "Post-commit side effect failures by subsystem",
		}, []string{"subsystem"}),
		CommitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "civreg_commit_duration_seconds",
			Help:    "End-to-end commit latency including fan-out",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncrementCommit records a successful commit of the given action type.
func (m *Metrics) IncrementCommit(action string) {
	if m == nil {
		return
	}
	m.CommitsTotal.WithLabelValues(action).Inc()
}

// IncrementRejected records a rejected action.
func (m *Metrics) IncrementRejected(reason string) {
	if m == nil {
		return
	}
	m.CommitRejected.WithLabelValues(reason).Inc()
}

// IncrementConflictRetry records one recovered write conflict.
func (m *Metrics) IncrementConflictRetry() {
	if m == nil {
		return
	}
	m.ConflictRetries.Inc()
}

// IncrementFanoutFailure records a failed post-commit side effect.
func (m *Metrics) IncrementFanoutFailure(subsystem string) {
	if m == nil {
		return
	}
	m.FanoutFailures.WithLabelValues(subsystem).Inc()
}

// ObserveCommitDuration records commit latency in seconds.
func (m *Metrics) ObserveCommitDuration(seconds float64) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(seconds)
}
