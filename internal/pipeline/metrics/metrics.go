package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for pipeline execution.
type Metrics struct {
	// Per-node wall-clock latency
	NodeDuration *prometheus.HistogramVec

	// Node failures by node name
	NodeFailures *prometheus.CounterVec

	// Completed pipeline runs
	Runs prometheus.Counter
}

// New creates and registers all pipeline metrics.
func New() *Metrics {
	return &Metrics{
		NodeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govdociq_pipeline_node_duration_seconds",
			Help:    "Wall-clock duration of each pipeline node",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"node"}),

		NodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdociq_pipeline_node_failures_total",
			Help: "Total node function failures by node",
		}, []string{"node"}),

		Runs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdociq_pipeline_runs_total",
			Help: "Total completed pipeline runs",
		}),
	}
}

// ObserveNodeDuration records the wall-clock duration of one node execution.
func (m *Metrics) ObserveNodeDuration(node string, d time.Duration) {
	if m != nil {
		m.NodeDuration.WithLabelValues(node).Observe(d.Seconds())
	}
}

// IncrementNodeFailure records a node function failure.
func (m *Metrics) IncrementNodeFailure(node string) {
	if m != nil {
		m.NodeFailures.WithLabelValues(node).Inc()
	}
}

// IncrementRuns records a completed pipeline run.
func (m *Metrics) IncrementRuns() {
	if m != nil {
		m.Runs.Inc()
	}
}
