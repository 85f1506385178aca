package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document lifecycle.
type Metrics struct {
	// Documents created per tenant
	Created *prometheus.CounterVec

	// Lifecycle transitions by target state
	Transitions *prometheus.CounterVec

	// End to end processing latency
	ProcessLatency prometheus.Histogram

	// Failed processing runs
	ProcessFailures prometheus.Counter
}

// New creates a new Metrics instance with all document metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdociq_documents_created_total",
			Help: "Total documents created by tenant",
		}, []string{"tenant_id"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdociq_document_transitions_total",
			Help: "Total lifecycle transitions by target state",
		}, []string{"to_state"}),

		ProcessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "govdociq_document_process_duration_seconds",
			Help:    "Duration of full pipeline processing per document",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		ProcessFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govdociq_document_process_failures_total",
			Help: "Total pipeline runs that ended in FAILED",
		}),
	}
}

// IncrementCreated records a created document.
func (m *Metrics) IncrementCreated(tenantID string) {
	if m != nil {
		m.Created.WithLabelValues(tenantID).Inc()
	}
}

// IncrementTransition records a lifecycle transition.
func (m *Metrics) IncrementTransition(toState string) {
	if m != nil {
		m.Transitions.WithLabelValues(toState).Inc()
	}
}

// ObserveProcessLatency records one processing run's duration.
func (m *Metrics) ObserveProcessLatency(d time.Duration) {
	if m != nil {
		m.ProcessLatency.Observe(d.Seconds())
	}
}

// IncrementProcessFailure records a run that ended in FAILED.
func (m *Metrics) IncrementProcessFailure() {
	if m != nil {
		m.ProcessFailures.Inc()
	}
}
