package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision engine.
type Metrics struct {
	// Verdict counts by decision and risk level
	Verdicts *prometheus.CounterVec

	// Fused risk score distribution
	RiskScore prometheus.Histogram
}

// New creates a new Metrics instance with all decision metrics registered.
func New() *Metrics {
	return &Metrics{
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdociq_decision_verdicts_total",
			Help: "Total decision verdicts by decision and risk level",
		}, []string{"decision", "risk_level"}),

		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "govdociq_decision_risk_score",
			Help:    "Distribution of fused risk scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

// IncrementVerdict records a rendered verdict.
func (m *Metrics) IncrementVerdict(decision, riskLevel string) {
	if m != nil {
		m.Verdicts.WithLabelValues(decision, riskLevel).Inc()
	}
}

// ObserveRiskScore records a fused risk score.
func (m *Metrics) ObserveRiskScore(score float64) {
	if m != nil {
		m.RiskScore.Observe(score)
	}
}
