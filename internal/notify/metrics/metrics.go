package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for citizen notifications.
type Metrics struct {
	// Notifications recorded for delivery, by channel
	Sent *prometheus.CounterVec
}

// New creates a new Metrics instance with all notification metrics registered.
func New() *Metrics {
	return &Metrics{
		Sent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govdociq_notifications_sent_total",
			Help: "Total notifications recorded for delivery by channel",
		}, []string{"channel"}),
	}
}

// IncrementSent records a notification handed to a channel.
func (m *Metrics) IncrementSent(channel string) {
	if m != nil {
		m.Sent.WithLabelValues(channel).Inc()
	}
}
