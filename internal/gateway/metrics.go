package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the gateway collectors and registers them on reg.
// A nil reg leaves them unregistered, which is what most tests want.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "card_payments",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of remote API calls by endpoint and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "outcome"}),
	}
	if reg != nil {
		if err := reg.Register(m.RequestDuration); err != nil {
			return nil, err
		}
	}
	return m, nil
}
