package analytics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts events by name.
type PrometheusSink struct {
	Events *prometheus.CounterVec
}

// NewPrometheusSink creates the counter and registers it on reg when reg is non-nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "card_payments",
		Subsystem: "analytics",
		Name:      "events_total",
		Help:      "Analytics events emitted by the card client.",
	}, []string{"event"})
	if reg != nil {
		if err := reg.Register(events); err != nil {
			return nil, err
		}
	}
	return &PrometheusSink{Events: events}, nil
}

func (p *PrometheusSink) Send(_ context.Context, event Event) {
	p.Events.WithLabelValues(event.Name).Inc()
}
