package push

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linesmerrill/lead-push/models"
)

// Metrics counts deliver calls and per-device outcomes
type Metrics struct {
	deliveries *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
}

// NewMetrics registers the delivery counters on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lead_push",
			Name:      "deliveries_total",
			Help:      "Number of deliver calls, by whether any device was reached.",
		}, []string{"reached"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lead_push",
			Name:      "delivery_outcomes_total",
			Help:      "Per-device delivery outcomes.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.deliveries, m.outcomes)
	return m
}

func (m *Metrics) observe(summary models.DeliverySummary) {
	if m == nil {
		return
	}
	reached := "false"
	if summary.DeliveredCount > 0 {
		reached = "true"
	}
	m.deliveries.WithLabelValues(reached).Inc()
	for _, o := range summary.Outcomes {
		m.outcomes.WithLabelValues(string(o.Result)).Inc()
	}
}
