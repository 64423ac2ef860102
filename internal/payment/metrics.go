package payment

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

// Metrics tracks flow transitions and the resources flows hold.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions   *prometheus.CounterVec
	openStreams   prometheus.Gauge
	pendingTimers prometheus.Gauge
}

// NewMetrics creates the flow metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ryfty",
			Subsystem: "payment_flow",
			Name:      "transitions_total",
			Help:      "Payment flow state transitions by target state.",
		}, []string{"to"}),
		openStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ryfty",
			Subsystem: "payment_flow",
			Name:      "open_streams",
			Help:      "Event stream subscriptions currently held by payment flows.",
		}),
		pendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ryfty",
			Subsystem: "payment_flow",
			Name:      "pending_timers",
			Help:      "Confirmation timeouts currently armed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.openStreams, m.pendingTimers)
	}
	return m
}

func (m *Metrics) transition(to domain.FlowState) {
	if m != nil {
		m.transitions.WithLabelValues(string(to)).Inc()
	}
}

func (m *Metrics) streamOpened() {
	if m != nil {
		m.openStreams.Inc()
	}
}

func (m *Metrics) streamClosed() {
	if m != nil {
		m.openStreams.Dec()
	}
}

func (m *Metrics) timerArmed() {
	if m != nil {
		m.pendingTimers.Inc()
	}
}

func (m *Metrics) timerCleared() {
	if m != nil {
		m.pendingTimers.Dec()
	}
}
