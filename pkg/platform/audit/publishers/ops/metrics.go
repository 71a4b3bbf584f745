package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ops audit tracking.
type Metrics struct {
	Tracked         prometheus.Counter
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
	QueueDepth      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Tracked: factory.NewCounter(prometheus.CounterOpts{
			Name: "parishnet_audit_ops_tracked_total",
			Help: "Operational audit events persisted",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "parishnet_audit_ops_dropped_total",
			Help: "Operational audit events dropped because the queue was full or closed",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "parishnet_audit_ops_persist_failures_total",
			Help: "Operational audit events that failed to persist",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parishnet_audit_ops_queue_depth",
			Help: "Operational audit events waiting to be persisted",
		}),
	}
}

func (m *Metrics) IncTracked() {
	m.Tracked.Inc()
}

func (m *Metrics) IncDropped() {
	m.Dropped.Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}
