package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for recompute counters.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics tracks snapshot recomputation.
type Metrics struct {
	Recomputes        *prometheus.CounterVec
	RecomputeDuration *prometheus.HistogramVec
	Propagations      prometheus.Counter
	Rebuilds          prometheus.Counter
}

// New registers the aggregation metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parishnet_recomputes_total",
			Help: "Snapshot recomputations by entity kind and outcome",
		}, []string{"kind", "outcome"}),
		RecomputeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parishnet_recompute_duration_seconds",
			Help:    "Duration of a single snapshot recomputation including lock wait",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),
		Propagations: factory.NewCounter(prometheus.CounterOpts{
			Name: "parishnet_propagations_total",
			Help: "Upward propagation runs started by a child change or removal",
		}),
		Rebuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "parishnet_rebuilds_total",
			Help: "Subtree rebuilds requested",
		}),
	}
}

// ObserveRecompute records one recomputation started at start.
func (m *Metrics) ObserveRecompute(kind, outcome string, start time.Time) {
	m.Recomputes.WithLabelValues(kind, outcome).Inc()
	m.RecomputeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementPropagations() {
	m.Propagations.Inc()
}

func (m *Metrics) IncrementRebuilds() {
	m.Rebuilds.Inc()
}
