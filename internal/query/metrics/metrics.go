package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNoData   = "no_data"
	OutcomeDenied   = "denied"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics tracks permission-scoped reads.
type Metrics struct {
	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parishnet_queries_total",
			Help: "Permission-scoped queries by caller role, target kind and outcome",
		}, []string{"role", "kind", "outcome"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parishnet_query_duration_seconds",
			Help:    "Duration of permission-scoped queries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"role"}),
	}
}

// ObserveQuery records one query started at start.
func (m *Metrics) ObserveQuery(role, kind, outcome string, start time.Time) {
	m.Queries.WithLabelValues(role, kind, outcome).Inc()
	m.QueryDuration.WithLabelValues(role).Observe(time.Since(start).Seconds())
}
