// Package failover writes audit events to a primary store and diverts them
// to a fallback store while the primary keeps failing.
package failover

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "parishnet/pkg/platform/audit"
	"parishnet/pkg/platform/circuit"
)

const defaultProbeInterval = 10 * time.Second

type Store struct {
	primary  audit.Store
	fallback audit.Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	now      func() time.Time
	probe    time.Duration
	diverted prometheus.Counter
	open     prometheus.Gauge

	mu        sync.Mutex
	lastProbe time.Time
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) { s.breaker = b }
}

// WithProbeInterval sets how often an open circuit lets one event through to
// the primary.
func WithProbeInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.probe = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		factory := promauto.With(reg)
		s.diverted = factory.NewCounter(prometheus.CounterOpts{
			Name: "parishnet_audit_failover_diverted_total",
			Help: "Audit events written to the fallback store",
		})
		s.open = factory.NewGauge(prometheus.GaugeOpts{
			Name: "parishnet_audit_failover_circuit_open",
			Help: "1 while the primary audit store circuit is open",
		})
	}
}

func New(primary, fallback audit.Store, opts ...Option) *Store {
	s := &Store{
		primary:  primary,
		fallback: fallback,
		logger:   slog.Default(),
		now:      time.Now,
		probe:    defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("audit")
	}
	return s
}

// Append succeeds when either store accepted the event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if s.breaker.IsOpen() && !s.dueForProbe() {
		return s.divert(ctx, event, nil)
	}

	err := s.primary.Append(ctx, event)
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "audit primary store recovered", "breaker", s.breaker.Name())
			s.setOpen(false)
		}
		return nil
	}

	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "audit primary store circuit opened",
			"breaker", s.breaker.Name(),
			"error", err,
		)
		s.setOpen(true)
		s.mu.Lock()
		s.lastProbe = s.now()
		s.mu.Unlock()
	}
	return s.divert(ctx, event, err)
}

func (s *Store) divert(ctx context.Context, event audit.Event, primaryErr error) error {
	if err := s.fallback.Append(ctx, event); err != nil {
		return errors.Join(primaryErr, err)
	}
	if s.diverted != nil {
		s.diverted.Inc()
	}
	return nil
}

func (s *Store) dueForProbe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastProbe) < s.probe {
		return false
	}
	s.lastProbe = now
	return true
}

func (s *Store) setOpen(open bool) {
	if s.open == nil {
		return
	}
	if open {
		s.open.Set(1)
		return
	}
	s.open.Set(0)
}
