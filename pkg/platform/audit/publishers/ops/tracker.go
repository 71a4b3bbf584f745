// Package ops provides a best-effort, non-blocking audit publisher for
// routine events. Events are queued and persisted by a background worker;
// when the queue is full they are dropped and counted.
package ops

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	audit "parishnet/pkg/platform/audit"
	"parishnet/pkg/platform/audit/worker"
	"parishnet/pkg/requestcontext"
)

const defaultBufferSize = 256

type Tracker struct {
	inbox   chan audit.Event
	worker  *worker.Worker
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func WithBufferSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.inbox = make(chan audit.Event, n)
		}
	}
}

// New starts the background worker. Call Close to drain and stop it.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		inbox:  make(chan audit.Event, defaultBufferSize),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	onError := func(ctx context.Context, e audit.Event, err error) {
		if t.metrics != nil {
			t.metrics.IncPersistFailures()
		}
		t.logger.WarnContext(ctx, "ops audit persist failed", "action", e.Action, "error", err)
	}
	onSuccess := func(audit.Event) {
		if t.metrics != nil {
			t.metrics.IncTracked()
			t.metrics.SetQueueDepth(len(t.inbox))
		}
	}
	t.worker = worker.NewWorker(store, t.inbox, worker.WithErrorHandler(onError), worker.WithSuccessHandler(onSuccess))

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go func() {
		defer close(t.done)
		_ = t.worker.Run(ctx)
	}()
	return t
}

// Emit enqueues event without blocking. It never fails the caller.
func (t *Tracker) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.CategoryOperations
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Actor(ctx)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.drop()
		return nil
	}
	select {
	case t.inbox <- event:
		if t.metrics != nil {
			t.metrics.SetQueueDepth(len(t.inbox))
		}
	default:
		t.drop()
	}
	return nil
}

func (t *Tracker) drop() {
	if t.metrics != nil {
		t.metrics.IncDropped()
	}
}

// Close stops accepting events, persists what is queued and stops the worker.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.inbox)
	t.mu.Unlock()

	<-t.done
	t.cancel()
	return nil
}
