package worker

import (
	"context"

	audit "parishnet/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them until the
// channel is closed or ctx is cancelled. A failed append is reported and the
// worker moves on.
type Worker struct {
	store     audit.Store
	inbox     <-chan audit.Event
	onError   func(ctx context.Context, event audit.Event, err error)
	onSuccess func(event audit.Event)
}

type Option func(*Worker)

func WithErrorHandler(fn func(ctx context.Context, event audit.Event, err error)) Option {
	return func(w *Worker) {
		w.onError = fn
	}
}

func WithSuccessHandler(fn func(event audit.Event)) Option {
	return func(w *Worker) {
		w.onSuccess = fn
	}
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{store: store, inbox: inbox}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run returns nil once inbox is closed and drained, or ctx.Err() on
// cancellation.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				if w.onError != nil {
					w.onError(ctx, event, err)
				}
				continue
			}
			if w.onSuccess != nil {
				w.onSuccess(event)
			}
		}
	}
}
