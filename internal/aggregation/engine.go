// Package aggregation maintains the aggregate snapshots of communities,
// regions and campaigns.
//
// Every snapshot is recomputed from scratch over the current child set under a
// per-key lock, so a recomputation triggered after a write always observes
// that write (read-repair). Propagation walks upward one level at a time and
// always runs to the top of the tree.
package aggregation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"parishnet/internal/aggregation/metrics"
	consent "parishnet/internal/consent/models"
	"parishnet/internal/hierarchy/models"
	dErrors "parishnet/pkg/domain-errors"
	"parishnet/pkg/platform/sentinel"
	"parishnet/pkg/requestcontext"
)

type EntityStore interface {
	Put(ctx context.Context, entity *models.Entity) error
	Get(ctx context.Context, kind models.Kind, key string) (*models.Entity, error)
	GetMany(ctx context.Context, kind models.Kind, keys []string) ([]*models.Entity, error)
	ListChildren(ctx context.Context, parentKind models.Kind, parentKey string) ([]string, error)
}

type ConsentReader interface {
	GetMany(ctx context.Context, individualKeys []string) (map[string]consent.Flags, error)
}

// rebuildFanout bounds concurrent subtree rebuilds.
const rebuildFanout = 8

// Engine recomputes snapshots and propagates changes upward.
type Engine struct {
	entities EntityStore
	consents ConsentReader
	locker   Locker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLocker replaces the default in-process ShardedLocker, e.g. with a
// database advisory lock when several processes share one store.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

func New(entities EntityStore, consents ConsentReader, opts ...Option) *Engine {
	e := &Engine{
		entities: entities,
		consents: consents,
		locker:   NewShardedLocker(defaultLockTimeout),
		logger:   slog.Default(),
		tracer:   otel.Tracer("parishnet/aggregation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recompute rebuilds the snapshot of a single group entity from its current
// children and stores it. It does not propagate.
func (e *Engine) Recompute(ctx context.Context, kind models.Kind, key string) (*models.Aggregate, error) {
	entity, err := e.recompute(ctx, kind, key)
	if err != nil {
		return nil, err
	}
	return entity.Snapshot.Clone(), nil
}

// OnChildChanged recomputes every ancestor of the given child, nearest first.
// It is the entry point after any write to a record or its consent flags.
func (e *Engine) OnChildChanged(ctx context.Context, childKind models.Kind, childKey string) error {
	child, err := e.entities.Get(ctx, childKind, childKey)
	if err != nil {
		return translate(err, childKind, "failed to load changed entity")
	}
	parentKind, parentKey, ok := child.ParentRef()
	if !ok {
		return nil
	}
	return e.propagate(ctx, parentKind, parentKey)
}

// OnChildRemoved propagates from a known parent after one of its children was
// deleted and can no longer be loaded.
func (e *Engine) OnChildRemoved(ctx context.Context, childKind models.Kind, parentKey string) error {
	parentKind, ok := childKind.Parent()
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, string(childKind)+" has no parent kind")
	}
	if parentKey == "" {
		return nil
	}
	return e.propagate(ctx, parentKind, parentKey)
}

// Rebuild recomputes every group below kind/key bottom-up, then the node
// itself, then its ancestors. Siblings are rebuilt concurrently.
func (e *Engine) Rebuild(ctx context.Context, kind models.Kind, key string) (*models.Aggregate, error) {
	if err := checkGroupKind(kind); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.IncrementRebuilds()
	}
	ctx, span := e.tracer.Start(ctx, "aggregation.Rebuild", trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("key", key),
	))
	defer span.End()

	if err := e.rebuildBelow(ctx, kind, key); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	entity, err := e.recompute(ctx, kind, key)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if parentKind, parentKey, ok := entity.ParentRef(); ok {
		if err := e.propagate(ctx, parentKind, parentKey); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	e.logger.InfoContext(ctx, "subtree rebuilt",
		"kind", kind,
		"key", key,
		"count", entity.Snapshot.Count,
	)
	return entity.Snapshot.Clone(), nil
}

func (e *Engine) rebuildBelow(ctx context.Context, kind models.Kind, key string) error {
	childKind, _ := kind.Child()
	if childKind == models.KindIndividual {
		return nil
	}
	children, err := e.entities.ListChildren(ctx, kind, key)
	if err != nil {
		return translate(err, kind, "failed to list children")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildFanout)
	for _, child := range children {
		g.Go(func() error {
			if err := e.rebuildBelow(gctx, childKind, child); err != nil {
				return err
			}
			_, err := e.recompute(gctx, childKind, child)
			return err
		})
	}
	return g.Wait()
}

// propagate recomputes kind/key and then each ancestor in turn. The loop is
// bounded by the height of the tree.
func (e *Engine) propagate(ctx context.Context, kind models.Kind, key string) error {
	if e.metrics != nil {
		e.metrics.IncrementPropagations()
	}
	for {
		entity, err := e.recompute(ctx, kind, key)
		if err != nil {
			return err
		}
		parentKind, parentKey, ok := entity.ParentRef()
		if !ok {
			return nil
		}
		kind, key = parentKind, parentKey
	}
}

func (e *Engine) recompute(ctx context.Context, kind models.Kind, key string) (entity *models.Entity, err error) {
	if err := checkGroupKind(kind); err != nil {
		return nil, err
	}
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "aggregation.Recompute", trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("key", key),
	))
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if e.metrics != nil {
			e.metrics.ObserveRecompute(string(kind), outcome, start)
		}
	}()

	err = e.locker.RunLocked(ctx, lockKey(kind, key), func(ctx context.Context) error {
		var lockedErr error
		entity, lockedErr = e.recomputeLocked(ctx, kind, key)
		return lockedErr
	})
	if err != nil {
		if _, ok := dErrors.As(err); !ok {
			err = translate(err, kind, "failed to recompute snapshot")
		}
		e.logger.ErrorContext(ctx, "recompute failed",
			"kind", kind,
			"key", key,
			"error", err,
		)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("count", entity.Snapshot.Count))
	return entity, nil
}

func (e *Engine) recomputeLocked(ctx context.Context, kind models.Kind, key string) (*models.Entity, error) {
	entity, err := e.entities.Get(ctx, kind, key)
	if err != nil {
		return nil, translate(err, kind, "failed to load entity")
	}
	childKeys, err := e.entities.ListChildren(ctx, kind, key)
	if err != nil {
		return nil, translate(err, kind, "failed to list children")
	}
	childKind, _ := kind.Child()
	children, err := e.entities.GetMany(ctx, childKind, childKeys)
	if err != nil {
		return nil, translate(err, childKind, "failed to load children")
	}

	now := requestcontext.Now(ctx)
	var snapshot *models.Aggregate
	if childKind == models.KindIndividual {
		flags, flagsErr := e.consents.GetMany(ctx, childKeys)
		if flagsErr != nil {
			return nil, dErrors.Wrap(flagsErr, dErrors.CodeInternal, "failed to load consent flags")
		}
		snapshot, err = computeCommunity(children, flags, now)
	} else {
		snapshot, err = mergeChildren(childKind, children, now)
	}
	if err != nil {
		return nil, err
	}

	entity.Snapshot = snapshot
	if err := e.entities.Put(ctx, entity); err != nil {
		return nil, translate(err, kind, "failed to store snapshot")
	}
	return entity, nil
}

func checkGroupKind(kind models.Kind) error {
	if !kind.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown entity kind")
	}
	if kind == models.KindIndividual {
		return dErrors.New(dErrors.CodeInvalidInput, "individuals carry no snapshot")
	}
	return nil
}

func lockKey(kind models.Kind, key string) string {
	return "snapshot:" + string(kind) + ":" + key
}

// translate maps store errors to domain codes; domain errors pass through.
func translate(err error, kind models.Kind, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, string(kind)+" not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
