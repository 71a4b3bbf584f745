// Package service implements the permission-scoped read API.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	consent "parishnet/internal/consent/models"
	hierarchy "parishnet/internal/hierarchy/models"
	"parishnet/internal/query/metrics"
	"parishnet/internal/query/models"
	"parishnet/pkg/domain"
	dErrors "parishnet/pkg/domain-errors"
	"parishnet/pkg/platform/sentinel"
)

type EntityReader interface {
	Get(ctx context.Context, kind hierarchy.Kind, key string) (*hierarchy.Entity, error)
	GetMany(ctx context.Context, kind hierarchy.Kind, keys []string) ([]*hierarchy.Entity, error)
	ListChildren(ctx context.Context, parentKind hierarchy.Kind, parentKey string) ([]string, error)
}

type ConsentReader interface {
	Get(ctx context.Context, individualKey string) (consent.Flags, error)
}

// Service answers queries according to the visibility policy in policy.go.
type Service struct {
	entities EntityReader
	consents ConsentReader
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(entities EntityReader, consents ConsentReader, opts ...Option) *Service {
	s := &Service{
		entities: entities,
		consents: consents,
		logger:   slog.Default(),
		tracer:   otel.Tracer("parishnet/query"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query returns what caller may see of targetKind/targetKey.
//
// Errors: invalid_input for a malformed request, permission_denied when the
// policy refuses, not_found for an unknown caller scope or an unknown self or
// parent target. An unknown child target is denied like any other key outside
// the caller's branch. A target without qualifying contributors is not an
// error; its view has NoData set.
func (s *Service) Query(ctx context.Context, caller models.Caller, targetKind hierarchy.Kind, targetKey string) (result *models.Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "query.Query", trace.WithAttributes(
		attribute.String("role", string(caller.Role)),
		attribute.String("target_kind", string(targetKind)),
	))
	defer func() {
		outcome := outcomeOf(result, err)
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveQuery(string(caller.Role), string(targetKind), outcome, start)
		}
	}()

	scopeKind, ok := caller.Role.ScopeKind()
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown caller role")
	}
	if !targetKind.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown target kind")
	}
	scopeKey, err := domain.ParseKey(caller.ScopeKey)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "caller scope key is invalid")
	}
	targetKey, err = domain.ParseKey(targetKey)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "target key is invalid")
	}

	// Pairs the policy never grants are refused before any lookup, so a
	// denial reveals nothing about what exists.
	required, ok := requiredRelationship(caller.Role, targetKind)
	if !ok {
		s.logDenied(ctx, caller, targetKind, RelUnrelated)
		return nil, errPermissionDenied
	}

	scope, target, err := s.resolve(ctx, scopeKind, scopeKey, targetKind, targetKey, required)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePermissionDenied) {
			s.logDenied(ctx, caller, targetKind, RelUnrelated)
		}
		return nil, err
	}

	rel := relate(scope, target)
	access := Decide(caller.Role, targetKind, rel)
	switch access {
	case AccessDetail:
		flags, err := s.consents.Get(ctx, target.Key)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent flags")
		}
		detail := models.NewDetailView(target, flags)
		return &models.Result{Detail: &detail}, nil
	case AccessAggregate:
		view := models.NewAggregateView(target)
		return &models.Result{Aggregate: &view}, nil
	case AccessAggregateWithChildren:
		view := models.NewAggregateView(target)
		children, err := s.childViews(ctx, target)
		if err != nil {
			return nil, err
		}
		view.Children = children
		return &models.Result{Aggregate: &view}, nil
	default:
		s.logDenied(ctx, caller, targetKind, rel)
		return nil, errPermissionDenied
	}
}

var errPermissionDenied = dErrors.New(dErrors.CodePermissionDenied, "target is outside the caller's visibility")

// resolve loads the caller scope and the target. The target is only
// reported as missing once the scope is known to reach it, so a denial
// reveals nothing about entities outside the caller's branch.
func (s *Service) resolve(ctx context.Context, scopeKind hierarchy.Kind, scopeKey string, targetKind hierarchy.Kind, targetKey string, required Relationship) (scope, target *hierarchy.Entity, err error) {
	scope, err = s.entities.Get(ctx, scopeKind, scopeKey)
	if err != nil {
		return nil, nil, translate(err, "caller scope not found")
	}
	switch required {
	case RelSelf:
		if targetKey != scopeKey {
			return nil, nil, errPermissionDenied
		}
		return scope, scope, nil
	case RelParent:
		parentKind, parentKey, ok := scope.ParentRef()
		if !ok || parentKind != targetKind || parentKey != targetKey {
			return nil, nil, errPermissionDenied
		}
		target, err = s.entities.Get(ctx, targetKind, targetKey)
		if err != nil {
			return nil, nil, translate(err, string(targetKind)+" not found")
		}
		return scope, target, nil
	case RelChild:
		target, err = s.loadChild(ctx, scope, targetKind, targetKey)
		if err != nil {
			return nil, nil, err
		}
		return scope, target, nil
	default:
		return nil, nil, errPermissionDenied
	}
}

// loadChild reads the scope's child index and the target concurrently. A
// target missing from the index is denied whether or not it exists.
func (s *Service) loadChild(ctx context.Context, scope *hierarchy.Entity, targetKind hierarchy.Kind, targetKey string) (*hierarchy.Entity, error) {
	if childKind, ok := scope.Kind.Child(); !ok || childKind != targetKind {
		return nil, errPermissionDenied
	}
	var (
		children  []string
		target    *hierarchy.Entity
		targetErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keys, err := s.entities.ListChildren(gctx, scope.Kind, scope.Key)
		if err != nil {
			return translate(err, "failed to list children")
		}
		children = keys
		return nil
	})
	g.Go(func() error {
		target, targetErr = s.entities.Get(gctx, targetKind, targetKey)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !slices.Contains(children, targetKey) {
		return nil, errPermissionDenied
	}
	if targetErr != nil {
		return nil, translate(targetErr, string(targetKind)+" not found")
	}
	return target, nil
}

func (s *Service) childViews(ctx context.Context, parent *hierarchy.Entity) ([]models.AggregateView, error) {
	childKind, ok := parent.Kind.Child()
	if !ok || childKind == hierarchy.KindIndividual {
		return nil, dErrors.New(dErrors.CodeInvariant, "child views are only built for regions and campaigns")
	}
	keys, err := s.entities.ListChildren(ctx, parent.Kind, parent.Key)
	if err != nil {
		return nil, translate(err, "failed to list children")
	}
	children, err := s.entities.GetMany(ctx, childKind, keys)
	if err != nil {
		return nil, translate(err, "failed to load children")
	}
	views := make([]models.AggregateView, 0, len(children))
	for _, child := range children {
		views = append(views, models.NewAggregateView(child))
	}
	return views, nil
}

// relate classifies target relative to scope.
func relate(scope, target *hierarchy.Entity) Relationship {
	if scope.Kind == target.Kind && scope.Key == target.Key {
		return RelSelf
	}
	if parentKind, parentKey, ok := scope.ParentRef(); ok && parentKind == target.Kind && parentKey == target.Key {
		return RelParent
	}
	if parentKind, parentKey, ok := target.ParentRef(); ok && parentKind == scope.Kind && parentKey == scope.Key {
		return RelChild
	}
	return RelUnrelated
}

func (s *Service) logDenied(ctx context.Context, caller models.Caller, targetKind hierarchy.Kind, rel Relationship) {
	s.logger.InfoContext(ctx, "query denied",
		"role", caller.Role,
		"target_kind", targetKind,
		"relationship", rel.String(),
	)
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "query aborted")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read entities")
	}
}

func outcomeOf(result *models.Result, err error) string {
	if err == nil {
		if result != nil && result.Aggregate != nil && result.Aggregate.NoData {
			return metrics.OutcomeNoData
		}
		return metrics.OutcomeOK
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodePermissionDenied:
		return metrics.OutcomeDenied
	case dErrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case dErrors.CodeInvalidInput:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
