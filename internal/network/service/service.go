// Package service owns every write to the network: structure management,
// individual records and consent. After each write it drives the aggregation
// engine so ancestor snapshots reflect the change before the call returns.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"parishnet/internal/aggregation"
	consent "parishnet/internal/consent/models"
	"parishnet/internal/hierarchy/models"
	network "parishnet/internal/network/models"
	"parishnet/pkg/domain"
	dErrors "parishnet/pkg/domain-errors"
	audit "parishnet/pkg/platform/audit"
	"parishnet/pkg/platform/sentinel"
	"parishnet/pkg/requestcontext"
)

type EntityStore interface {
	Put(ctx context.Context, entity *models.Entity) error
	Get(ctx context.Context, kind models.Kind, key string) (*models.Entity, error)
	Delete(ctx context.Context, kind models.Kind, key string) error
}

type ConsentRegistry interface {
	Get(ctx context.Context, individualKey string) (consent.Flags, error)
	Set(ctx context.Context, individualKey string, flags consent.Flags) (consent.Flags, error)
	Delete(ctx context.Context, individualKey string) error
}

type Aggregator interface {
	OnChildChanged(ctx context.Context, childKind models.Kind, childKey string) error
	OnChildRemoved(ctx context.Context, childKind models.Kind, parentKey string) error
	Rebuild(ctx context.Context, kind models.Kind, key string) (*models.Aggregate, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the write facade.
type Service struct {
	entities   EntityStore
	consents   ConsentRegistry
	aggregator Aggregator
	locker     aggregation.Locker
	logger     *slog.Logger
	compliance AuditPublisher
	ops        AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithComplianceAuditor sets the fail-closed publisher for registration,
// removal and consent events.
func WithComplianceAuditor(p AuditPublisher) Option {
	return func(s *Service) {
		s.compliance = p
	}
}

// WithOpsAuditor sets the best-effort publisher for routine events.
func WithOpsAuditor(p AuditPublisher) Option {
	return func(s *Service) {
		s.ops = p
	}
}

// WithLocker serializes writes to the same record. Defaults to an in-process
// sharded locker.
func WithLocker(l aggregation.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func New(entities EntityStore, consents ConsentRegistry, aggregator Aggregator, opts ...Option) *Service {
	s := &Service{
		entities:   entities,
		consents:   consents,
		aggregator: aggregator,
		locker:     aggregation.NewShardedLocker(0),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateCampaign(ctx context.Context, req network.CreateGroupRequest) (*models.Entity, error) {
	key, err := resolveKey(req.Key)
	if err != nil {
		return nil, err
	}
	e, err := models.NewCampaign(key, strings.TrimSpace(req.Name), requestcontext.Now(ctx))
	if err != nil {
		return nil, asInvalid(err)
	}
	return s.createGroup(ctx, e, audit.EventCampaignCreated)
}

// CreateRegion creates a region, optionally participating in a campaign.
func (s *Service) CreateRegion(ctx context.Context, req network.CreateGroupRequest) (*models.Entity, error) {
	key, err := resolveKey(req.Key)
	if err != nil {
		return nil, err
	}
	campaignKey := strings.TrimSpace(req.ParentKey)
	if campaignKey != "" {
		if err := s.requireExists(ctx, models.KindCampaign, campaignKey); err != nil {
			return nil, err
		}
	}
	e, err := models.NewRegion(key, campaignKey, strings.TrimSpace(req.Name), requestcontext.Now(ctx))
	if err != nil {
		return nil, asInvalid(err)
	}
	return s.createGroup(ctx, e, audit.EventRegionCreated)
}

func (s *Service) CreateCommunity(ctx context.Context, req network.CreateGroupRequest) (*models.Entity, error) {
	key, err := resolveKey(req.Key)
	if err != nil {
		return nil, err
	}
	regionKey := strings.TrimSpace(req.ParentKey)
	if regionKey == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "region key is required")
	}
	if err := s.requireExists(ctx, models.KindRegion, regionKey); err != nil {
		return nil, err
	}
	e, err := models.NewCommunity(key, regionKey, strings.TrimSpace(req.Name), requestcontext.Now(ctx))
	if err != nil {
		return nil, asInvalid(err)
	}
	return s.createGroup(ctx, e, audit.EventCommunityCreated)
}

// createGroup stores a new group. A fresh group has an empty snapshot and
// cannot qualify at its parent, so no propagation is needed.
func (s *Service) createGroup(ctx context.Context, e *models.Entity, action audit.AuditEvent) (*models.Entity, error) {
	err := s.locker.RunLocked(ctx, writeKey(e.Kind, e.Key), func(ctx context.Context) error {
		if err := s.requireAbsent(ctx, e.Kind, e.Key); err != nil {
			return err
		}
		return s.put(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	s.emitOps(ctx, e, action, "")
	s.logger.InfoContext(ctx, "group created",
		"kind", e.Kind,
		"key", e.Key,
		"parent_key", e.ParentKey,
	)
	return e.Clone(), nil
}

// RegisterIndividual creates an individual in an existing community, records
// its consent and updates every ancestor snapshot.
func (s *Service) RegisterIndividual(ctx context.Context, req network.RegisterIndividualRequest) (*models.Entity, error) {
	key, err := resolveKey(req.Key)
	if err != nil {
		return nil, err
	}
	communityKey := strings.TrimSpace(req.CommunityKey)
	if communityKey == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "community key is required")
	}
	if err := s.requireExists(ctx, models.KindCommunity, communityKey); err != nil {
		return nil, err
	}
	e, err := models.NewIndividual(key, communityKey, strings.TrimSpace(req.Name), req.Fields, req.Tags, requestcontext.Now(ctx))
	if err != nil {
		return nil, asInvalid(err)
	}

	err = s.locker.RunLocked(ctx, writeKey(models.KindIndividual, key), func(ctx context.Context) error {
		if err := s.requireAbsent(ctx, models.KindIndividual, key); err != nil {
			return err
		}
		if err := s.emitCompliance(ctx, e.Key, audit.EventIndividualRegistered, consentDecision(req.Consent)); err != nil {
			return err
		}
		if err := s.put(ctx, e); err != nil {
			return err
		}
		if _, err := s.consents.Set(ctx, key, req.Consent); err != nil {
			// Without its consent the record must not linger half-registered.
			if delErr := s.entities.Delete(ctx, models.KindIndividual, key); delErr != nil {
				err = errors.Join(err, delErr)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store consent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.aggregator.OnChildChanged(ctx, models.KindIndividual, key); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "individual registered",
		"key", key,
		"community_key", communityKey,
	)
	return e.Clone(), nil
}

// UpdateIndividualField sets one practice value and re-aggregates.
func (s *Service) UpdateIndividualField(ctx context.Context, key, field string, value int64) (*models.Entity, error) {
	return s.mutateIndividual(ctx, key, audit.EventFieldUpdated, func(e *models.Entity) (bool, error) {
		if err := e.SetField(field, value, requestcontext.Now(ctx)); err != nil {
			return false, err
		}
		return true, nil
	})
}

// RemoveIndividualField drops a practice value. Removing an unset field is a
// no-op.
func (s *Service) RemoveIndividualField(ctx context.Context, key, field string) (*models.Entity, error) {
	return s.mutateIndividual(ctx, key, audit.EventFieldRemoved, func(e *models.Entity) (bool, error) {
		return e.RemoveField(field, requestcontext.Now(ctx)), nil
	})
}

// SetIndividualTags replaces the tags of an individual.
func (s *Service) SetIndividualTags(ctx context.Context, key string, tags []string) (*models.Entity, error) {
	return s.mutateIndividual(ctx, key, audit.EventTagsUpdated, func(e *models.Entity) (bool, error) {
		if err := e.SetTags(tags, requestcontext.Now(ctx)); err != nil {
			return false, err
		}
		return true, nil
	})
}

// mutateIndividual applies fn under the record's write lock. The parent key
// is never touched, which keeps it immutable. Snapshots are recomputed even
// when fn changed nothing, so a retry repairs an earlier failed propagation.
func (s *Service) mutateIndividual(ctx context.Context, key string, action audit.AuditEvent, fn func(e *models.Entity) (bool, error)) (*models.Entity, error) {
	key, err := domain.ParseKey(key)
	if err != nil {
		return nil, err
	}
	var (
		updated *models.Entity
		changed bool
	)
	err = s.locker.RunLocked(ctx, writeKey(models.KindIndividual, key), func(ctx context.Context) error {
		e, err := s.get(ctx, models.KindIndividual, key)
		if err != nil {
			return err
		}
		parent := e.ParentKey
		changed, err = fn(e)
		if err != nil {
			return asInvalid(err)
		}
		if e.ParentKey != parent {
			return dErrors.New(dErrors.CodeInvariant, "parent key is immutable")
		}
		updated = e
		if !changed {
			return nil
		}
		return s.put(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.emitOps(ctx, updated, action, "")
	}
	if err := s.aggregator.OnChildChanged(ctx, models.KindIndividual, key); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// SetConsent overwrites an individual's flags and returns the previous ones.
// A change is audited before it is stored. Ancestors are recomputed on every
// call, so repeating a request repairs snapshots left stale by a failure.
func (s *Service) SetConsent(ctx context.Context, key string, flags consent.Flags) (*network.SetConsentResponse, error) {
	key, err := domain.ParseKey(key)
	if err != nil {
		return nil, err
	}
	var prev consent.Flags
	err = s.locker.RunLocked(ctx, writeKey(models.KindIndividual, key), func(ctx context.Context) error {
		if err := s.requireExists(ctx, models.KindIndividual, key); err != nil {
			return err
		}
		current, getErr := s.consents.Get(ctx, key)
		if getErr != nil {
			return dErrors.Wrap(getErr, dErrors.CodeInternal, "failed to load consent")
		}
		prev = current
		if prev == flags {
			return nil
		}
		if err := s.emitCompliance(ctx, key, audit.EventConsentChanged, consentChange(prev, flags)); err != nil {
			return err
		}
		if _, setErr := s.consents.Set(ctx, key, flags); setErr != nil {
			return dErrors.Wrap(setErr, dErrors.CodeInternal, "failed to store consent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.aggregator.OnChildChanged(ctx, models.KindIndividual, key); err != nil {
		return nil, err
	}
	resp := &network.SetConsentResponse{Previous: prev, Current: flags, Changed: prev != flags}
	if resp.Changed {
		s.logger.InfoContext(ctx, "consent changed",
			"key", key,
			"hops", hopNames(flags.Changed(prev)),
		)
	}
	return resp, nil
}

// RemoveIndividual withdraws the individual from every snapshot, then deletes
// the record and its consent. The record is deleted last so that a failed
// call can be retried.
func (s *Service) RemoveIndividual(ctx context.Context, key string) error {
	key, err := domain.ParseKey(key)
	if err != nil {
		return err
	}
	var communityKey string
	err = s.locker.RunLocked(ctx, writeKey(models.KindIndividual, key), func(ctx context.Context) error {
		e, err := s.get(ctx, models.KindIndividual, key)
		if err != nil {
			return err
		}
		communityKey = e.ParentKey
		if err := s.emitCompliance(ctx, key, audit.EventIndividualRemoved, ""); err != nil {
			return err
		}
		if _, err := s.consents.Set(ctx, key, consent.None); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke consent")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.aggregator.OnChildChanged(ctx, models.KindIndividual, key); err != nil {
		return err
	}

	err = s.locker.RunLocked(ctx, writeKey(models.KindIndividual, key), func(ctx context.Context) error {
		if err := s.consents.Delete(ctx, key); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete consent")
		}
		if err := s.entities.Delete(ctx, models.KindIndividual, key); err != nil {
			return translate(err, "individual not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.aggregator.OnChildRemoved(ctx, models.KindIndividual, communityKey); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "individual removed",
		"key", key,
		"community_key", communityKey,
	)
	return nil
}

// Rebuild recomputes the subtree under kind/key and its ancestors.
func (s *Service) Rebuild(ctx context.Context, kind models.Kind, key string) (*models.Aggregate, error) {
	key, err := domain.ParseKey(key)
	if err != nil {
		return nil, err
	}
	snap, err := s.aggregator.Rebuild(ctx, kind, key)
	if err != nil {
		return nil, err
	}
	s.emitOps(ctx, &models.Entity{Kind: kind, Key: key}, audit.EventSnapshotsRebuilt, "")
	return snap, nil
}

func (s *Service) get(ctx context.Context, kind models.Kind, key string) (*models.Entity, error) {
	e, err := s.entities.Get(ctx, kind, key)
	if err != nil {
		return nil, translate(err, string(kind)+" not found")
	}
	return e, nil
}

func (s *Service) put(ctx context.Context, e *models.Entity) error {
	if err := s.entities.Put(ctx, e); err != nil {
		return translate(err, "failed to store "+string(e.Kind))
	}
	return nil
}

func (s *Service) requireExists(ctx context.Context, kind models.Kind, key string) error {
	_, err := s.get(ctx, kind, key)
	return err
}

func (s *Service) requireAbsent(ctx context.Context, kind models.Kind, key string) error {
	_, err := s.entities.Get(ctx, kind, key)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeConflict, string(kind)+" already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return translate(err, "failed to check "+string(kind))
	}
}

func (s *Service) emitCompliance(ctx context.Context, subject string, action audit.AuditEvent, decision string) error {
	if s.compliance == nil {
		return nil
	}
	err := s.compliance.Emit(ctx, audit.Event{
		Category:    audit.CategoryCompliance,
		SubjectKind: string(models.KindIndividual),
		Subject:     subject,
		Action:      string(action),
		Decision:    decision,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) emitOps(ctx context.Context, e *models.Entity, action audit.AuditEvent, decision string) {
	if s.ops == nil {
		return
	}
	if err := s.ops.Emit(ctx, audit.Event{
		Category:    audit.CategoryOperations,
		SubjectKind: string(e.Kind),
		Subject:     e.Key,
		Action:      string(action),
		Decision:    decision,
	}); err != nil {
		s.logger.WarnContext(ctx, "ops audit emit failed", "action", action, "error", err)
	}
}

func resolveKey(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.NewKey(), nil
	}
	return domain.ParseKey(raw)
}

func writeKey(kind models.Kind, key string) string {
	return "record:" + string(kind) + ":" + key
}

func consentDecision(f consent.Flags) string {
	return "community=" + onOff(f.ShareToCommunity) +
		",region=" + onOff(f.ShareToRegion) +
		",global=" + onOff(f.ShareToGlobal)
}

func consentChange(prev, next consent.Flags) string {
	return consentDecision(prev) + "->" + consentDecision(next)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func hopNames(hops []consent.Hop) []string {
	names := make([]string, 0, len(hops))
	for _, h := range hops {
		names = append(names, string(h))
	}
	return names
}

// asInvalid turns model invariant failures on caller input into input errors.
func asInvalid(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariant) {
		de, _ := dErrors.As(err)
		return dErrors.New(dErrors.CodeInvalidInput, de.Message)
	}
	return err
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
