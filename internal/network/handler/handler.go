package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	consent "parishnet/internal/consent/models"
	"parishnet/internal/hierarchy/models"
	network "parishnet/internal/network/models"
	dErrors "parishnet/pkg/domain-errors"
	"parishnet/pkg/platform/httputil"
	"parishnet/pkg/platform/middleware/admin"
	"parishnet/pkg/platform/middleware/metadata"
	request "parishnet/pkg/platform/middleware/request"
	"parishnet/pkg/platform/middleware/requesttime"
)

// Service defines the write operations exposed over HTTP.
type Service interface {
	CreateCampaign(ctx context.Context, req network.CreateGroupRequest) (*models.Entity, error)
	CreateRegion(ctx context.Context, req network.CreateGroupRequest) (*models.Entity, error)
	CreateCommunity(ctx context.Context, req network.CreateGroupRequest) (*models.Entity, error)
	RegisterIndividual(ctx context.Context, req network.RegisterIndividualRequest) (*models.Entity, error)
	UpdateIndividualField(ctx context.Context, key, field string, value int64) (*models.Entity, error)
	RemoveIndividualField(ctx context.Context, key, field string) (*models.Entity, error)
	SetIndividualTags(ctx context.Context, key string, tags []string) (*models.Entity, error)
	SetConsent(ctx context.Context, key string, flags consent.Flags) (*network.SetConsentResponse, error)
	RemoveIndividual(ctx context.Context, key string) error
	Rebuild(ctx context.Context, kind models.Kind, key string) (*models.Aggregate, error)
}

// Handler wires network write endpoints to the network service.
type Handler struct {
	service    Service
	logger     *slog.Logger
	timeout    time.Duration
	adminToken string
}

type Option func(*Handler)

// WithAdminToken guards the admin endpoints with a shared token.
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.adminToken = token }
}

// New constructs a network handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  logger,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the write endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(request.Recovery(h.logger))
		r.Use(request.RequestID)
		r.Use(metadata.ClientMetadata)
		r.Use(request.Logger(h.logger))
		r.Use(request.Timeout(h.timeout))
		r.Use(request.ContentTypeJSON)
		r.Use(request.Actor)
		r.Use(requesttime.Middleware)

		r.Post("/campaigns", h.HandleCreateCampaign)
		r.Post("/regions", h.HandleCreateRegion)
		r.Post("/communities", h.HandleCreateCommunity)
		r.Post("/individuals", h.HandleRegisterIndividual)
		r.Put("/individuals/{key}/fields/{field}", h.HandleSetField)
		r.Delete("/individuals/{key}/fields/{field}", h.HandleRemoveField)
		r.Put("/individuals/{key}/tags", h.HandleSetTags)
		r.Put("/individuals/{key}/consent", h.HandleSetConsent)
		r.Delete("/individuals/{key}", h.HandleRemoveIndividual)

		r.Group(func(r chi.Router) {
			if h.adminToken != "" {
				r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
			}
			r.Post("/admin/rebuild/{kind}/{key}", h.HandleRebuild)
		})
	})
}

// HandleCreateCampaign handles POST /campaigns.
func (h *Handler) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	h.createGroup(w, r, models.KindCampaign, h.service.CreateCampaign)
}

// HandleCreateRegion handles POST /regions.
func (h *Handler) HandleCreateRegion(w http.ResponseWriter, r *http.Request) {
	h.createGroup(w, r, models.KindRegion, h.service.CreateRegion)
}

// HandleCreateCommunity handles POST /communities.
func (h *Handler) HandleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	h.createGroup(w, r, models.KindCommunity, h.service.CreateCommunity)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request, kind models.Kind, create func(context.Context, network.CreateGroupRequest) (*models.Entity, error)) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	body, ok := httputil.DecodeAndPrepare[CreateGroupBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entity, err := create(ctx, body.CreateGroupRequest)
	if err != nil {
		h.fail(ctx, w, "failed to create group", err, "kind", kind)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entity)
}

// HandleRegisterIndividual handles POST /individuals.
func (h *Handler) HandleRegisterIndividual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	body, ok := httputil.DecodeAndPrepare[RegisterIndividualBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entity, err := h.service.RegisterIndividual(ctx, body.RegisterIndividualRequest)
	if err != nil {
		h.fail(ctx, w, "failed to register individual", err, "community_key", body.CommunityKey)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entity)
}

// HandleSetField handles PUT /individuals/{key}/fields/{field}.
func (h *Handler) HandleSetField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	key, field := chi.URLParam(r, "key"), chi.URLParam(r, "field")

	body, ok := httputil.DecodeAndPrepare[SetFieldBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entity, err := h.service.UpdateIndividualField(ctx, key, field, body.Value)
	if err != nil {
		h.fail(ctx, w, "failed to update field", err, "key", key, "field", field)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleRemoveField handles DELETE /individuals/{key}/fields/{field}.
func (h *Handler) HandleRemoveField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, field := chi.URLParam(r, "key"), chi.URLParam(r, "field")

	entity, err := h.service.RemoveIndividualField(ctx, key, field)
	if err != nil {
		h.fail(ctx, w, "failed to remove field", err, "key", key, "field", field)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleSetTags handles PUT /individuals/{key}/tags.
func (h *Handler) HandleSetTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	key := chi.URLParam(r, "key")

	body, ok := httputil.DecodeAndPrepare[SetTagsBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entity, err := h.service.SetIndividualTags(ctx, key, body.Tags)
	if err != nil {
		h.fail(ctx, w, "failed to set tags", err, "key", key)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entity)
}

// HandleSetConsent handles PUT /individuals/{key}/consent.
func (h *Handler) HandleSetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	key := chi.URLParam(r, "key")

	body, ok := httputil.DecodeAndPrepare[SetConsentBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	resp, err := h.service.SetConsent(ctx, key, body.Flags)
	if err != nil {
		h.fail(ctx, w, "failed to set consent", err, "key", key)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRemoveIndividual handles DELETE /individuals/{key}.
func (h *Handler) HandleRemoveIndividual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if err := h.service.RemoveIndividual(ctx, key); err != nil {
		h.fail(ctx, w, "failed to remove individual", err, "key", key)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRebuild handles POST /admin/rebuild/{kind}/{key}.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown kind"))
		return
	}
	snap, err := h.service.Rebuild(ctx, kind, key)
	if err != nil {
		h.fail(ctx, w, "failed to rebuild snapshots", err, "kind", kind, "key", key)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// fail logs at warn for client errors and error for server errors, then
// writes the mapped response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", request.GetRequestID(ctx), "error", err.Error())
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
