package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	hierarchy "parishnet/internal/hierarchy/models"
	"parishnet/internal/query/models"
	dErrors "parishnet/pkg/domain-errors"
	"parishnet/pkg/platform/httputil"
	"parishnet/pkg/platform/middleware/metadata"
	request "parishnet/pkg/platform/middleware/request"
)

// Caller identity headers. Authentication happens upstream; the gateway
// forwards the verified role and scope.
const (
	HeaderCallerRole  = "X-Caller-Role"
	HeaderCallerScope = "X-Caller-Scope"
)

// Service defines the read operation exposed over HTTP.
type Service interface {
	Query(ctx context.Context, caller models.Caller, targetKind hierarchy.Kind, targetKey string) (*models.Result, error)
}

// Handler wires the query endpoint to the query service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a query handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the query endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(request.Recovery(h.logger))
		r.Use(request.RequestID)
		r.Use(metadata.ClientMetadata)
		r.Use(request.Logger(h.logger))
		r.Use(request.Timeout(10 * time.Second))

		r.Get("/query/{kind}/{key}", h.HandleQuery)
	})
}

// HandleQuery handles GET /query/{kind}/{key}.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	caller, err := callerFromRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid caller",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	kind, err := hierarchy.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown target kind"))
		return
	}
	key := chi.URLParam(r, "key")

	result, err := h.service.Query(ctx, caller, kind, key)
	if err != nil {
		// Denials are logged by the service with the relationship.
		if !dErrors.HasCode(err, dErrors.CodePermissionDenied) {
			h.logger.WarnContext(ctx, "query failed",
				"request_id", requestID,
				"role", caller.Role,
				"target_kind", kind,
				"target_key", key,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func callerFromRequest(r *http.Request) (models.Caller, error) {
	rawRole := r.Header.Get(HeaderCallerRole)
	if rawRole == "" {
		return models.Caller{}, dErrors.New(dErrors.CodeInvalidInput, "caller role is required")
	}
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return models.Caller{}, err
	}
	scope := strings.TrimSpace(r.Header.Get(HeaderCallerScope))
	if scope == "" {
		return models.Caller{}, dErrors.New(dErrors.CodeInvalidInput, "caller scope is required")
	}
	return models.Caller{Role: role, ScopeKey: scope}, nil
}
