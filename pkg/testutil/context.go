package testutil

import (
	"context"
	"net/http"
	"time"

	"parishnet/pkg/requestcontext"
)

// Caller headers read by the query handler.
const (
	HeaderCallerRole  = "X-Caller-Role"
	HeaderCallerScope = "X-Caller-Scope"
)

// WithCaller sets the caller identity headers on req.
func WithCaller(req *http.Request, role, scopeKey string) *http.Request {
	req.Header.Set(HeaderCallerRole, role)
	req.Header.Set(HeaderCallerScope, scopeKey)
	return req
}

// RequestContext returns a context carrying the values the HTTP middleware
// chain would set, for service tests that bypass it.
func RequestContext(requestID, actor string, now time.Time) context.Context {
	ctx := requestcontext.WithRequestID(context.Background(), requestID)
	ctx = requestcontext.WithActor(ctx, actor)
	return requestcontext.WithTime(ctx, now)
}
