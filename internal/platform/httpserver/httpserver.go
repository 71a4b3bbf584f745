// Package httpserver builds the HTTP server and its operational endpoints.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parishnet/pkg/platform/httputil"
)

// Timeouts bound the server's connection handling.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
}

// New builds an HTTP server with the project defaults.
func New(addr string, handler http.Handler, t Timeouts) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       t.Read,
		WriteTimeout:      t.Write,
		IdleTimeout:       2 * time.Minute,
	}
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// RegisterHealth mounts /healthz (liveness) and /readyz (every check passes).
func RegisterHealth(r chi.Router, checks map[string]HealthCheck) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, result)
	})
}
