package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	networkhandler "parishnet/internal/network/handler"
	"parishnet/internal/platform/httpserver"
	"parishnet/internal/platform/otel"
	queryhandler "parishnet/internal/query/handler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	rt := envFrom(cmd)
	cfg, log := rt.cfg, rt.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := buildApp(ctx, cfg, log, rt.metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server.Addr, newRouter(a, rt), httpserver.Timeouts{
		Read:  cfg.Server.ReadTimeout,
		Write: cfg.Server.WriteTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting parishd",
			"addr", cfg.Server.Addr,
			"store", cfg.Store.Backend,
			"consent_store", cfg.Consent.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(a *app, rt *cliEnv) http.Handler {
	r := chi.NewRouter()
	httpserver.RegisterHealth(r, a.health)
	r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	networkhandler.New(a.network, a.logger,
		networkhandler.WithAdminToken(rt.cfg.Server.AdminToken),
	).Register(r)
	queryhandler.New(a.query, a.logger).Register(r)
	return r
}
