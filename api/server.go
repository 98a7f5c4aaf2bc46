// Package api exposes the admin HTTP surface: deploy and undeploy HA
// workloads, inspect cluster status, and scrape metrics.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haven-dev/haven/api/handler"
)

// CreateRouter assembles the admin API router.
func CreateRouter(manager handler.Manager, cluster handler.Cluster, deployer handler.Deployer) *chi.Mux {
	r := chi.NewRouter()

	r.Route("/v1", func(r chi.Router) {
		handler.NewDeploymentsHandler(manager, deployer).Register(r)
		handler.NewStatusHandler(manager, cluster).Register(r)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// StartServer runs the admin API server until the context is cancelled.
func StartServer(ctx context.Context, router *chi.Mux, logger kitlog.Logger, bindAddr string) error {
	server := &http.Server{
		Addr:    bindAddr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown server", "err", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start server: %w", err)
	}

	return nil
}
