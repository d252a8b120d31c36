// Package httptransport assembles the public HTTP surface: health probes,
// Prometheus metrics, and the authenticated API routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apphandler "creditgate/internal/application/handler"
	ruleshandler "creditgate/internal/rules/handler"
	"creditgate/internal/transport/http/middleware"
	"creditgate/pkg/platform/httputil"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config carries the router's dependencies.
type Config struct {
	Applications *apphandler.Handler
	Rules        *ruleshandler.Handler
	Verifier     *middleware.Verifier
	Logger       *slog.Logger

	// Checks run on /readyz; a nil map means always ready.
	Checks map[string]HealthChecker
}

// NewRouter builds the service router. Probe and metrics endpoints stay
// outside the authenticated group so orchestration never needs tokens.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Verifier, cfg.Logger))
		cfg.Applications.Register(r)
		cfg.Rules.Register(r)
	})

	return r
}

func readiness(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	}
}
