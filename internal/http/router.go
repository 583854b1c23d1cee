// Package httpapi assembles the public HTTP surface: shared middleware, the
// ops endpoints and the authenticated /v1 API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aidtrace/internal/platform/metrics"
	"aidtrace/pkg/platform/httputil"
	authmw "aidtrace/pkg/platform/middleware/auth"
	"aidtrace/pkg/platform/middleware/metadata"
	"aidtrace/pkg/platform/middleware/ratelimit"
	request "aidtrace/pkg/platform/middleware/request"
	"aidtrace/pkg/platform/middleware/requesttime"
)

// requestTimeout bounds every API request.
const requestTimeout = 30 * time.Second

// Registrar mounts a group of routes under /v1.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps is everything NewRouter needs.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Validator authmw.JWTValidator
	Checks    map[string]HealthCheck
	// WriteLimiter throttles non-GET /v1 requests per caller. Nil disables it.
	WriteLimiter *ratelimit.Window
	Routes       []Registrar
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires all public endpoints.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", healthz(d.Checks))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(requesttime.Middleware)
		r.Use(metadata.ClientMetadata)
		r.Use(authmw.RequireCaller(d.Validator, logger))
		if d.WriteLimiter != nil {
			r.Use(ratelimit.Writes(d.WriteLimiter, logger))
		}
		for _, routes := range d.Routes {
			routes.Register(r)
		}
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
