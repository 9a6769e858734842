package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the delivery API under /v1. An empty jwtSecret leaves /v1 unauthenticated.
func NewRouter(handler *DeliveryHandler, jwtSecret string, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(middleware.Timeout(requestTimeout))
		}
		if jwtSecret != "" {
			r.Use(JWTAuthMiddleware(jwtSecret, logger))
		} else {
			logger.Warn("JWT secret not configured, /v1 is unauthenticated")
		}
		handler.RegisterRoutes(r)
	})
	return r
}
