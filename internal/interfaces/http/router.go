package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/KeyIP-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware needed to build the
// route tree.
type RouterConfig struct {
	ServingHandler *handlers.ServingHandler
	HealthHandler  *handlers.HealthHandler

	CORS          *middleware.CORSMiddleware
	LoggingConfig middleware.LoggingConfig
	Logger        logging.Logger
}

// NewRouter builds the complete HTTP route tree: global middleware, the
// public liveness/readiness probes, and the six model-serving routes under
// /v1/models.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	// Echo the request ID chosen by chimw.RequestID back to the client.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set(chimw.RequestIDHeader, chimw.GetReqID(req.Context()))
			next.ServeHTTP(w, req)
		})
	})
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORS != nil {
		r.Use(cfg.CORS.Handler)
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.LoggingConfig))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}

	registerServingRoutes(r, cfg.ServingHandler)

	return r
}

// registerServingRoutes mounts the six model-serving routes of the stable
// HTTP/JSON surface under /v1/models.
func registerServingRoutes(r chi.Router, h *handlers.ServingHandler) {
	if h == nil {
		return
	}
	r.Route("/v1/models", func(mr chi.Router) {
		mr.Get("/{name}", h.GetStatus)
		mr.Get("/{name}/versions/{version}", h.GetVersionStatus)
		mr.Get("/{name}/metadata", h.GetMetadata)
		mr.Get("/{name}/versions/{version}/metadata", h.GetVersionMetadata)
		mr.Post("/{name}:predict", h.Predict)
		mr.Post("/{name}/versions/{version}:predict", h.PredictVersion)
	})
}
