// Package api provides the HTTP API server and handlers for the Veil server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veilapp/veil-server/internal/service"
	"github.com/veilapp/veil-server/internal/store"
)

// Services bundles the business services the handlers call.
type Services struct {
	Library    *service.LibraryService
	Visibility *service.VisibilityService
	Browse     *service.BrowseService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    store.Store
	services *Services
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger

	// recomputeRateLimiter throttles the explicit recompute endpoints;
	// a full rebuild is the most expensive thing a client can request.
	recomputeRateLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
// registry carries the process metrics exposed on /metrics; pass a fresh
// registry in tests.
func NewServer(st store.Store, services *Services, registry *prometheus.Registry, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Veil-User"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("Veil API", "1.0.0")
	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:                st,
		services:             services,
		router:               router,
		api:                  humaAPI,
		logger:               logger,
		recomputeRateLimiter: NewRateLimiter(10, 5),
	}

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.registerHealthRoutes()
	s.registerUserRoutes()
	s.registerInstanceRoutes()
	s.registerIngestRoutes()
	s.registerVisibilityRoutes()
	s.registerBrowseRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
