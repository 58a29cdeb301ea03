/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latencies
  5. CORS:       Cross-origin requests for the dashboards

ROUTE GROUPS:
  /api/agents/*         Agent directory and agent progress
  /api/managers/*       Manager matrix (JSON and xlsx)
  /api/targets/*        Set target, distribute allocation
  /api/commission/*     Commission policy
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. Callers are expected to sit behind the
  platform gateway that resolves the acting user.

SEE ALSO:
  - handlers.go: Handler implementations
  - metrics.go: Prometheus collectors
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures cross-cutting router behaviour.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Agent routes
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Get("/{id}/targets", h.GetAgentTargets)
		})

		// Manager routes
		r.Route("/managers", func(r chi.Router) {
			r.Get("/{id}/targets", h.GetManagerTargets)
			r.Get("/{id}/targets.xlsx", h.ExportManagerTargets)
		})

		// Target administration
		r.Route("/targets", func(r chi.Router) {
			r.Post("/", h.SetTarget)
			r.Put("/{id}/allocations", h.DistributeAllocation)
		})

		// Commission policy
		r.Route("/commission", func(r chi.Router) {
			r.Get("/", h.GetCommissionPolicy)
			r.Put("/global", h.SetGlobalCommission)
			r.Put("/agents/{id}", h.SetAgentCommission)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
