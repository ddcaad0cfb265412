package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dinehall/dinehall/gateway/internal/api/handlers"
	"github.com/dinehall/dinehall/gateway/internal/api/middleware"
	"github.com/dinehall/dinehall/gateway/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.ClientContextExtractor)
	r.Use(middleware.Telemetry)
	// cors runs ahead of auth so browser preflight OPTIONS requests,
	// which carry no credentials, are answered instead of rejected.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-Id", "X-Venue-Id", "X-Session-Key", "X-Agent-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.NewAPIKeyAuth().Middleware)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Safety gateway — the mandatory pre-flight check
		r.Post("/safety/check", h.SafetyCheck)

		// Tool invocation boundary
		r.Post("/tools/{toolName}", h.InvokeTool)

		// Agent registration surface
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Get("/{agentID}", h.GetAgent)
		})

		// Incident ledger
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.ListIncidents)
			r.Route("/{incidentID}", func(r chi.Router) {
				r.Get("/", h.GetIncident)
				r.Patch("/", h.UpdateIncident)
				r.Post("/close", h.CloseIncident)
			})
		})

		// Approvals queue
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", h.ListApprovals)
			r.Post("/{approvalID}/resolve", h.ResolveApproval)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "dinehall-gateway",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "dinehall-gateway",
		})
	}
}
