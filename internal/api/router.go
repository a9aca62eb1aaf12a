package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health and status (no auth required for basic monitoring)
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Rebind map endpoints
			r.Route("/maps", func(r chi.Router) {
				r.Get("/", s.handleListMaps)
				r.Post("/", s.handleCreateMap)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetMap)
					r.Put("/", s.handleUpdateMap)
					r.Delete("/", s.handleDeleteMap)
					r.Post("/activate", s.handleActivateMap)
				})
			})

			// Shift mode of the active map
			r.Get("/shift-mode", s.handleGetShiftMode)
			r.Put("/shift-mode", s.handleSetShiftMode)

			// WebSocket (token auth via query parameter, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
