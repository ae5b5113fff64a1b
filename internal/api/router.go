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

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		// Card administration
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", s.handleListCards)
			r.Post("/", s.handleEnrollCard)
			r.Delete("/{uid}", s.handleUnenrollCard)
		})

		// Audit history, most recent first
		r.Get("/events", s.handleListEvents)

		// Controller mode and enrollment staging
		r.Put("/mode", s.handleSetMode)
		r.Put("/marks/{channel}", s.handleSetMark)

		// Manual channel override and scan injection
		r.Put("/channels/{channel}", s.handleSetChannel)
		r.Post("/scan", s.handleScan)

		// Real-time event stream
		r.Get("/ws", s.handleWebSocket)
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
