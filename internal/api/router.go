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
		r.Get("/metrics", s.handleMetrics)

		r.Route("/peripherals", func(r chi.Router) {
			r.Get("/", s.handleListPeripherals)
			r.Post("/", s.handleCreatePeripheral)
			r.Get("/types", s.handleListTypes)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetPeripheral)
				r.Delete("/", s.handleDeletePeripheral)
				r.Post("/command", s.handleCommand)
			})
		})

		r.Get("/poll", s.handleGetPoll)
		r.Put("/poll", s.handleSetPoll)

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
