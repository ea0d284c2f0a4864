package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-node/internal/auth"
	"github.com/nerrad567/gray-logic-node/internal/panel"
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

		r.With(s.requireScope(auth.ScopeCommand)).Post("/message", s.handleMessage)
		r.With(s.requireScope(auth.ScopeRead)).Get("/history", s.handleHistory)

		// The browser WebSocket API cannot set headers; the token travels
		// as a query parameter and is checked in the handler.
		r.Get("/ws", s.handleWebSocket)
	})

	r.Handle("/*", panel.Handler(s.panelDir))

	return r
}
