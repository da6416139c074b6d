package http

import (
	"context"
	"net/http"
	"time"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]string{"status": "ok"})
}

// handleReady checks that the book can answer a query.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Book.Ping(ctx); err != nil {
		ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
		return
	}
	OK(w, map[string]any{
		"status": "ready",
		"pdf":    s.deps.Renderer != nil && s.deps.Renderer.CanPDF(),
	})
}
