// ABOUTME: Route table for the HTTP API
// ABOUTME: Reads are public; writes are wrapped with bearer auth when a JWT secret is configured

package server

import (
	"log/slog"
	"net/http"

	"github.com/2389/airway-api/internal/auth"
)

// routes builds the mux and wraps it with the middleware chain.
func (s *Server) routes(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.HandleFunc("GET /datetime", s.handleDatetime)
	mux.HandleFunc("GET /random-words", s.handleRandomWords)

	protect := s.protector(logger.With("component", "auth"))
	s.todos.register(mux, "/todos", protect)
	s.milestones.register(mux, "/timeline/milestones", protect)
	mux.HandleFunc("GET /timeline/overview", s.handleOverview)

	mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)
	mux.HandleFunc("GET /docs", s.handleDocs)

	var h http.Handler = mux
	h = corsMiddleware(s.config.CORS)(h)
	h = loggingMiddleware(logger.With("component", "http"))(h)
	h = requestIDMiddleware(h)
	return h
}

// protector returns the wrapper applied to write routes.
func (s *Server) protector(logger *slog.Logger) func(http.HandlerFunc) http.Handler {
	if s.verifier == nil {
		return func(h http.HandlerFunc) http.Handler { return h }
	}

	authMW := auth.HTTPAuthMiddleware(s.verifier, logger)
	return func(h http.HandlerFunc) http.Handler {
		return authMW(recordSubject(h))
	}
}
