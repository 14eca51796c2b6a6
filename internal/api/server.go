// Package api exposes the observable status surface over HTTP: health,
// detected capabilities, and Prometheus metrics. It is optional; the MCP
// stdio surface works without it.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fetchkit/fetchkit/internal/capability"
	"github.com/fetchkit/fetchkit/internal/metrics"
)

// StatusProvider reports the cached capability set without network I/O.
type StatusProvider interface {
	Status() capability.Set
}

// Server wires HTTP handlers to the capability detector and metrics.
type Server struct {
	router   chi.Router
	detector StatusProvider
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(detector StatusProvider, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		detector: detector,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/status", s.status)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status mirrors the startup capability report: which tiers are active,
// plus version/reason details, without issuing a network fetch.
func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	caps := s.detector.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"http2": map[string]any{
			"state":   caps.HTTP2.State(),
			"version": caps.HTTP2.Version,
			"reason":  caps.HTTP2.Reason,
		},
		"js_rendering": map[string]any{
			"state":   caps.JSRendering.State(),
			"version": caps.JSRendering.Version,
			"reason":  caps.JSRendering.Reason,
		},
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", zap.Any("panic", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
