// Package api exposes the read-only HTTP surface over the store: the
// newest-postings view, per-source postings, attempts, and health.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boardwatch/boardwatch/internal/metrics"
	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config controls the HTTP server surface.
type Config struct {
	Timeout    time.Duration
	AuthAPIKey string
}

// Server wires HTTP handlers to the store.
type Server struct {
	router chi.Router
	store  scrape.Store
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store scrape.Store, cfg Config, logger *zap.Logger) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.Timeout))
	if cfg.AuthAPIKey != "" {
		r.Use(apiKeyMiddleware(cfg.AuthAPIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/postings", s.listPostings)
		r.Route("/sources/{source_id}", func(r chi.Router) {
			r.Get("/postings", s.listSourcePostings)
			r.Get("/attempts", s.listSourceAttempts)
			r.Get("/health", s.getSourceHealth)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.AllPostings(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// listPostings serves the newest-jobs view, ordered by first-seen
// descending.
func (s *Server) listPostings(w http.ResponseWriter, r *http.Request) {
	postings, err := s.store.AllPostings(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list postings")
		return
	}
	if openOnly(r) {
		postings = filterOpen(postings)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"postings": postings})
}

func (s *Server) listSourcePostings(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	postings, err := s.store.PostingsBySource(r.Context(), sourceID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list postings")
		return
	}
	if openOnly(r) {
		postings = filterOpen(postings)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"source_id": sourceID, "postings": postings})
}

func (s *Server) listSourceAttempts(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	attempts, err := s.store.Attempts(r.Context(), sourceID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"source_id": sourceID, "attempts": attempts})
}

func (s *Server) getSourceHealth(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	state, err := s.store.Health(r.Context(), sourceID)
	if errors.Is(err, scrape.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "source has no recorded runs")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load health")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func openOnly(r *http.Request) bool {
	return r.URL.Query().Get("open") == "true"
}

func filterOpen(postings []scrape.JobPosting) []scrape.JobPosting {
	out := make([]scrape.JobPosting, 0, len(postings))
	for _, p := range postings {
		if p.Open {
			out = append(out, p)
		}
	}
	return out
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
