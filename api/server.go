package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/moodshelf"
	"github.com/poiesic/moodshelf/artifact"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultTopK is used when a search request omits top_k.
const DefaultTopK = 20

const maxBodyBytes = 1 << 20

// Library is the part of moodshelf.Library the server uses.
type Library interface {
	Ready() bool
	Snapshot() *artifact.Snapshot
	Stats(ctx context.Context) (*moodshelf.Stats, error)
	NewEngine(opts ...search.Option) (*search.Engine, error)
}

// Server serves the HTTP API.
type Server struct {
	library  Library
	engine   *search.Engine
	metrics  *Metrics
	registry *prometheus.Registry
	logger   *slog.Logger
	handler  http.Handler

	searchOpts []search.Option
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry registers metrics with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithSearchOptions configures the server's query engine.
func WithSearchOptions(opts ...search.Option) Option {
	return func(s *Server) {
		s.searchOpts = append(s.searchOpts, opts...)
	}
}

// NewServer creates the API server.
func NewServer(library Library, opts ...Option) (*Server, error) {
	s := &Server{
		library: library,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = NewMetrics(s.registry, s.indexedBooks)

	engine, err := library.NewEngine(s.searchOpts...)
	if err != nil {
		return nil, err
	}
	s.engine = engine

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/moods", s.handleMoods)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.handler = s.recoverPanics(s.observe(mux))
	return s, nil
}

func (s *Server) indexedBooks() float64 {
	snap := s.library.Snapshot()
	if snap == nil {
		return 0
	}
	return float64(snap.Index.Len())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query     string  `json:"query"`
	TopK      *int    `json:"top_k,omitempty"`
	Mood      string  `json:"mood,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Results   []*core.SearchResult `json:"results"`
	Total     int                  `json:"total"`
	QueryTime float64              `json:"query_time"` // seconds
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	q := search.Query{
		Text:      req.Query,
		TopK:      DefaultTopK,
		Mood:      req.Mood,
		MinRating: req.MinRating,
	}
	if req.TopK != nil {
		q.TopK = *req.TopK
	}

	results, err := s.engine.SearchWithMonitor(r.Context(), q, &searchMonitor{metrics: s.metrics})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("search failed", "err", err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Seconds(),
	})
}

func (s *Server) handleMoods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"moods": core.MoodLabels()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.library.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.library.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrEmbeddingFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
