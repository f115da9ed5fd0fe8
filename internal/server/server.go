package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/app"
	"github.com/varoOP/crimedb/internal/backfill"
	"github.com/varoOP/crimedb/internal/domain"
)

// Querier is the part of the App the HTTP API serves.
type Querier interface {
	Query(ctx context.Context, location, month string, opts app.QueryOptions) (*app.QueryResult, error)
	Counts(ctx context.Context, location string, current domain.Month) (*app.CountsResult, error)
	Backfill(ctx context.Context, location string) (*backfill.Job, error)
	BackfillJob(id string) (*backfill.Job, bool)
	DefaultMonth() domain.Month
	Ready(ctx context.Context) error
}

// Server exposes the query API alongside health, readiness and metrics
// endpoints.
type Server struct {
	log        zerolog.Logger
	app        Querier
	router     chi.Router
	httpServer *http.Server
}

func New(log zerolog.Logger, addr string, a Querier) *Server {
	s := &Server{
		log: log.With().Str("module", "server").Logger(),
		app: a,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Get("/api/crimes", s.handleCrimes)
	r.Get("/api/counts", s.handleCounts)
	r.Post("/api/backfill", s.handleStartBackfill)
	r.Get("/api/backfill/{id}", s.handleBackfillStatus)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func (s *Server) handleCrimes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location := q.Get("location")
	if location == "" {
		writeError(w, http.StatusBadRequest, errors.New("location is required"))
		return
	}

	month := q.Get("month")
	if month == "" {
		month = s.app.DefaultMonth().String()
	}

	var opts app.QueryOptions
	if raw := q.Get("backfill"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid backfill flag"))
			return
		}
		opts.SkipBackfill = !enabled
	}

	result, err := s.app.Query(r.Context(), location, month, opts)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location := q.Get("location")
	if location == "" {
		writeError(w, http.StatusBadRequest, errors.New("location is required"))
		return
	}

	var current domain.Month
	if raw := q.Get("month"); raw != "" {
		m, err := domain.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		current = m
	}

	result, err := s.app.Counts(r.Context(), location, current)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStartBackfill(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		writeError(w, http.StatusBadRequest, errors.New("location is required"))
		return
	}

	job, err := s.app.Backfill(r.Context(), location)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, job.Status())
}

func (s *Server) handleBackfillStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, ok := s.app.BackfillJob(id)
	if !ok {
		writeError(w, http.StatusNotFound, errors.Errorf("backfill %s not found", id))
		return
	}

	writeJSON(w, http.StatusOK, job.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.app.Ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidMonthFormat),
		errors.Is(err, domain.ErrBeforeDataFloor),
		errors.Is(err, domain.ErrAfterMostRecent):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrUnresolvableLocation):
		return http.StatusNotFound
	case errors.Is(err, backfill.ErrMostRecentUnknown):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
