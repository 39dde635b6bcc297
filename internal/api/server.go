// Package api is the admin-facing HTTP surface of the status engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"parkhub/internal/config"
	"parkhub/internal/database"
	"parkhub/internal/session"
	"parkhub/internal/status"
)

// HTTPServer serves the admin dashboard API.
type HTTPServer struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *database.DB
	resolver *status.Resolver
	mutator  *status.Mutator
	sessions session.Repository
	limiter  *rate.Limiter
	server   *http.Server
}

func NewHTTPServer(cfg *config.Config, db *database.DB, resolver *status.Resolver, mutator *status.Mutator, sessions session.Repository, logger zerolog.Logger) *HTTPServer {
	rps, burst := cfg.RateLimit()

	s := &HTTPServer{
		cfg:      cfg,
		log:      logger.With().Str("component", "http").Logger(),
		db:       db,
		resolver: resolver,
		mutator:  mutator,
		sessions: sessions,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/batch", s.handleStatusBatch)
	mux.HandleFunc("/api/status/set", s.handleSetStatus)
	mux.HandleFunc("/api/status/history", s.handleStatusHistory)
	mux.HandleFunc("/api/schedule/set", s.handleSetSchedule)
	mux.HandleFunc("/api/override/apply", s.handleApplyOverride)
	mux.HandleFunc("/api/override/cancel", s.handleCancelOverride)
	mux.HandleFunc("/api/overrides", s.handleListOverrides)
	mux.HandleFunc("/api/garages", s.handleListGarages)
	mux.HandleFunc("/api/session/garage", s.handleSessionGarage)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.middleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the composed handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// middleware tags every request with an id, checks the api key, and
// applies the global rate limit and per-request deadline.
func (s *HTTPServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		if s.cfg.Server.APIKey != "" && r.Header.Get("X-Api-Key") != s.cfg.Server.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}

		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
		defer cancel()

		log := s.log.With().Str("request_id", requestID).Logger()
		next.ServeHTTP(w, r.WithContext(log.WithContext(ctx)))
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainError maps the engine's error taxonomy onto HTTP codes.
// The specific failure text is always surfaced so the dashboard can
// show it verbatim.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *status.ValidationError
	var abErr *status.ActiveBookingsError

	switch {
	case errors.Is(err, status.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &abErr):
		writeError(w, http.StatusConflict, abErr.Error())
	case errors.Is(err, status.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrent update detected; retry")
	case errors.As(err, &verr),
		errors.Is(err, status.ErrInvalidSchedule),
		errors.Is(err, status.ErrInvalidOverrideWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
