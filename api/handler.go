// Package api provides the Admin HTTP API for Almanac management.
//
// All routes are mounted under a configurable prefix (default: /almanac).
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/xraph/almanac/cycle"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/store"
)

// CycleRunner triggers a dispatch cycle on demand.
type CycleRunner interface {
	Run(ctx context.Context) (*cycle.Summary, error)
}

// Handler is the root HTTP handler for the Almanac admin API.
type Handler struct {
	store     store.Store
	policySvc *policy.Service
	dlqSvc    *dlq.Service
	runner    CycleRunner
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewHandler creates a new admin API handler.
func NewHandler(
	s store.Store,
	policySvc *policy.Service,
	dlqSvc *dlq.Service,
	runner CycleRunner,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		store:     s,
		policySvc: policySvc,
		dlqSvc:    dlqSvc,
		runner:    runner,
		logger:    logger,
		mux:       http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Events
	h.mux.HandleFunc("GET /events", h.listEvents)
	h.mux.HandleFunc("GET /events/{id}", h.getEvent)
	h.mux.HandleFunc("PATCH /events/{id}/ignore", h.ignoreEvent)
	h.mux.HandleFunc("DELETE /events/{id}", h.deleteEvent)

	// Policies
	h.mux.HandleFunc("PUT /policies/{userID}", h.putPolicy)
	h.mux.HandleFunc("GET /policies", h.listPolicies)
	h.mux.HandleFunc("GET /policies/{userID}", h.getPolicy)
	h.mux.HandleFunc("DELETE /policies/{userID}", h.deletePolicy)
	h.mux.HandleFunc("PATCH /policies/{userID}/account-channels", h.setAccountChannels)

	// DLQ
	h.mux.HandleFunc("GET /dlq", h.listDLQ)
	h.mux.HandleFunc("GET /dlq/{id}", h.getDLQ)
	h.mux.HandleFunc("DELETE /dlq", h.purgeDLQ)

	// Cycle
	h.mux.HandleFunc("POST /cycle/run", h.runCycle)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultVal
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// queryTime returns a query parameter parsed as RFC 3339, or nil.
func queryTime(r *http.Request, key string) *time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}
