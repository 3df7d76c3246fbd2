// Package server is the sync server's HTTP surface: authentication,
// document listing, and the push/pull endpoints. It holds no CRDT merge
// logic of its own; every pushed document part is an idempotent insert into
// pkg/store.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytes-zone/beeps/pkg/auth"
	"github.com/bytes-zone/beeps/pkg/store"
)

// Server wires together the store, JWT issuer and configuration needed to
// serve the sync protocol.
type Server struct {
	Store             *store.Store
	Issuer            *auth.Issuer
	AllowRegistration bool
	BodyLimitBytes    int64
	RequestTimeout    time.Duration
	Logger            *slog.Logger

	rateLimiter *GlobalRateLimiter
}

// New builds a Server ready to have its Handler mounted.
func New(st *store.Store, issuer *auth.Issuer, allowRegistration bool, bodyLimitBytes int64, requestTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Store:             st,
		Issuer:            issuer,
		AllowRegistration: allowRegistration,
		BodyLimitBytes:    bodyLimitBytes,
		RequestTimeout:    requestTimeout,
		Logger:            logger,
		rateLimiter:       NewGlobalRateLimiter(20, 40),
	}
}

// Handler builds the full request-handling chain: body-size limiting,
// request timeout, rate limiting, access logging, then routing, outermost
// first.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/register", s.wrap(s.handleRegister))
	mux.HandleFunc("POST /api/v1/login", s.wrap(s.handleLogin))
	mux.HandleFunc("GET /api/v1/whoami", s.wrap(s.requireAuth(s.handleWhoami)))
	mux.HandleFunc("GET /api/v1/documents", s.wrap(s.requireAuth(s.handleListDocuments)))
	mux.HandleFunc("POST /api/v1/push/{id}", s.wrap(s.requireAuth(s.handlePush)))
	mux.HandleFunc("GET /api/v1/pull/{id}", s.wrap(s.requireAuth(s.handlePull)))

	var handler http.Handler = mux
	handler = s.logRequests(handler)
	handler = s.rateLimiter.Middleware(handler)
	handler = s.withRequestTimeout(handler)
	handler = s.limitBody(handler)
	return handler
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.BodyLimitBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRequestTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.Logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlerFunc is the internal handler shape used before errors are
// translated to HTTP responses: every handler returns an error instead of
// writing one itself, so the mapping from error to status code lives in
// exactly one place (wrap).
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, err)
		}
	}
}
