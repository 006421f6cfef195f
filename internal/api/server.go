// Package api exposes the escrow registry over a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/eventstore"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// Server represents the API server.
type Server struct {
	Addr     string
	router   *chi.Mux
	server   *http.Server
	registry *escrow.Registry
	audit    *eventstore.AuditLog
	errs     *ferrors.HTTPErrorAdapter
	logger   *slog.Logger

	metricsPath    string
	metricsHandler http.Handler
	readTimeout    time.Duration
	writeTimeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAuditLog enables the history endpoint and ledger counts in /v1/stats.
func WithAuditLog(a *eventstore.AuditLog) Option {
	return func(s *Server) { s.audit = a }
}

// WithMetricsHandler mounts h at path.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithTimeouts overrides the server read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
	}
}

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(addr string, registry *escrow.Registry, opts ...Option) *Server {
	s := &Server{
		Addr:         addr,
		router:       chi.NewRouter(),
		registry:     registry,
		logger:       slog.Default(),
		readTimeout:  15 * time.Second,
		writeTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errs = ferrors.NewHTTPErrorAdapter(s.logger)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/initialize", s.handleInitialize)
		r.Get("/stats", s.handleStats)

		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks/{slot}", s.handleGetTask)
		r.Post("/tasks/{slot}/complete", s.handleCompleteTask)
		if s.audit != nil {
			r.Get("/tasks/{slot}/history", s.handleTaskHistory)
		}
	})

	if s.metricsHandler != nil {
		s.router.Method(http.MethodGet, s.metricsPath, s.metricsHandler)
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := Response{
		Success: true,
		Data:    data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Error writes a classified error response.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	s.errs.WriteErrorResponse(w, r, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
