// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package web serves the account routes and the strategy-guarded API.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/strategy"
)

// DefaultExcludedPaths are the API paths served without authentication.
var DefaultExcludedPaths = []string{
	"/api/v1/status/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
}

// Config holds the collaborators of a Server.
type Config struct {
	// Addr is the listen address in "host:port" format.
	Addr     string
	Service  *auth.Service
	Users    auth.UserRepository
	Strategy strategy.Strategy
	// ExcludedPaths defaults to DefaultExcludedPaths when nil.
	ExcludedPaths []string
	// CookieName names the cookie of the account routes.
	CookieName string
	// Metrics is optional.
	Metrics *observability.Metrics
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	Logger         *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	addr       string
	service    *auth.Service
	users      auth.UserRepository
	strategy   strategy.Strategy
	excluded   []string
	cookieName string
	metrics    *observability.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	validate   *validator.Validate
	forms      *form.Decoder

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer validates cfg and creates a Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("credential service is required")
	}
	if cfg.Users == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("user repository is required")
	}
	if cfg.Strategy == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth strategy is required")
	}
	if cfg.ExcludedPaths == nil {
		cfg.ExcludedPaths = DefaultExcludedPaths
	}
	if cfg.CookieName == "" {
		cfg.CookieName = strategy.DefaultCookieName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	return &Server{
		addr:       cfg.Addr,
		service:    cfg.Service,
		users:      cfg.Users,
		strategy:   cfg.Strategy,
		excluded:   cfg.ExcludedPaths,
		cookieName: cfg.CookieName,
		metrics:    cfg.Metrics,
		tracer:     cfg.TracerProvider.Tracer(tracerName),
		logger:     cfg.Logger,
		validate:   newValidator(),
		forms:      form.NewDecoder(),
	}, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.accountRoutes(r)
	r.Route("/api/v1", s.apiRoutes)
	return r
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the listening address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
