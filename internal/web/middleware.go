// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/strategy"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity set by the authentication
// middleware, or nil.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityKey{}).(*auth.Identity)
	return identity
}

// sessionIDReader is implemented by cookie-based strategies.
type sessionIDReader interface {
	SessionID(r *http.Request) string
}

// hasCredentials reports whether the request carries an Authorization header
// or the strategy's session cookie.
func (s *Server) hasCredentials(r *http.Request) bool {
	if strategy.AuthorizationHeader(r) != "" {
		return true
	}
	if reader, ok := s.strategy.(sessionIDReader); ok {
		return reader.SessionID(r) != ""
	}
	return false
}

// authenticate guards the API. Excluded paths pass through. Requests without
// credentials get 401 and requests whose credentials resolve to nobody get
// 403. Otherwise the identity is placed in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.strategy.RequiresAuth(r.URL.Path, s.excluded) {
			next.ServeHTTP(w, r)
			return
		}
		if !s.hasCredentials(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		identity, err := s.strategy.ResolveIdentity(r)
		if err != nil {
			s.internalError(w, r, "resolve identity failed", err)
			return
		}
		if identity == nil {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

const tracerName = "github.com/gatekeep/gatekeep/internal/web"

// requestLog traces and logs each request and records it in the request
// counter. Handlers see the span in their context, so their log lines carry
// its trace and span ids.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request.method", r.Method)),
		)
		defer span.End()
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), s.logger, msg, err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
