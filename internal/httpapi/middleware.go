// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/project"
	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

// Principal is the authenticated caller.
type Principal struct {
	AccountID ulid.ULID
	Email     string
	Role      auth.Role
}

// Actor converts the principal for project commands.
func (p Principal) Actor() project.Actor {
	return project.Actor{ID: p.AccountID, Admin: p.Role == auth.RoleAdmin}
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the authenticate middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// authenticate requires a valid bearer access token.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeCodeError(w, http.StatusUnauthorized, CodeUnauthenticated, "missing bearer token")
			return
		}

		claims, err := a.tokens.Verify(token, a.clock.Now())
		if err != nil {
			a.logger.DebugContext(r.Context(), "access token rejected", "error", err)
			writeCodeError(w, http.StatusUnauthorized, auth.CodeInvalidAccessToken, "invalid access token")
			return
		}
		id, err := claims.AccountID()
		if err != nil {
			writeCodeError(w, http.StatusUnauthorized, auth.CodeInvalidAccessToken, "invalid access token")
			return
		}

		principal := Principal{AccountID: id, Email: claims.Email, Role: claims.Role}
		if !isSafeMethod(r.Method) {
			var ok bool
			if principal, ok = a.currentPrincipal(w, r, principal); !ok {
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// currentPrincipal checks the stored account behind an access token before a
// write. Deactivated accounts are refused and the role is taken from storage,
// so neither change waits for the access token to expire.
func (a *API) currentPrincipal(w http.ResponseWriter, r *http.Request, p Principal) (Principal, bool) {
	account, err := a.auth.GetAccount(r.Context(), p.AccountID)
	if errutil.Code(err) == auth.CodeAccountNotFound {
		writeCodeError(w, http.StatusUnauthorized, auth.CodeInvalidAccessToken, "invalid access token")
		return p, false
	}
	if err != nil {
		writeError(w, r, a.logger, err)
		return p, false
	}
	if !account.IsActive() {
		writeCodeError(w, http.StatusForbidden, auth.CodeAccountDeactivated, "account is deactivated")
		return p, false
	}
	p.Email = account.Email()
	p.Role = account.Role()
	return p, true
}

// requireRole admits principals holding one of roles. Admins always pass.
func requireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeCodeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
				return
			}
			if p.Role != auth.RoleAdmin && !slices.Contains(roles, p.Role) {
				writeCodeError(w, http.StatusForbidden, CodeForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HTTPObserver records served requests.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// instrument logs each request and reports it to the observer.
func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if a.observer != nil {
			a.observer.ObserveHTTP(r.Method, route, status, elapsed)
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		a.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// clientIP returns the caller address without port. RealIP middleware, when
// enabled, has already replaced RemoteAddr with the forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
