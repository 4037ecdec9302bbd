// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package httpapi exposes the authentication and project services as a JSON
// HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/project"
)

// AuthService is the subset of *auth.Service served over HTTP.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResult, error)
	Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.AuthResult, error)
	Logout(ctx context.Context, refreshToken, ip string) error
	LogoutAll(ctx context.Context, accountID ulid.ULID, ip string) (int, error)
	ChangePassword(ctx context.Context, req auth.ChangePasswordRequest) error
	GetAccount(ctx context.Context, accountID ulid.ULID) (*auth.Account, error)
	Deactivate(ctx context.Context, accountID ulid.ULID, reason string) error
	Activate(ctx context.Context, accountID ulid.ULID) error
	Unlock(ctx context.Context, accountID ulid.ULID) error
	VerifyEmail(ctx context.Context, accountID ulid.ULID) error
	UpdateProfile(ctx context.Context, accountID ulid.ULID, update auth.ProfileUpdate) (*auth.Account, error)
	ChangeRole(ctx context.Context, accountID ulid.ULID, role auth.Role) error
}

// ProjectService is the subset of *project.Service served over HTTP.
type ProjectService interface {
	Create(ctx context.Context, actor project.Actor, d project.Details) (*project.Project, error)
	Get(ctx context.Context, id ulid.ULID) (*project.Project, error)
	List(ctx context.Context, filter project.ListFilter) (project.Page, error)
	Update(ctx context.Context, actor project.Actor, id ulid.ULID, d project.Details) (*project.Project, error)
	Publish(ctx context.Context, actor project.Actor, id ulid.ULID) (*project.Project, error)
	SubmitOffer(ctx context.Context, actor project.Actor, projectID ulid.ULID, params project.OfferParams) (project.Offer, error)
	AcceptOffer(ctx context.Context, actor project.Actor, projectID, offerID ulid.ULID) (*project.Project, error)
	RejectOffer(ctx context.Context, actor project.Actor, projectID, offerID ulid.ULID, reason string) (*project.Project, error)
	WithdrawOffer(ctx context.Context, actor project.Actor, projectID, offerID ulid.ULID) (*project.Project, error)
	Complete(ctx context.Context, actor project.Actor, id ulid.ULID) (*project.Project, error)
	Cancel(ctx context.Context, actor project.Actor, id ulid.ULID, reason string) (*project.Project, error)
	AddImage(ctx context.Context, actor project.Actor, id ulid.ULID, url string) (project.Image, error)
	RemoveImage(ctx context.Context, actor project.Actor, id, imageID ulid.ULID) (*project.Project, error)
	Delete(ctx context.Context, actor project.Actor, id ulid.ULID) error
}

// Config holds transport settings.
type Config struct {
	// AuthRateLimit throttles the anonymous auth endpoints per client IP.
	AuthRateLimit RateLimitConfig
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	// RequestTimeout bounds handler execution. Zero means 30s.
	RequestTimeout time.Duration
}

// Deps are the collaborators of the API. Auth, Projects and Tokens are
// required.
type Deps struct {
	Auth     AuthService
	Projects ProjectService
	Tokens   auth.AccessTokenVerifier
	Clock    core.Clock
	Observer HTTPObserver
	Logger   *slog.Logger
}

// API holds the handlers.
type API struct {
	cfg      Config
	auth     AuthService
	projects ProjectService
	tokens   auth.AccessTokenVerifier
	clock    core.Clock
	observer HTTPObserver
	logger   *slog.Logger
	limiter  *ipLimiter
}

// New creates an API.
func New(cfg Config, deps Deps) (*API, error) {
	if deps.Auth == nil || deps.Projects == nil || deps.Tokens == nil {
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("auth, projects and tokens are required")
	}
	if deps.Clock == nil {
		deps.Clock = core.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	a := &API{
		cfg:      cfg,
		auth:     deps.Auth,
		projects: deps.Projects,
		tokens:   deps.Tokens,
		clock:    deps.Clock,
		observer: deps.Observer,
		logger:   deps.Logger.With("component", "http"),
	}
	if cfg.AuthRateLimit.RPS > 0 {
		a.limiter = newIPLimiter(cfg.AuthRateLimit, 3*time.Minute, deps.Clock)
	}
	return a, nil
}

// Handler returns the routed handler.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if a.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(a.instrument)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.cfg.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeCodeError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeCodeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if a.limiter != nil {
				r.Use(a.rateLimit(a.limiter))
			}
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/refresh", a.refresh)
		})
		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)
			r.Get("/me", a.me)
			r.Patch("/me", a.updateProfile)
			r.Post("/logout", a.logout)
			r.Post("/logout-all", a.logoutAll)
			r.Post("/change-password", a.changePassword)
		})
	})

	r.Route("/api/projects", func(r chi.Router) {
		r.With(a.optionalAuth).Get("/", a.listProjects)
		r.With(a.optionalAuth).Get("/{id}", a.getProject)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)
			r.Get("/my", a.myProjects)
			r.With(requireRole(auth.RoleCustomer)).Post("/", a.createProject)
			r.Put("/{id}", a.updateProject)
			r.Delete("/{id}", a.deleteProject)
			r.Post("/{id}/publish", a.publishProject)
			r.Post("/{id}/complete", a.completeProject)
			r.Post("/{id}/cancel", a.cancelProject)
			r.Post("/{id}/images", a.addImage)
			r.Delete("/{id}/images/{imageID}", a.removeImage)
			r.With(requireRole(auth.RoleCraftsman)).Post("/{id}/offers", a.submitOffer)
			r.Post("/{id}/offers/{offerID}/accept", a.acceptOffer)
			r.Post("/{id}/offers/{offerID}/reject", a.rejectOffer)
			r.Post("/{id}/offers/{offerID}/withdraw", a.withdrawOffer)
		})
	})

	r.Route("/api/admin/accounts/{id}", func(r chi.Router) {
		r.Use(a.authenticate, requireRole(auth.RoleAdmin))
		r.Get("/", a.adminGetAccount)
		r.Post("/unlock", a.adminUnlock)
		r.Post("/activate", a.adminActivate)
		r.Post("/deactivate", a.adminDeactivate)
		r.Post("/verify-email", a.adminVerifyEmail)
		r.Post("/role", a.adminChangeRole)
	})

	return r
}

// optionalAuth attaches a principal when a valid bearer token is present and
// otherwise lets the request through anonymously.
func (a *API) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		a.authenticate(next).ServeHTTP(w, r)
	})
}

func urlID(r *http.Request, param string) (ulid.ULID, error) {
	raw := chi.URLParam(r, param)
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").With(param, raw).Errorf("invalid %s", param)
	}
	return id, nil
}
