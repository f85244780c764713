// Package api implements the REST surface of the credential store consumed
// by the portal: login, password changes, forgot-password requests, and the
// admin-side user management endpoints.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"gatehouse/internal/token"
	"gatehouse/store"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo    store.Repository
	tokens  *token.Issuer
	logger  *slog.Logger
	metrics *metricsCollector
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for request-level events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// New creates a new API instance.
func New(repo store.Repository, tokens *token.Issuer, opts ...Option) *API {
	a := &API{
		repo:    repo,
		tokens:  tokens,
		metrics: newMetricsCollector(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.logger = a.logger.With("component", "api")
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.metrics.instrument)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Post("/login", a.Login)
	r.Put("/change_password", a.ChangePassword)
	r.Post("/forgot_request", a.ForgotRequest)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/me", a.Me)
		r.Put("/change_own_password", a.ChangeOwnPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware, a.AdminOnly)
		r.Get("/users", a.ListUsers)
		r.Put("/admin/change_credentials", a.AdminChangeCredentials)
		r.Post("/admin/create_user", a.AdminCreateUser)
		r.Get("/admin/forgot_requests", a.AdminForgotRequests)
		r.Post("/admin/reset_user_password", a.AdminResetUserPassword)
	})

	return r
}
