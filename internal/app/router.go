package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/unipulse/unipulse/internal/access"
	"github.com/unipulse/unipulse/internal/audit"
	"github.com/unipulse/unipulse/internal/auth"
	"github.com/unipulse/unipulse/internal/directory"
	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
	"github.com/unipulse/unipulse/internal/survey"
	"github.com/unipulse/unipulse/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	ScopeSource    scope.Source
	Resolver       *scope.Resolver

	AuthHandler      *auth.Handler
	AccessHandler    *access.Handler
	SurveyHandler    *survey.Handler
	AuditHandler     *audit.Handler
	DirectoryHandler *directory.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		ScopeSource:    params.ScopeSource,
		Resolver:       params.Resolver,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.AccessHandler != nil {
		r.Route("/access", params.AccessHandler.MountRoutes)
	}
	if params.SurveyHandler != nil {
		params.SurveyHandler.MountRoutes(r)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.DirectoryHandler != nil {
		r.Route("/directory", params.DirectoryHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
