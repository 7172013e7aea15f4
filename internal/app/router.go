package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/gatewarden/gatewarden/internal/audit/http"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/group"
	"github.com/gatewarden/gatewarden/internal/role"
	"github.com/gatewarden/gatewarden/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Auth         *auth.Middleware
	RoleHandler  *role.Handler
	GroupHandler *group.Handler
	AuditHandler *audithttp.Handler
	JobHandler   *jobs.Handler
}

// NewRouter constructs the chi.Router with Gatewarden defaults. Everything
// under /api/v1 requires an API key; health and job probes stay open.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(params.Auth.RequireAPIKey)
		api.Route("/roles", params.RoleHandler.MountRoutes)
		api.Route("/groups", params.GroupHandler.MountRoutes)
		if params.AuditHandler != nil {
			api.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
