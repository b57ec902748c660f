package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	notifyhttp "github.com/crewboard/crewboard/internal/notify/http"
	"github.com/crewboard/crewboard/internal/platform/httpx"
	"github.com/crewboard/crewboard/internal/rolepolicy"
	"github.com/crewboard/crewboard/internal/routeguard"
	"github.com/crewboard/crewboard/internal/session"
	sessionhttp "github.com/crewboard/crewboard/internal/session/http"
	"github.com/crewboard/crewboard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Manager       *session.Manager
	Codec         *session.CookieCodec
	AuthHandler   *sessionhttp.Handler
	NotifyHandler *notifyhttp.Handler
	JobHandler    *jobs.Handler
}

// NewRouter constructs the chi.Router with Crewboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Manager: params.Manager,
		Codec:   params.Codec,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r, LoginRateLimiter())
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/notifications", func(r chi.Router) {
		r.Use(routeguard.RequireAuthenticated())
		params.NotifyHandler.MountRoutes(r)
	})

	// Dashboard landing routes: JSON stubs gated per role. The pages
	// themselves are rendered by the browser client; the gate and the
	// redirects are the contract.
	for _, role := range rolepolicy.Roles() {
		r.With(routeguard.Require(role)).Get(rolepolicy.DashboardRoute(role), func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			httpx.JSON(w, http.StatusOK, map[string]any{
				"role":  sess.User.Role,
				"route": rolepolicy.DashboardRoute(sess.User.Role),
			})
		})
	}

	return r
}
