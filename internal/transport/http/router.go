package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/platform/health"
	"icegrid/internal/platform/middleware"
	authmw "icegrid/internal/platform/middleware/auth"
)

// Registrar mounts routes onto a chi router.
type Registrar interface {
	Register(r chi.Router)
}

// Handlers collects every route group the router mounts. Optional groups
// may be nil and are skipped.
type Handlers struct {
	Auth interface {
		Registrar
		RegisterLogin(r chi.Router)
		RegisterProtected(r chi.Router)
	}
	Orgs interface {
		Registrar
		RegisterStaff(r chi.Router)
		RegisterAdmin(r chi.Router)
	}
	Users interface {
		RegisterAdmin(r chi.Router)
	}
	Rinks interface {
		Registrar
		RegisterStaff(r chi.Router)
	}
	Measurements interface {
		Registrar
		RegisterStaff(r chi.Router)
	}
	SSP       Registrar
	Dashboard Registrar
	Tickets   interface {
		Registrar
		RegisterStaff(r chi.Router)
	}
	Weather interface {
		Registrar
		RegisterAdmin(r chi.Router)
	}
	System interface {
		RegisterStaff(r chi.Router)
		RegisterAdmin(r chi.Router)
	}
	Health *health.Handler
}

// NewRouter wires all endpoints with the middleware stack. Routes are
// split into four tiers: public, SSP machine ingest (per-rink API key),
// authenticated, and staff/admin.
func NewRouter(h Handlers, authn authmw.Authenticator, logger *slog.Logger, loginLimiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	if h.Health != nil {
		h.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Login is throttled per source IP.
		r.Group(func(r chi.Router) {
			if loginLimiter != nil {
				r.Use(loginLimiter.Middleware)
			}
			h.Auth.RegisterLogin(r)
		})

		// Refresh and logout authenticate with the presented token
		// themselves, so they stay outside the auth gate. Logout in
		// particular must work with an expired or already revoked token.
		h.Auth.Register(r)

		// SSP machine ingest authenticates with the rink API key, not a
		// user token.
		if h.SSP != nil {
			h.SSP.Register(r)
		}

		// Everything below requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(authn, logger))

			h.Auth.RegisterProtected(r)
			h.Orgs.Register(r)
			h.Rinks.Register(r)
			h.Measurements.Register(r)
			h.Tickets.Register(r)
			h.Weather.Register(r)
			if h.Dashboard != nil {
				h.Dashboard.Register(r)
			}

			// Staff: admins and operators.
			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole(logger, authmodels.RoleAdmin, authmodels.RoleOperator))

				h.Orgs.RegisterStaff(r)
				h.Rinks.RegisterStaff(r)
				h.Measurements.RegisterStaff(r)
				h.Tickets.RegisterStaff(r)
				h.System.RegisterStaff(r)
			})

			// Admin only.
			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole(logger, authmodels.RoleAdmin))

				h.Orgs.RegisterAdmin(r)
				h.Users.RegisterAdmin(r)
				h.Weather.RegisterAdmin(r)
				h.System.RegisterAdmin(r)
			})
		})
	})

	return r
}
