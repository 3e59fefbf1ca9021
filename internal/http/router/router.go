// Package router mounts the controllers on a chi router.
package router

import (
	"net/http"

	"github.com/dropDatabas3/gatehouse/internal/http/controllers"
	httperrors "github.com/dropDatabas3/gatehouse/internal/http/errors"
	mw "github.com/dropDatabas3/gatehouse/internal/http/middlewares"
	"github.com/go-chi/chi/v5"
)

type Deps struct {
	Auth    *controllers.AuthController
	Invite  *controllers.InviteController
	Config  *controllers.ConfigController
	Health  *controllers.HealthController
	Metrics http.Handler // nil disables /metrics

	TrustProxy bool
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustProxy),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/api/config", d.Config.Get)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(mw.WithNoStore())
		registerAuthRoutes(r, d)
	})
	return r
}

func registerAuthRoutes(r chi.Router, d Deps) {
	a := d.Auth
	r.Post("/login", a.Login)
	r.Post("/logout", a.Logout)
	r.Post("/refresh", a.Refresh)
	r.Post("/register", a.Register)
	r.Post("/requestPasswordReset", a.RequestPasswordReset)
	r.Post("/resetPassword", a.ResetPassword)
	r.Post("/set-password", a.SetPassword)

	r.Route("/2fa", func(r chi.Router) {
		r.Get("/enable", a.Enable2FA)
		r.Post("/verify", a.Verify2FA)
		r.Post("/verify-temp", a.VerifyTemp)
		r.Post("/confirm", a.Confirm2FA)
		r.Post("/disable", a.Disable2FA)
		r.Post("/backup/regenerate", a.RegenerateBackupCodes)
	})

	// The bare paths answer 400 rather than 404.
	r.Get("/invite/validate", d.Invite.Validate)
	r.Get("/invite/validate/", d.Invite.Validate)
	r.Get("/invite/validate/{token}", d.Invite.Validate)
}
