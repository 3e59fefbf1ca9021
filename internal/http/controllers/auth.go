// Package controllers adapts HTTP requests to the auth service.
package controllers

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/gatehouse/internal/auth"
	httperrors "github.com/dropDatabas3/gatehouse/internal/http/errors"
	"github.com/dropDatabas3/gatehouse/internal/http/helpers"
	mw "github.com/dropDatabas3/gatehouse/internal/http/middlewares"
)

// AuthController serves /api/auth.
type AuthController struct {
	svc *auth.Service
}

func NewAuthController(svc *auth.Service) *AuthController {
	return &AuthController{svc: svc}
}

func meta(r *http.Request) auth.Meta {
	return auth.Meta{
		ClientIP: mw.GetClientIP(r.Context()),
		Header:   r.Header,
		Bearer:   helpers.Bearer(r),
	}
}

// handle decodes In (unless the request has no body), calls fn and writes
// its result as 200 JSON.
func handle[In any, Out any](fn func(context.Context, auth.Meta, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if r.Method != http.MethodGet && !helpers.ReadJSON(w, r, &in) {
			return
		}
		out, err := fn(r.Context(), meta(r), in)
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}
		helpers.WriteJSON(w, http.StatusOK, out)
	}
}

// POST /api/auth/login
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.Login)(w, r)
}

// POST /api/auth/logout
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.Logout(r.Context(), meta(r)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, auth.Message{Message: "logged out"})
}

// POST /api/auth/refresh
func (c *AuthController) Refresh(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.Refresh)(w, r)
}

// POST /api/auth/register
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.Register)(w, r)
}

// POST /api/auth/requestPasswordReset
func (c *AuthController) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.RequestPasswordReset)(w, r)
}

// POST /api/auth/resetPassword
func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.ResetPassword)(w, r)
}

// POST /api/auth/set-password
func (c *AuthController) SetPassword(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.SetPassword)(w, r)
}

// GET /api/auth/2fa/enable
func (c *AuthController) Enable2FA(w http.ResponseWriter, r *http.Request) {
	out, err := c.svc.Enable2FA(r.Context(), meta(r))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

func (c *AuthController) Verify2FA(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.Verify2FA)(w, r)
}

func (c *AuthController) VerifyTemp(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.VerifyTemp)(w, r)
}

func (c *AuthController) Confirm2FA(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.Confirm2FA)(w, r)
}

func (c *AuthController) Disable2FA(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.Disable2FA)(w, r)
}

func (c *AuthController) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	handle(c.svc.RegenerateBackupCodes)(w, r)
}
