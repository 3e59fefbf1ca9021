package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	httperrors "github.com/dropDatabas3/gatehouse/internal/http/errors"
	"github.com/dropDatabas3/gatehouse/internal/http/helpers"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/go-chi/chi/v5"
)

// InviteValidator is the read side of the invitation registry.
type InviteValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

type InviteController struct {
	invites InviteValidator
}

func NewInviteController(invites InviteValidator) *InviteController {
	return &InviteController{invites: invites}
}

// Validate handles GET /api/auth/invite/validate/{token}. Unknown, expired
// and consumed invitations all answer 404 so the page can prefill nothing.
func (c *InviteController) Validate(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("token is required"))
		return
	}
	addr, err := c.invites.Validate(r.Context(), token)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound, domain.KindExpired, domain.KindAlreadyConsumed:
			de, _ := domain.AsError(err)
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail(de.Message))
		default:
			logger.From(r.Context()).Error("invitation lookup failed", logger.Layer("controller"), logger.Op("invite.validate"), logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"email": addr})
}
