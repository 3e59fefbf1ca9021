package auth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/admission"
	"github.com/dropDatabas3/gatehouse/internal/audit"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/session"
)

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult holds either a token pair or a 2FA challenge.
type LoginResult struct {
	*session.Tokens
	TwoFactorRequired bool   `json:"two_factor_required,omitempty"`
	TempToken         string `json:"temp_token,omitempty"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Service) Login(ctx context.Context, m Meta, in LoginInput) (*LoginResult, error) {
	return runAs[*LoginResult](s, ctx, RouteLogin, m, &admission.Request{
		Identifier: strings.TrimSpace(in.Email),
		Secret:     in.Password,
	})
}

func (s *Service) login(ctx context.Context, req *admission.Request) (any, error) {
	acct := req.Account
	tf, err := s.d.Store.GetTwoFactor(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	acct.TwoFactor = tf
	if acct.TwoFactorEnabled() {
		temp, err := s.d.TwoFactor.BeginChallenge(ctx, acct)
		if err != nil {
			return nil, err
		}
		audit.Log(ctx, audit.LoginChallenged, logger.AccountID(acct.ID))
		return &LoginResult{TwoFactorRequired: true, TempToken: temp}, nil
	}
	toks, err := s.d.Sessions.Issue(ctx, acct)
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.LoginSucceeded, logger.AccountID(acct.ID))
	return &LoginResult{Tokens: toks}, nil
}

// Logout revokes the session behind the bearer token.
func (s *Service) Logout(ctx context.Context, m Meta) error {
	_, err := s.run(ctx, RouteLogout, m, &admission.Request{})
	return err
}

func (s *Service) logout(ctx context.Context, req *admission.Request) (any, error) {
	return nil, s.d.Sessions.Invalidate(ctx, req.Principal.SessionID)
}

// Refresh rotates the refresh token. A reused or revoked one is Unauthorized.
func (s *Service) Refresh(ctx context.Context, m Meta, in RefreshInput) (*session.Tokens, error) {
	return runAs[*session.Tokens](s, ctx, RouteRefresh, m, &admission.Request{Token: strings.TrimSpace(in.RefreshToken)})
}

func (s *Service) refresh(ctx context.Context, req *admission.Request) (any, error) {
	if req.Token == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.d.Sessions.Refresh(ctx, req.Token)
}
