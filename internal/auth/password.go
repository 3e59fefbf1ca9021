package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/admission"
	"github.com/dropDatabas3/gatehouse/internal/audit"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/email"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	tokens "github.com/dropDatabas3/gatehouse/internal/security/token"
	"github.com/dropDatabas3/gatehouse/internal/validation"
)

// The reset request answers the same whether or not the address is known.
const resetRequestedMessage = "if an account with that email exists, a password reset link has been sent"

func (s *Service) RequestPasswordReset(ctx context.Context, m Meta, in validation.ResetRequestForm) (*Message, error) {
	return runAs[*Message](s, ctx, RouteResetRequest, m, &admission.Request{Identifier: in.Email, Form: in})
}

func (s *Service) ResetPassword(ctx context.Context, m Meta, in validation.PasswordForm) (*Message, error) {
	return runAs[*Message](s, ctx, RouteReset, m, &admission.Request{Token: strings.TrimSpace(in.Token), Form: in})
}

// SetPassword activates a provisioned account with its first password.
func (s *Service) SetPassword(ctx context.Context, m Meta, in validation.PasswordForm) (*Message, error) {
	return runAs[*Message](s, ctx, RouteSetPassword, m, &admission.Request{Token: strings.TrimSpace(in.Token), Form: in})
}

func (s *Service) validateResetRequest(req *admission.Request) error {
	f, _ := req.Form.(validation.ResetRequestForm)
	return s.d.Validator.ResetRequest(f)
}

func (s *Service) validatePassword(req *admission.Request) error {
	f, _ := req.Form.(validation.PasswordForm)
	return s.d.Validator.Password(f)
}

func (s *Service) requestReset(ctx context.Context, req *admission.Request) (any, error) {
	log := logger.From(ctx).With(logger.Layer("auth"), logger.Op("requestPasswordReset"))
	acct, err := s.d.Store.GetAccountByEmail(ctx, domain.NormalizeEmail(req.Identifier))
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug("reset requested for unknown email")
		return &Message{Message: resetRequestedMessage}, nil
	}
	if err != nil {
		return nil, err
	}
	if acct.AuthSource == domain.AuthSourceDirectory {
		log.Debug("reset requested for directory account", logger.AccountID(acct.ID))
		return &Message{Message: resetRequestedMessage}, nil
	}
	link, err := s.sendToken(ctx, acct, domain.PurposePasswordReset, email.KindPasswordReset, s.d.Config.ResetTTL)
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return &Message{Message: resetRequestedMessage}, nil
	}
	if err != nil {
		return nil, err
	}
	out := &Message{Message: resetRequestedMessage}
	if s.d.Config.DebugEchoLinks {
		out.Link = link
	}
	return out, nil
}

func (s *Service) resetPassword(ctx context.Context, req *admission.Request) (any, error) {
	if err := s.redeem(ctx, req.Form.(validation.PasswordForm), domain.PurposePasswordReset); err != nil {
		return nil, err
	}
	return &Message{Message: "password has been reset"}, nil
}

func (s *Service) setPassword(ctx context.Context, req *admission.Request) (any, error) {
	f, _ := req.Form.(validation.PasswordForm)
	if err := s.d.Validator.Password(f); err != nil {
		return nil, err
	}
	if err := s.redeem(ctx, f, domain.PurposeActivation); err != nil {
		return nil, err
	}
	return &Message{Message: "password has been set"}, nil
}

func (s *Service) redeem(ctx context.Context, f validation.PasswordForm, purpose domain.TokenPurpose) error {
	hash, err := password.Hash(password.Default, f.Password)
	if err != nil {
		return domain.ErrInternal.WithCause(err)
	}
	id, err := s.d.Store.RedeemPasswordToken(ctx, tokens.SHA256Base64URL(strings.TrimSpace(f.Token)), purpose, hash, s.now())
	if err != nil {
		return err
	}
	audit.Log(ctx, audit.PasswordChanged, logger.Op(string(purpose)), logger.AccountID(id))
	return nil
}

// sendToken stores a fresh one-time token for acct and mails its link.
func (s *Service) sendToken(ctx context.Context, acct *domain.Account, purpose domain.TokenPurpose, kind string, ttl time.Duration) (string, error) {
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", domain.ErrInternal.WithCause(err)
	}
	now := s.now()
	if err := s.d.Store.CreateOneTimeToken(ctx, &domain.OneTimeToken{
		Hash:      tokens.SHA256Base64URL(raw),
		Purpose:   purpose,
		AccountID: acct.ID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return "", err
	}
	link, err := s.d.Mailer.Send(ctx, kind, acct.Email, acct.DisplayName, raw, ttl)
	if err != nil {
		logger.From(ctx).Warn("link email not delivered", logger.Layer("auth"), logger.AccountID(acct.ID), logger.Err(err))
		return link, domain.ErrServiceUnavailable.WithCause(err)
	}
	return link, nil
}
