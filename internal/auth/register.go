package auth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/admission"
	"github.com/dropDatabas3/gatehouse/internal/audit"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	"github.com/dropDatabas3/gatehouse/internal/validation"
	"github.com/google/uuid"
)

const registeredMessage = "registration successful"

// Register creates a local account, redeeming the invitation when a token is
// supplied.
func (s *Service) Register(ctx context.Context, m Meta, in validation.RegisterForm) (*Message, error) {
	return runAs[*Message](s, ctx, RouteRegister, m, &admission.Request{
		Identifier:  in.Email,
		InviteToken: strings.TrimSpace(in.Token),
		Form:        in,
	})
}

func (s *Service) validateRegister(req *admission.Request) error {
	f, _ := req.Form.(validation.RegisterForm)
	return s.d.Validator.Register(f)
}

func (s *Service) register(ctx context.Context, req *admission.Request) (any, error) {
	f := req.Form.(validation.RegisterForm)
	acct, err := s.newLocalAccount(f.Email, f.Name, f.Username, f.Password)
	if err != nil {
		return nil, err
	}
	if req.InviteToken != "" {
		if _, err := s.d.Invites.Redeem(ctx, req.InviteToken, acct); err != nil {
			return nil, err
		}
	} else if err := s.d.Store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.AccountRegistered, logger.AccountID(acct.ID), logger.Bool("invited", req.InviteToken != ""))
	return &Message{Message: registeredMessage}, nil
}

// newLocalAccount builds an unsaved local account. An empty plain password
// leaves the account passwordless until activation.
func (s *Service) newLocalAccount(email, name, username, plain string) (*domain.Account, error) {
	now := s.now()
	acct := &domain.Account{
		ID:          uuid.NewString(),
		Email:       domain.NormalizeEmail(email),
		DisplayName: strings.TrimSpace(name),
		Username:    strings.TrimSpace(username),
		AuthSource:  domain.AuthSourceLocal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if plain != "" {
		hash, err := password.Hash(password.Default, plain)
		if err != nil {
			return nil, domain.ErrInternal.WithCause(err)
		}
		acct.PasswordHash = &hash
	}
	return acct, nil
}
