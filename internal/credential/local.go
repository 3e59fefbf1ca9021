package credential

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	tokens "github.com/dropDatabas3/gatehouse/internal/security/token"
)

// Local checks passwords stored as argon2id (or legacy bcrypt) hashes.
type Local struct {
	accounts domain.AccountRepository
	params   password.Params
	// dummy is verified for unknown accounts so both paths cost the same.
	dummy string
}

func NewLocal(accounts domain.AccountRepository) (*Local, error) {
	seed, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return nil, err
	}
	dummy, err := password.Hash(password.Default, seed)
	if err != nil {
		return nil, err
	}
	return &Local{accounts: accounts, params: password.Default, dummy: dummy}, nil
}

func (l *Local) Name() string { return "local" }

func (l *Local) lookup(ctx context.Context, identifier string) (*domain.Account, error) {
	id := strings.TrimSpace(identifier)
	acct, err := l.accounts.GetAccountByEmail(ctx, id)
	if errors.Is(err, domain.ErrNotFound) && !strings.Contains(id, "@") {
		acct, err = l.accounts.GetAccountByUsername(ctx, id)
	}
	return acct, err
}

func (l *Local) Authenticate(ctx context.Context, identifier, secret string) (*domain.Account, error) {
	log := logger.From(ctx).With(logger.Layer("credential"), logger.Op("local.authenticate"))

	acct, err := l.lookup(ctx, identifier)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if acct == nil || !acct.HasPassword() {
		password.Verify(secret, l.dummy)
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(secret, *acct.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if password.NeedsRehash(l.params, *acct.PasswordHash) {
		if h, err := password.Hash(l.params, secret); err == nil {
			if err := l.accounts.SetPasswordHash(ctx, acct.ID, h); err != nil {
				log.Warn("password rehash failed", logger.AccountID(acct.ID), logger.Err(err))
			} else {
				acct.PasswordHash = &h
			}
		}
	}
	return acct, nil
}
