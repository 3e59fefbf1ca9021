// Package invite issues, validates and redeems registration invitations.
package invite

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	tokens "github.com/dropDatabas3/gatehouse/internal/security/token"
	"github.com/dropDatabas3/gatehouse/internal/validation"
)

const tokenBytes = 32

// Store is what the registry needs from persistence.
type Store interface {
	domain.InvitationRepository
	CreateAccountWithInvitation(ctx context.Context, acct *domain.Account, tokenHash string, now time.Time) error
}

type Registry struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewRegistry(store Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Registry{store: store, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock swaps the time source. Tests only.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Issue mints an invitation for email. The raw token is only on the returned value.
func (r *Registry) Issue(ctx context.Context, email string) (*domain.Invitation, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.Validation(map[string]string{"email": validation.KeyEmailRequired})
	}
	raw, err := tokens.GenerateOpaqueToken(tokenBytes)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	now := r.now()
	inv := &domain.Invitation{
		TokenHash: tokens.SHA256Base64URL(raw),
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}
	if err := r.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("invitation issued",
		logger.Component("invite"), logger.Email(email), logger.String("expires_at", inv.ExpiresAt.Format(time.RFC3339)))
	inv.Token = raw
	return inv, nil
}

// lookup resolves a raw token and classifies it at now.
func (r *Registry) lookup(ctx context.Context, token string) (*domain.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrNotFound
	}
	inv, err := r.store.GetInvitation(ctx, tokens.SHA256Base64URL(token))
	if err != nil {
		return nil, err
	}
	if err := inv.Check(r.now()); err != nil {
		return nil, err
	}
	return inv, nil
}

// Validate returns the invited email without consuming the invitation.
func (r *Registry) Validate(ctx context.Context, token string) (string, error) {
	inv, err := r.lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return inv.Email, nil
}

// Redeem creates acct and consumes the invitation in one store transaction.
// The account email must match the invited email.
func (r *Registry) Redeem(ctx context.Context, token string, acct *domain.Account) (*domain.Invitation, error) {
	inv, err := r.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if domain.NormalizeEmail(acct.Email) != inv.Email {
		return nil, domain.Validation(map[string]string{"email": validation.KeyEmailInviteDiffer})
	}
	now := r.now()
	if err := r.store.CreateAccountWithInvitation(ctx, acct, inv.TokenHash, now); err != nil {
		return nil, err
	}
	inv.ConsumedAt = &now
	inv.ConsumedBy = acct.ID
	return inv, nil
}
