package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invitations (token_hash, email, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)`, inv.TokenHash, inv.Email, inv.IssuedAt, inv.ExpiresAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (s *Store) GetInvitation(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	var inv domain.Invitation
	var by *string
	err := s.pool.QueryRow(ctx, `
		SELECT token_hash, email, issued_at, expires_at, consumed_at, consumed_by::text
		FROM invitations WHERE token_hash = $1`, tokenHash).
		Scan(&inv.TokenHash, &inv.Email, &inv.IssuedAt, &inv.ExpiresAt, &inv.ConsumedAt, &by)
	if err != nil {
		return nil, notFound(err)
	}
	if by != nil {
		inv.ConsumedBy = *by
	}
	return &inv, nil
}

func (s *Store) CreateOneTimeToken(ctx context.Context, t *domain.OneTimeToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO one_time_tokens (token_hash, purpose, account_id, expires_at, created_at)
		VALUES ($1, $2, $3::uuid, $4, $5)`, t.Hash, string(t.Purpose), t.AccountID, t.ExpiresAt, t.CreatedAt)
	return err
}

func (s *Store) GetOneTimeToken(ctx context.Context, hash string, purpose domain.TokenPurpose) (*domain.OneTimeToken, error) {
	var t domain.OneTimeToken
	var p string
	err := s.pool.QueryRow(ctx, `
		SELECT token_hash, purpose, account_id::text, expires_at, consumed_at, created_at
		FROM one_time_tokens WHERE token_hash = $1 AND purpose = $2`, hash, string(purpose)).
		Scan(&t.Hash, &p, &t.AccountID, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.Purpose = domain.TokenPurpose(p)
	return &t, nil
}

func (s *Store) RedeemPasswordToken(ctx context.Context, hash string, purpose domain.TokenPurpose, passwordHash string, now time.Time) (string, error) {
	var accountID string
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE one_time_tokens SET consumed_at = $3
			WHERE token_hash = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > $3
			RETURNING account_id::text`, hash, string(purpose), now).Scan(&accountID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1::uuid`, accountID, passwordHash, now)
		return err
	})
	if err == nil {
		return accountID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	t, gerr := s.GetOneTimeToken(ctx, hash, purpose)
	if gerr != nil {
		return "", gerr
	}
	if cerr := t.Check(now); cerr != nil {
		return "", cerr
	}
	return "", domain.ErrAlreadyConsumed
}
