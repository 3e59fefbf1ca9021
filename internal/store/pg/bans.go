package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
)

func (s *Store) IsBanned(ctx context.Context, identity string, now time.Time) (bool, error) {
	var banned bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bans WHERE identity = $1 AND (until IS NULL OR until > $2))`,
		identity, now).Scan(&banned)
	return banned, err
}

func (s *Store) PutBan(ctx context.Context, b *domain.Ban) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bans (identity, reason, until, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity) DO UPDATE SET reason = EXCLUDED.reason, until = EXCLUDED.until`,
		b.Identity, b.Reason, b.Until, b.CreatedAt)
	return err
}

func (s *Store) DeleteBan(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bans WHERE identity = $1`, identity)
	return err
}

func (s *Store) EnsureBalance(ctx context.Context, accountID string, startCredits int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO balances (account_id, credits) VALUES ($1::uuid, $2)
		ON CONFLICT (account_id) DO NOTHING`, accountID, startCredits)
	return err
}

func (s *Store) GetBalance(ctx context.Context, accountID string) (*domain.Balance, error) {
	b := domain.Balance{AccountID: accountID}
	err := s.pool.QueryRow(ctx, `SELECT credits, updated_at FROM balances WHERE account_id = $1::uuid`, accountID).
		Scan(&b.Credits, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}
