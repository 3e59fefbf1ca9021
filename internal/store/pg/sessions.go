package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/jackc/pgx/v5"
)

const sessionCols = `id::text, account_id::text, refresh_hash, issued_at, expires_at, revoked_at`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var sess domain.Session
	if err := row.Scan(&sess.ID, &sess.AccountID, &sess.RefreshHash, &sess.IssuedAt, &sess.ExpiresAt, &sess.RevokedAt); err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, account_id, refresh_hash, issued_at, expires_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5)`,
		sess.ID, sess.AccountID, sess.RefreshHash, sess.IssuedAt, sess.ExpiresAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1::uuid`, id))
}

func (s *Store) GetSessionByRefreshHash(ctx context.Context, hash string) (*domain.Session, error) {
	return scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE refresh_hash = $1`, hash))
}

func (s *Store) RotateRefresh(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET refresh_hash = $3, expires_at = $4
		WHERE id = $1::uuid AND refresh_hash = $2 AND revoked_at IS NULL`, id, oldHash, newHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyConsumed
	}
	return nil
}

func (s *Store) RevokeAccountSessions(ctx context.Context, accountID string, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET revoked_at = $2 WHERE account_id = $1::uuid AND revoked_at IS NULL`, accountID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1::uuid`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
