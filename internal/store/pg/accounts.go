package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/jackc/pgx/v5"
)

const accountCols = `id::text, email, display_name, COALESCE(username, ''), password_hash, auth_source, banned, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var source string
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.Username, &a.PasswordHash, &source, &a.Banned, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	a.AuthSource = domain.AuthSource(source)
	return &a, nil
}

func (s *Store) withTwoFactor(ctx context.Context, a *domain.Account, err error) (*domain.Account, error) {
	if err != nil {
		return nil, err
	}
	tf, err := s.GetTwoFactor(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.TwoFactor = tf
	return a, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1::uuid`, id))
	return s.withTwoFactor(ctx, a, err)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE lower(email) = lower($1)`, email))
	return s.withTwoFactor(ctx, a, err)
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE lower(username) = lower($1)`, username))
	return s.withTwoFactor(ctx, a, err)
}

const insertAccount = `
	INSERT INTO accounts (id, email, display_name, username, password_hash, auth_source, banned, created_at, updated_at)
	VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`

func insertArgs(a *domain.Account) []any {
	return []any{a.ID, a.Email, a.DisplayName, nullable(a.Username), a.PasswordHash, string(a.AuthSource), a.Banned, a.CreatedAt, a.UpdatedAt}
}

func (s *Store) CreateAccount(ctx context.Context, acct *domain.Account) error {
	if _, err := s.pool.Exec(ctx, insertAccount, insertArgs(acct)...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict.WithMessage("email or username already registered")
		}
		return err
	}
	return nil
}

// CreateAccountWithInvitation consumes the invitation before inserting the
// account. A concurrent redeemer blocks on the invitation row, re-reads
// consumed_at and matches nothing, so it never reaches the email index.
func (s *Store) CreateAccountWithInvitation(ctx context.Context, acct *domain.Account, tokenHash string, now time.Time) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var consumed string
		err := tx.QueryRow(ctx, `
			UPDATE invitations SET consumed_at = $2
			WHERE token_hash = $1 AND consumed_at IS NULL AND expires_at > $2
			RETURNING token_hash`,
			tokenHash, now).Scan(&consumed)
		if errors.Is(err, pgx.ErrNoRows) {
			return errInviteUnavailable
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertAccount, insertArgs(acct)...); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict.WithMessage("email or username already registered")
			}
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE invitations SET consumed_by = $2::uuid WHERE token_hash = $1`, tokenHash, acct.ID)
		return err
	})
	if errors.Is(err, errInviteUnavailable) {
		inv, gerr := s.GetInvitation(ctx, tokenHash)
		if gerr != nil {
			return gerr
		}
		if cerr := inv.Check(now); cerr != nil {
			return cerr
		}
		return domain.ErrAlreadyConsumed
	}
	return err
}

var errInviteUnavailable = errors.New("invitation not redeemable")

func (s *Store) UpsertDirectoryAccount(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, display_name, username, password_hash, auth_source, banned, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, NULL, 'directory', FALSE, $5, $5)
		ON CONFLICT ((lower(email))) DO UPDATE
		SET display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE accounts.display_name END,
		    auth_source = 'directory',
		    updated_at = EXCLUDED.updated_at
		RETURNING `+accountCols,
		acct.ID, acct.Email, acct.DisplayName, nullable(acct.Username), acct.UpdatedAt))
	if isUniqueViolation(err) {
		return nil, domain.ErrConflict.WithMessage("username already taken")
	}
	return s.withTwoFactor(ctx, a, err)
}

func (s *Store) SetPasswordHash(ctx context.Context, accountID, hash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1::uuid`, accountID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SetBanned(ctx context.Context, accountID string, banned bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET banned = $2, updated_at = now() WHERE id = $1::uuid`, accountID, banned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
