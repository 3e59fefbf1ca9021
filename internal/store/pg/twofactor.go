package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetTwoFactor(ctx context.Context, accountID string) (*domain.TwoFactorState, error) {
	var tf domain.TwoFactorState
	var secret, pending *string
	err := s.pool.QueryRow(ctx, `
		SELECT secret_enc, pending_secret_enc, last_used_step, confirmed_at
		FROM account_two_factor WHERE account_id = $1::uuid`, accountID).
		Scan(&secret, &pending, &tf.LastUsedStep, &tf.ConfirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if secret != nil {
		tf.SecretEnc = *secret
	}
	if pending != nil {
		tf.PendingSecretEnc = *pending
	}
	rows, err := s.pool.Query(ctx, `SELECT code_hash FROM account_backup_codes WHERE account_id = $1::uuid`, accountID)
	if err != nil {
		return nil, err
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	tf.BackupCodes = codes
	return &tf, nil
}

func (s *Store) SetPendingSecret(ctx context.Context, accountID, sealed string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO account_two_factor (account_id, pending_secret_enc, updated_at)
		VALUES ($1::uuid, $2, now())
		ON CONFLICT (account_id) DO UPDATE
		SET pending_secret_enc = EXCLUDED.pending_secret_enc, updated_at = now()
		WHERE account_two_factor.secret_enc IS NULL`, accountID, sealed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func (s *Store) ConfirmTwoFactor(ctx context.Context, accountID, expectPending string, backupHashes []string, step int64, at time.Time) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE account_two_factor
			SET secret_enc = pending_secret_enc, pending_secret_enc = NULL,
			    last_used_step = $3, confirmed_at = $4, updated_at = $4
			WHERE account_id = $1::uuid AND secret_enc IS NULL AND pending_secret_enc = $2`,
			accountID, expectPending, step, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInvalidState
		}
		return replaceCodes(ctx, tx, accountID, backupHashes)
	})
}

func replaceCodes(ctx context.Context, tx pgx.Tx, accountID string, hashes []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM account_backup_codes WHERE account_id = $1::uuid`, accountID); err != nil {
		return err
	}
	var b pgx.Batch
	for _, h := range hashes {
		b.Queue(`INSERT INTO account_backup_codes (account_id, code_hash) VALUES ($1::uuid, $2)`, accountID, h)
	}
	return tx.SendBatch(ctx, &b).Close()
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, accountID string, hashes []string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var enabled bool
		err := tx.QueryRow(ctx, `
			SELECT secret_enc IS NOT NULL FROM account_two_factor
			WHERE account_id = $1::uuid FOR UPDATE`, accountID).Scan(&enabled)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if !enabled {
			return domain.ErrInvalidState
		}
		return replaceCodes(ctx, tx, accountID, hashes)
	})
}

func (s *Store) ConsumeBackupCode(ctx context.Context, accountID, hash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM account_backup_codes WHERE account_id = $1::uuid AND code_hash = $2`, accountID, hash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AdvanceStep(ctx context.Context, accountID string, step int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE account_two_factor SET last_used_step = $2, updated_at = now()
		WHERE account_id = $1::uuid AND last_used_step < $2`, accountID, step)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ClearTwoFactor(ctx context.Context, accountID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM account_backup_codes WHERE account_id = $1::uuid`, accountID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM account_two_factor WHERE account_id = $1::uuid`, accountID)
		return err
	})
}
