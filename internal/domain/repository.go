package domain

import (
	"context"
	"time"
)

// AccountRepository persists accounts. Lookups return ErrNotFound when absent.
type AccountRepository interface {
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)

	// CreateAccount fails with ErrConflict when the email is taken.
	CreateAccount(ctx context.Context, acct *Account) error

	// CreateAccountWithInvitation consumes the invitation identified by
	// tokenHash and creates acct in one transaction. The consume is a single
	// conditional update (unconsumed and unexpired at now); when it matches
	// nothing the call fails with ErrNotFound, ErrExpired or ErrAlreadyConsumed
	// and no account is created. A failed insert leaves the invitation unconsumed.
	CreateAccountWithInvitation(ctx context.Context, acct *Account, tokenHash string, now time.Time) error

	// UpsertDirectoryAccount creates or refreshes the local mirror of a
	// directory principal, keyed by email.
	UpsertDirectoryAccount(ctx context.Context, acct *Account) (*Account, error)

	// SetPasswordHash replaces the stored hash, e.g. to upgrade a legacy one.
	SetPasswordHash(ctx context.Context, accountID, hash string) error

	SetBanned(ctx context.Context, accountID string, banned bool) error
}

// InvitationRepository persists invitations by token hash.
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, tokenHash string) (*Invitation, error)
}

// OneTimeTokenRepository persists reset and activation tokens.
type OneTimeTokenRepository interface {
	CreateOneTimeToken(ctx context.Context, t *OneTimeToken) error
	GetOneTimeToken(ctx context.Context, hash string, purpose TokenPurpose) (*OneTimeToken, error)

	// RedeemPasswordToken consumes the token and sets the account password in
	// one transaction. It returns the account id on success.
	RedeemPasswordToken(ctx context.Context, hash string, purpose TokenPurpose, passwordHash string, now time.Time) (string, error)
}

// TwoFactorRepository mutates 2FA state. Every method is atomic per account.
type TwoFactorRepository interface {
	// GetTwoFactor returns nil, nil when the account has no 2FA row.
	GetTwoFactor(ctx context.Context, accountID string) (*TwoFactorState, error)

	// SetPendingSecret stores a new pending secret unless 2FA is already
	// enabled, in which case it fails with ErrInvalidState.
	SetPendingSecret(ctx context.Context, accountID, sealed string) error

	// ConfirmTwoFactor promotes the pending secret to the active secret and
	// installs backup code hashes, conditional on the pending secret still
	// equal to expectPending. Fails with ErrInvalidState otherwise.
	ConfirmTwoFactor(ctx context.Context, accountID, expectPending string, backupHashes []string, step int64, at time.Time) error

	// ReplaceBackupCodes drops every existing code and installs hashes.
	ReplaceBackupCodes(ctx context.Context, accountID string, hashes []string) error

	// ConsumeBackupCode removes hash from the set, reporting whether it was present.
	ConsumeBackupCode(ctx context.Context, accountID, hash string) (bool, error)

	// AdvanceStep records step as used if it is newer than the last used one.
	AdvanceStep(ctx context.Context, accountID string, step int64) (bool, error)

	// ClearTwoFactor drops secret, pending secret and backup codes together.
	ClearTwoFactor(ctx context.Context, accountID string) error
}

// SessionRepository persists sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetSessionByRefreshHash(ctx context.Context, hash string) (*Session, error)

	// RotateRefresh swaps the refresh hash, conditional on oldHash still current.
	RotateRefresh(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// RevokeAccountSessions revokes every live session of an account and
	// reports how many it revoked.
	RevokeAccountSessions(ctx context.Context, accountID string, at time.Time) (int, error)
}

// BanRepository is the Ban Store.
type BanRepository interface {
	IsBanned(ctx context.Context, identity string, now time.Time) (bool, error)
	PutBan(ctx context.Context, b *Ban) error
	DeleteBan(ctx context.Context, identity string) error
}

// BalanceRepository seeds token-credit records.
type BalanceRepository interface {
	// EnsureBalance creates the record with startCredits when missing and
	// leaves an existing record untouched.
	EnsureBalance(ctx context.Context, accountID string, startCredits int64) error
	GetBalance(ctx context.Context, accountID string) (*Balance, error)
}
