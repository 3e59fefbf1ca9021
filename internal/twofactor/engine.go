// Package twofactor runs the per-account TOTP state machine:
// Disabled -> Pending (Enable) -> Enabled (Confirm) -> Disabled (Disable).
//
// Secrets are sealed at rest with the account id as associated data. Backup
// codes are stored as SHA-256 hashes and removed on use. A TOTP step is
// accepted at most once per account.
package twofactor

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/cache"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/security/secretbox"
	tokens "github.com/dropDatabas3/gatehouse/internal/security/token"
	"github.com/dropDatabas3/gatehouse/internal/security/totp"
	"go.uber.org/zap"
)

const (
	tempKeyPrefix    = "2fa:temp:"
	backupAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no I, O, 0, 1
	backupCodeLength = 10
)

type Config struct {
	Issuer       string
	Skew         int
	BackupCodes  int
	TempTokenTTL time.Duration
}

// Enrollment is what the client needs to add the secret to an authenticator.
type Enrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

type Engine struct {
	store domain.TwoFactorRepository
	box   *secretbox.Box
	cache cache.Client
	cfg   Config
	now   func() time.Time
}

func New(store domain.TwoFactorRepository, box *secretbox.Box, c cache.Client, cfg Config) *Engine {
	if cfg.BackupCodes <= 0 {
		cfg.BackupCodes = 10
	}
	if cfg.TempTokenTTL <= 0 {
		cfg.TempTokenTTL = 5 * time.Minute
	}
	if cfg.Skew < 0 {
		cfg.Skew = 1
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "gatehouse"
	}
	return &Engine{store: store, box: box, cache: c, cfg: cfg, now: time.Now}
}

// WithClock swaps the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor."+op))
}

func (e *Engine) state(ctx context.Context, accountID string, want domain.TwoFactorStatus) (*domain.TwoFactorState, error) {
	tf, err := e.store.GetTwoFactor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if tf.Status() != want {
		return nil, domain.ErrInvalidState
	}
	return tf, nil
}

// Enable issues a fresh pending secret. Calling it again while Pending
// replaces the pending secret.
func (e *Engine) Enable(ctx context.Context, acct *domain.Account) (*Enrollment, error) {
	tf, err := e.store.GetTwoFactor(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	if tf.Status() == domain.TwoFactorEnabled {
		return nil, domain.ErrInvalidState
	}
	key, err := totp.Generate(e.cfg.Issuer, acct.Email)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	sealed, err := e.box.Seal(key.Secret, acct.ID)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	if err := e.store.SetPendingSecret(ctx, acct.ID, sealed); err != nil {
		return nil, err
	}
	e.log(ctx, "enable").Info("pending secret issued", logger.AccountID(acct.ID))
	return &Enrollment{Secret: key.Secret, URL: key.URL}, nil
}

// Confirm promotes the pending secret once code matches it and returns the
// plain backup codes. They are never retrievable again.
func (e *Engine) Confirm(ctx context.Context, acct *domain.Account, code string) ([]string, error) {
	tf, err := e.state(ctx, acct.ID, domain.TwoFactorPending)
	if err != nil {
		return nil, err
	}
	secret, err := e.box.Open(tf.PendingSecretEnc, acct.ID)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	ok, step := totp.Verify(secret, code, e.now(), e.cfg.Skew, tf.LastUsedStep)
	if !ok {
		return nil, domain.ErrInvalidCode
	}
	plain, hashes, err := generateBackupCodes(e.cfg.BackupCodes)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	if err := e.store.ConfirmTwoFactor(ctx, acct.ID, tf.PendingSecretEnc, hashes, step, e.now().UTC()); err != nil {
		return nil, err
	}
	e.log(ctx, "confirm").Info("two-factor enabled", logger.AccountID(acct.ID))
	return plain, nil
}

// Verify checks a TOTP or backup code for an Enabled account.
func (e *Engine) Verify(ctx context.Context, acct *domain.Account, code, backupCode string) error {
	tf, err := e.state(ctx, acct.ID, domain.TwoFactorEnabled)
	if err != nil {
		return err
	}
	return e.check(ctx, acct.ID, tf, code, backupCode)
}

// BeginChallenge mints a temp token for the second step of one login.
func (e *Engine) BeginChallenge(ctx context.Context, acct *domain.Account) (string, error) {
	if !acct.TwoFactorEnabled() {
		return "", domain.ErrInvalidState
	}
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", domain.ErrInternal.WithCause(err)
	}
	if err := e.cache.Set(ctx, tempKeyPrefix+tokens.SHA256Base64URL(raw), acct.ID, e.cfg.TempTokenTTL); err != nil {
		return "", domain.ErrInternal.WithCause(err)
	}
	return raw, nil
}

// VerifyTemp consumes the temp token and checks the code. The token is gone
// after the first call whatever the outcome. It returns the account id.
func (e *Engine) VerifyTemp(ctx context.Context, tempToken, code, backupCode string) (string, error) {
	tempToken = strings.TrimSpace(tempToken)
	if tempToken == "" {
		return "", domain.ErrUnauthorized
	}
	accountID, err := e.cache.Take(ctx, tempKeyPrefix+tokens.SHA256Base64URL(tempToken))
	if err != nil {
		if cache.IsNotFound(err) {
			return "", domain.ErrUnauthorized
		}
		return "", domain.ErrInternal.WithCause(err)
	}
	tf, err := e.state(ctx, accountID, domain.TwoFactorEnabled)
	if err != nil {
		return "", err
	}
	if err := e.check(ctx, accountID, tf, code, backupCode); err != nil {
		e.log(ctx, "verify_temp").Info("second factor rejected", logger.AccountID(accountID))
		return "", err
	}
	return accountID, nil
}

// Disable clears every 2FA artifact after a valid code.
func (e *Engine) Disable(ctx context.Context, acct *domain.Account, code, backupCode string) error {
	if err := e.Verify(ctx, acct, code, backupCode); err != nil {
		return err
	}
	if err := e.store.ClearTwoFactor(ctx, acct.ID); err != nil {
		return err
	}
	e.log(ctx, "disable").Info("two-factor disabled", logger.AccountID(acct.ID))
	return nil
}

// RegenerateBackupCodes replaces the backup code set after a valid code.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, acct *domain.Account, code, backupCode string) ([]string, error) {
	if err := e.Verify(ctx, acct, code, backupCode); err != nil {
		return nil, err
	}
	plain, hashes, err := generateBackupCodes(e.cfg.BackupCodes)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	if err := e.store.ReplaceBackupCodes(ctx, acct.ID, hashes); err != nil {
		return nil, err
	}
	return plain, nil
}

// check accepts a fresh TOTP step or an unused backup code. Failures are a
// single InvalidCode so callers learn nothing about which factor was tried.
func (e *Engine) check(ctx context.Context, accountID string, tf *domain.TwoFactorState, code, backupCode string) error {
	if code = strings.TrimSpace(code); code != "" {
		secret, err := e.box.Open(tf.SecretEnc, accountID)
		if err != nil {
			return domain.ErrInternal.WithCause(err)
		}
		if ok, step := totp.Verify(secret, code, e.now(), e.cfg.Skew, tf.LastUsedStep); ok {
			advanced, err := e.store.AdvanceStep(ctx, accountID, step)
			if err != nil {
				return err
			}
			if advanced {
				return nil
			}
		}
	}
	if b := normalizeBackup(backupCode); b != "" {
		used, err := e.store.ConsumeBackupCode(ctx, accountID, tokens.SHA256Base64URL(b))
		if err != nil {
			return err
		}
		if used {
			return nil
		}
	}
	return domain.ErrInvalidCode
}

func normalizeBackup(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", " ", "").Replace(s)
}

func generateBackupCodes(n int) (plain, hashes []string, err error) {
	plain = make([]string, n)
	hashes = make([]string, n)
	buf := make([]byte, backupCodeLength)
	for i := 0; i < n; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		code := make([]byte, backupCodeLength)
		for j, b := range buf {
			code[j] = backupAlphabet[int(b)%len(backupAlphabet)]
		}
		plain[i] = string(code)
		hashes[i] = tokens.SHA256Base64URL(plain[i])
	}
	return plain, hashes, nil
}
