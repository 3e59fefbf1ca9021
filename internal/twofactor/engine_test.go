package twofactor

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/cache"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/security/secretbox"
	"github.com/dropDatabas3/gatehouse/internal/security/totp"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine *Engine
	store  *memory.Store
	now    time.Time
	acct   *domain.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := secretbox.GenerateKey()
	require.NoError(t, err)
	box, err := secretbox.New(key)
	require.NoError(t, err)

	f := &fixture{
		store: memory.New(),
		now:   time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
		acct:  &domain.Account{ID: "acct-1", Email: "u@x.io"},
	}
	f.engine = New(f.store, box, cache.NewMemory(""), Config{Issuer: "gatehouse", Skew: 1, BackupCodes: 10}).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := totp.Code(secret, f.now)
	require.NoError(t, err)
	return c
}

// enabled walks the account to Enabled and returns the secret and backup codes.
func (f *fixture) enabled(t *testing.T) (string, []string) {
	t.Helper()
	ctx := context.Background()
	enr, err := f.engine.Enable(ctx, f.acct)
	require.NoError(t, err)
	codes, err := f.engine.Confirm(ctx, f.acct, f.code(t, enr.Secret))
	require.NoError(t, err)
	f.refresh(t)
	f.now = f.now.Add(totp.Period * time.Second)
	return enr.Secret, codes
}

func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	tf, err := f.store.GetTwoFactor(context.Background(), f.acct.ID)
	require.NoError(t, err)
	f.acct.TwoFactor = tf
}

func TestEnable_ReissuesWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Enable(ctx, f.acct)
	require.NoError(t, err)
	second, err := f.engine.Enable(ctx, f.acct)
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, second.Secret)
	assert.Contains(t, second.URL, "otpauth://totp/")

	// the replaced secret no longer confirms
	_, err = f.engine.Confirm(ctx, f.acct, f.code(t, first.Secret))
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
	_, err = f.engine.Confirm(ctx, f.acct, f.code(t, second.Secret))
	assert.NoError(t, err)
}

func TestEnable_RejectedWhenEnabled(t *testing.T) {
	f := newFixture(t)
	f.enabled(t)
	_, err := f.engine.Enable(context.Background(), f.acct)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConfirm_RequiresPending(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Confirm(context.Background(), f.acct, "123456")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConfirm_IssuesBackupCodes(t *testing.T) {
	f := newFixture(t)
	_, codes := f.enabled(t)

	require.Len(t, codes, 10)
	seen := map[string]bool{}
	for _, c := range codes {
		assert.Len(t, c, backupCodeLength)
		assert.False(t, seen[c])
		seen[c] = true
	}
	assert.Len(t, f.acct.TwoFactor.BackupCodes, 10)
	assert.Empty(t, f.acct.TwoFactor.PendingSecretEnc)
	assert.NotNil(t, f.acct.TwoFactor.ConfirmedAt)
}

func TestVerify_TOTPReplayRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret, _ := f.enabled(t)

	code := f.code(t, secret)
	require.NoError(t, f.engine.Verify(ctx, f.acct, code, ""))
	assert.ErrorIs(t, f.engine.Verify(ctx, f.acct, code, ""), domain.ErrInvalidCode)
	assert.ErrorIs(t, f.engine.Verify(ctx, f.acct, "000000", "WRONGCODE1"), domain.ErrInvalidCode)
}

func TestVerifyTemp_BackupCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, codes := f.enabled(t)

	tok, err := f.engine.BeginChallenge(ctx, f.acct)
	require.NoError(t, err)
	id, err := f.engine.VerifyTemp(ctx, tok, "", codes[0])
	require.NoError(t, err)
	assert.Equal(t, f.acct.ID, id)

	tok, err = f.engine.BeginChallenge(ctx, f.acct)
	require.NoError(t, err)
	_, err = f.engine.VerifyTemp(ctx, tok, "", codes[0])
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	// lower case with a dash still matches an unused code
	tok, err = f.engine.BeginChallenge(ctx, f.acct)
	require.NoError(t, err)
	c := codes[1]
	_, err = f.engine.VerifyTemp(ctx, tok, "", c[:5]+"-"+lower(c[5:]))
	assert.NoError(t, err)
}

func lower(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + 32
		}
	}
	return string(b)
}

func TestVerifyTemp_TokenConsumedOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret, _ := f.enabled(t)

	tok, err := f.engine.BeginChallenge(ctx, f.acct)
	require.NoError(t, err)
	_, err = f.engine.VerifyTemp(ctx, tok, "000000", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = f.engine.VerifyTemp(ctx, tok, f.code(t, secret), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.engine.VerifyTemp(ctx, "never-issued", f.code(t, secret), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDisable_ClearsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, codes := f.enabled(t)

	require.NoError(t, f.engine.Disable(ctx, f.acct, "", codes[0]))
	tf, err := f.store.GetTwoFactor(ctx, f.acct.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TwoFactorDisabled, tf.Status())

	assert.ErrorIs(t, f.engine.Disable(ctx, f.acct, "", codes[1]), domain.ErrInvalidState)
}

func TestRegenerateBackupCodes_InvalidatesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret, old := f.enabled(t)

	fresh, err := f.engine.RegenerateBackupCodes(ctx, f.acct, f.code(t, secret), "")
	require.NoError(t, err)
	require.Len(t, fresh, 10)

	assert.ErrorIs(t, f.engine.Verify(ctx, f.acct, "", old[0]), domain.ErrInvalidCode)
	assert.NoError(t, f.engine.Verify(ctx, f.acct, "", fresh[0]))
}
