package pg

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a live database: GATEHOUSE_TEST_DSN=postgres://...
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GATEHOUSE_TEST_DSN")
	if dsn == "" {
		t.Skip("GATEHOUSE_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestInvitationRedeemIsSingleUse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	hash := "it-" + uuid.NewString()

	require.NoError(t, s.CreateInvitation(ctx, &domain.Invitation{TokenHash: hash, Email: "it@x.io", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}))

	first := &domain.Account{ID: uuid.NewString(), Email: uuid.NewString() + "@x.io", AuthSource: domain.AuthSourceLocal, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAccountWithInvitation(ctx, first, hash, now))

	second := &domain.Account{ID: uuid.NewString(), Email: uuid.NewString() + "@x.io", AuthSource: domain.AuthSourceLocal, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, s.CreateAccountWithInvitation(ctx, second, hash, now), domain.ErrAlreadyConsumed)

	_, err := s.GetAccountByID(ctx, second.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvitationRedeem_ConcurrentLoserSeesConsumed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	hash := "it-" + uuid.NewString()
	addr := uuid.NewString() + "@x.io"

	require.NoError(t, s.CreateInvitation(ctx, &domain.Invitation{TokenHash: hash, Email: addr, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}))

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// Every redeemer uses the invited email, as Registry.Redeem enforces.
			acct := &domain.Account{ID: uuid.NewString(), Email: addr, AuthSource: domain.AuthSourceLocal, CreatedAt: now, UpdatedAt: now}
			errs[i] = s.CreateAccountWithInvitation(ctx, acct, hash, now)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyConsumed)
	}
	assert.Equal(t, 1, wins)

	inv, err := s.GetInvitation(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, inv.ConsumedAt)
	winner, err := s.GetAccountByEmail(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, inv.ConsumedBy)
}

func TestInvitationRedeem_ConflictLeavesInvitationOpen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	hash := "it-" + uuid.NewString()
	addr := uuid.NewString() + "@x.io"

	existing := &domain.Account{ID: uuid.NewString(), Email: addr, AuthSource: domain.AuthSourceLocal, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAccount(ctx, existing))
	require.NoError(t, s.CreateInvitation(ctx, &domain.Invitation{TokenHash: hash, Email: addr, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}))

	dup := &domain.Account{ID: uuid.NewString(), Email: addr, AuthSource: domain.AuthSourceLocal, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, s.CreateAccountWithInvitation(ctx, dup, hash, now), domain.ErrConflict)

	inv, err := s.GetInvitation(ctx, hash)
	require.NoError(t, err)
	assert.Nil(t, inv.ConsumedAt)
}

func TestTwoFactorAdvanceStep(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	acct := &domain.Account{ID: uuid.NewString(), Email: uuid.NewString() + "@x.io", AuthSource: domain.AuthSourceLocal, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAccount(ctx, acct))

	require.NoError(t, s.SetPendingSecret(ctx, acct.ID, "sealed"))
	require.NoError(t, s.ConfirmTwoFactor(ctx, acct.ID, "sealed", []string{"a", "b"}, 5, now))

	ok, err := s.AdvanceStep(ctx, acct.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.AdvanceStep(ctx, acct.ID, 6)
	require.NoError(t, err)
	assert.True(t, ok)

	used, err := s.ConsumeBackupCode(ctx, acct.ID, "a")
	require.NoError(t, err)
	assert.True(t, used)
	used, _ = s.ConsumeBackupCode(ctx, acct.ID, "a")
	assert.False(t, used)
}
