package invite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/dropDatabas3/gatehouse/internal/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (*Registry, *memory.Store, *clock) {
	t.Helper()
	st := memory.New()
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewRegistry(st, 24*time.Hour).WithClock(c.now), st, c
}

func account(email string) *domain.Account {
	return &domain.Account{ID: uuid.NewString(), Email: email, AuthSource: domain.AuthSourceLocal}
}

func TestIssueAndValidate(t *testing.T) {
	r, _, _ := setup(t)
	ctx := context.Background()

	inv, err := r.Issue(ctx, " New@Example.com ")
	require.NoError(t, err)
	require.NotEmpty(t, inv.Token)
	assert.NotEqual(t, inv.Token, inv.TokenHash)
	assert.Nil(t, inv.ConsumedAt)

	email, err := r.Validate(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", email)

	// validate never consumes
	_, err = r.Validate(ctx, inv.Token)
	assert.NoError(t, err)
}

func TestValidate_Unknown(t *testing.T) {
	r, _, _ := setup(t)
	_, err := r.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.Validate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedeem_AtMostOnce(t *testing.T) {
	r, st, _ := setup(t)
	ctx := context.Background()
	inv, err := r.Issue(ctx, "a@x.io")
	require.NoError(t, err)

	got, err := r.Redeem(ctx, inv.Token, account("a@x.io"))
	require.NoError(t, err)
	require.NotNil(t, got.ConsumedAt)

	_, err = r.Redeem(ctx, inv.Token, account("a@x.io"))
	assert.ErrorIs(t, err, domain.ErrAlreadyConsumed)
	_, err = r.Validate(ctx, inv.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyConsumed)

	acct, err := st.GetAccountByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, got.ConsumedBy, acct.ID)
}

func TestRedeem_ConcurrentSingleWinner(t *testing.T) {
	r, _, _ := setup(t)
	ctx := context.Background()
	inv, err := r.Issue(ctx, "race@x.io")
	require.NoError(t, err)

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Redeem(ctx, inv.Token, account("race@x.io")); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok)
}

func TestExpiredInvitation(t *testing.T) {
	r, st, c := setup(t)
	ctx := context.Background()
	inv, err := r.Issue(ctx, "late@x.io")
	require.NoError(t, err)

	c.t = c.t.Add(24 * time.Hour)
	_, err = r.Validate(ctx, inv.Token)
	assert.ErrorIs(t, err, domain.ErrExpired)
	_, err = r.Redeem(ctx, inv.Token, account("late@x.io"))
	assert.ErrorIs(t, err, domain.ErrExpired)

	_, err = st.GetAccountByEmail(ctx, "late@x.io")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedeemedInvitation_ExpiryWins(t *testing.T) {
	r, _, c := setup(t)
	ctx := context.Background()
	inv, err := r.Issue(ctx, "used@x.io")
	require.NoError(t, err)
	_, err = r.Redeem(ctx, inv.Token, account("used@x.io"))
	require.NoError(t, err)

	_, err = r.Validate(ctx, inv.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyConsumed)

	c.t = c.t.Add(48 * time.Hour)
	_, err = r.Validate(ctx, inv.Token)
	assert.ErrorIs(t, err, domain.ErrExpired)
	_, err = r.Redeem(ctx, inv.Token, account("used@x.io"))
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestRedeem_EmailMismatch(t *testing.T) {
	r, _, _ := setup(t)
	ctx := context.Background()
	inv, err := r.Issue(ctx, "invited@x.io")
	require.NoError(t, err)

	_, err = r.Redeem(ctx, inv.Token, account("other@x.io"))
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindValidation, de.Kind)
	assert.Equal(t, validation.KeyEmailInviteDiffer, de.Fields["email"])

	// still redeemable by the right address
	_, err = r.Redeem(ctx, inv.Token, account("INVITED@x.io"))
	assert.NoError(t, err)
}
