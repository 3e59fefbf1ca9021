package session

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T, now *time.Time) (*Issuer, *memory.Store) {
	t.Helper()
	st := memory.New()
	seed := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SeedSize))
	iss, err := NewIssuer(context.Background(), st, Config{Issuer: "gatehouse", SigningSeed: seed, AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	return iss.WithClock(func() time.Time { return *now }), st
}

func TestIssueAuthenticateInvalidate(t *testing.T) {
	now := time.Now().UTC()
	iss, _ := newIssuer(t, &now)
	ctx := context.Background()
	acct := &domain.Account{ID: "acct-1"}

	tok, err := iss.Issue(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.EqualValues(t, 60, tok.ExpiresIn)

	p, err := iss.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", p.AccountID)

	require.NoError(t, iss.Invalidate(ctx, p.SessionID))
	_, err = iss.Authenticate(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = iss.Refresh(ctx, tok.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_RejectsExpiredAndForeign(t *testing.T) {
	now := time.Now().UTC()
	iss, _ := newIssuer(t, &now)
	ctx := context.Background()

	tok, err := iss.Issue(ctx, &domain.Account{ID: "a"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = iss.Authenticate(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	other, err := NewIssuer(ctx, memory.New(), Config{Issuer: "gatehouse"})
	require.NoError(t, err)
	foreign, err := other.Issue(ctx, &domain.Account{ID: "a"})
	require.NoError(t, err)
	_, err = iss.Authenticate(ctx, foreign.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = iss.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_RotatesOnce(t *testing.T) {
	now := time.Now().UTC()
	iss, _ := newIssuer(t, &now)
	ctx := context.Background()

	tok, err := iss.Issue(ctx, &domain.Account{ID: "a"})
	require.NoError(t, err)

	next, err := iss.Refresh(ctx, tok.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tok.RefreshToken, next.RefreshToken)

	_, err = iss.Refresh(ctx, tok.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	p, err := iss.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a", p.AccountID)
}

func TestNewIssuer_BadSeed(t *testing.T) {
	_, err := NewIssuer(context.Background(), memory.New(), Config{SigningSeed: "c2hvcnQ="})
	assert.Error(t, err)
}

func TestGenerateSeed_RoundTrips(t *testing.T) {
	s, err := GenerateSeed()
	require.NoError(t, err)
	b, err := decodeSeed(s)
	require.NoError(t, err)
	assert.Len(t, b, ed25519.SeedSize)

	_, err = decodeSeed("c2hvcnQ")
	assert.Error(t, err)
}
