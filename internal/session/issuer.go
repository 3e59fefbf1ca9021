// Package session issues and checks access/refresh token pairs. The access
// token is an EdDSA JWT carrying the session id; the refresh token is opaque
// and stored hashed. Revoking the session kills both.
package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	tokens "github.com/dropDatabas3/gatehouse/internal/security/token"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Config struct {
	Issuer      string
	SigningSeed string // base64 32-byte ed25519 seed; empty = ephemeral key
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// Tokens is the pair handed to the client.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Principal is an authenticated caller.
type Principal struct {
	AccountID string
	SessionID string
}

type claims struct {
	jwtv5.RegisteredClaims
	SID string `json:"sid"`
}

type Issuer struct {
	sessions domain.SessionRepository
	cfg      Config
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	kid      string
	now      func() time.Time
}

func NewIssuer(ctx context.Context, sessions domain.SessionRepository, cfg Config) (*Issuer, error) {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	var priv ed25519.PrivateKey
	if s := strings.TrimSpace(cfg.SigningSeed); s != "" {
		seed, err := decodeSeed(s)
		if err != nil {
			return nil, err
		}
		priv = ed25519.NewKeyFromSeed(seed)
	} else {
		var err error
		if _, priv, err = ed25519.GenerateKey(rand.Reader); err != nil {
			return nil, err
		}
		logger.From(ctx).Warn("no jwt signing seed configured, using an ephemeral key",
			logger.Component("session"))
	}
	pub := priv.Public().(ed25519.PublicKey)
	sum := sha256.Sum256(pub)
	return &Issuer{
		sessions: sessions,
		cfg:      cfg,
		priv:     priv,
		pub:      pub,
		kid:      base64.RawURLEncoding.EncodeToString(sum[:])[:16],
		now:      time.Now,
	}, nil
}

// GenerateSeed returns a fresh signing seed in the form decodeSeed accepts.
func GenerateSeed() (string, error) {
	b := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func decodeSeed(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.RawURLEncoding, base64.URLEncoding} {
		if b, err := enc.DecodeString(s); err == nil && len(b) == ed25519.SeedSize {
			return b, nil
		}
	}
	return nil, fmt.Errorf("session: signing seed must be %d bytes base64", ed25519.SeedSize)
}

// WithClock swaps the time source. Tests only.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue opens a session for acct.
func (i *Issuer) Issue(ctx context.Context, acct *domain.Account) (*Tokens, error) {
	now := i.now().UTC()
	refresh, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	sess := &domain.Session{
		ID:          uuid.NewString(),
		AccountID:   acct.ID,
		RefreshHash: tokens.SHA256Base64URL(refresh),
		IssuedAt:    now,
		ExpiresAt:   now.Add(i.cfg.RefreshTTL),
	}
	if err := i.sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return i.pair(sess, refresh, now)
}

func (i *Issuer) pair(sess *domain.Session, refresh string, now time.Time) (*Tokens, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   sess.AccountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(i.cfg.AccessTTL)),
		},
		SID: sess.ID,
	})
	tk.Header["kid"] = i.kid
	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	return &Tokens{
		AccessToken:  signed,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(i.cfg.AccessTTL / time.Second),
	}, nil
}

// Authenticate checks an access token and that its session is still live.
func (i *Issuer) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	var c claims
	_, err := jwtv5.ParseWithClaims(accessToken, &c,
		func(*jwtv5.Token) (any, error) { return i.pub, nil },
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.cfg.Issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil || c.SID == "" {
		return nil, domain.ErrUnauthorized
	}
	sess, err := i.sessions.GetSession(ctx, c.SID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if !sess.Active(i.now()) || sess.AccountID != c.Subject {
		return nil, domain.ErrUnauthorized
	}
	return &Principal{AccountID: sess.AccountID, SessionID: sess.ID}, nil
}

// Refresh rotates the refresh token. Each refresh token works once.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.ErrUnauthorized
	}
	oldHash := tokens.SHA256Base64URL(refreshToken)
	sess, err := i.sessions.GetSessionByRefreshHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	now := i.now().UTC()
	if !sess.Active(now) {
		return nil, domain.ErrUnauthorized
	}
	next, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}
	sess.RefreshHash = tokens.SHA256Base64URL(next)
	sess.ExpiresAt = now.Add(i.cfg.RefreshTTL)
	if err := i.sessions.RotateRefresh(ctx, sess.ID, oldHash, sess.RefreshHash, sess.ExpiresAt); err != nil {
		if errors.Is(err, domain.ErrAlreadyConsumed) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return i.pair(sess, next, now)
}

// InvalidateAccount revokes every session of accountID. Outstanding access
// tokens stop authenticating and refresh tokens stop rotating.
func (i *Issuer) InvalidateAccount(ctx context.Context, accountID string) (int, error) {
	return i.sessions.RevokeAccountSessions(ctx, accountID, i.now().UTC())
}

// Invalidate revokes the session behind a principal.
func (i *Issuer) Invalidate(ctx context.Context, sessionID string) error {
	err := i.sessions.RevokeSession(ctx, sessionID, i.now().UTC())
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
