package admission

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/credential"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/metrics"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/rate"
	"github.com/dropDatabas3/gatehouse/internal/session"
	tokens "github.com/dropDatabas3/gatehouse/internal/security/token"
	"go.uber.org/zap/zapcore"
)

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
	"X-Api-Key":     true,
}

// HeaderLog writes the request headers at debug level with credentials
// redacted. It never rejects.
func HeaderLog() Guard {
	return Func("header_log", func(ctx context.Context, req *Request) error {
		log := logger.From(ctx)
		if !log.Core().Enabled(zapcore.DebugLevel) {
			return nil
		}
		log.Debug("login request headers", logger.Any("headers", SanitizeHeaders(req.Header)))
		return nil
	})
}

// SanitizeHeaders flattens h, masking credential-bearing headers.
func SanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		ck := http.CanonicalHeaderKey(k)
		if redactedHeaders[ck] {
			out[ck] = "[redacted]"
			continue
		}
		out[ck] = strings.Join(v, ", ")
	}
	return out
}

// RateLimit counts the request against lim keyed by client IP. A limiter
// failure lets the request through.
func RateLimit(lim rate.Limiter) Guard {
	return Func("rate_limit", func(ctx context.Context, req *Request) error {
		res, err := lim.Allow(ctx, req.ClientIP)
		if err != nil {
			metrics.RateLimiterErrors.WithLabelValues(req.Route).Inc()
			logger.From(ctx).Warn("rate limiter unavailable, allowing request",
				logger.Route(req.Route), logger.Err(err))
			return nil
		}
		req.RateLimit = &res
		if !res.Allowed {
			logger.From(ctx).Debug("throttled", logger.Route(req.Route), logger.RetryAfter(res.RetryAfter))
			return domain.Throttled(res.RetryAfter)
		}
		return nil
	})
}

// Ban rejects banned client IPs and, when present, banned identifiers.
func Ban(bans domain.BanRepository, now func() time.Time) Guard {
	return Func("ban", func(ctx context.Context, req *Request) error {
		t := now()
		for _, id := range []string{req.ClientIP, domain.NormalizeEmail(req.Identifier)} {
			if id == "" {
				continue
			}
			banned, err := bans.IsBanned(ctx, id, t)
			if err != nil {
				return err
			}
			if banned {
				return domain.ErrAccountBanned
			}
		}
		return nil
	})
}

// Credentials authenticates with the single verifier chosen at startup.
func Credentials(v credential.Verifier) Guard {
	return Func("credentials", func(ctx context.Context, req *Request) error {
		acct, err := v.Authenticate(ctx, req.Identifier, req.Secret)
		if err != nil {
			return err
		}
		req.Account = acct
		return nil
	})
}

// AccountBan rejects an authenticated account carrying the banned flag.
func AccountBan() Guard {
	return Func("account_ban", func(_ context.Context, req *Request) error {
		if req.Account != nil && req.Account.Banned {
			return domain.ErrAccountBanned
		}
		return nil
	})
}

// Balance seeds the account's credit record when missing.
func Balance(balances domain.BalanceRepository, startCredits int64) Guard {
	return Func("balance", func(ctx context.Context, req *Request) error {
		if req.Account == nil {
			return nil
		}
		return balances.EnsureBalance(ctx, req.Account.ID, startCredits)
	})
}

// RegistrationOpen rejects registration when it is closed to the public.
// An invitation still opens the door.
func RegistrationOpen(enabled bool) Guard {
	return Func("registration_open", func(_ context.Context, req *Request) error {
		if !enabled && strings.TrimSpace(req.InviteToken) == "" {
			return domain.ErrForbidden.WithMessage("registration is not allowed")
		}
		return nil
	})
}

// InviteRequired rejects token-less registration in private-beta mode.
func InviteRequired(privateBeta bool) Guard {
	return Func("invite_required", func(_ context.Context, req *Request) error {
		if privateBeta && strings.TrimSpace(req.InviteToken) == "" {
			return domain.ErrInvitationRequired
		}
		return nil
	})
}

// Validate runs fn against the request payload.
func Validate(fn func(req *Request) error) Guard {
	return Func("validate", func(_ context.Context, req *Request) error {
		return fn(req)
	})
}

// OneTimeToken checks req.Token is a live token for purpose. It only reads.
func OneTimeToken(repo domain.OneTimeTokenRepository, purpose domain.TokenPurpose, now func() time.Time) Guard {
	return Func(string(purpose)+"_token", func(ctx context.Context, req *Request) error {
		if strings.TrimSpace(req.Token) == "" {
			return domain.ErrNotFound.WithMessage("token is missing")
		}
		t, err := repo.GetOneTimeToken(ctx, tokens.SHA256Base64URL(req.Token), purpose)
		if err != nil {
			return err
		}
		return t.Check(now())
	})
}

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*session.Principal, error)
}

// SessionRequired resolves the bearer token into a principal and its account.
func SessionRequired(auth Authenticator, accounts domain.AccountRepository) Guard {
	return Func("session", func(ctx context.Context, req *Request) error {
		if req.Bearer == "" {
			return domain.ErrUnauthorized
		}
		p, err := auth.Authenticate(ctx, req.Bearer)
		if err != nil {
			return err
		}
		acct, err := accounts.GetAccountByID(ctx, p.AccountID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUnauthorized
			}
			return err
		}
		if acct.Banned {
			return domain.ErrAccountBanned
		}
		req.Principal = p
		req.Account = acct
		return nil
	})
}
