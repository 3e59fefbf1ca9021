package admission

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/rate"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(trace *[]string, name string, err error) Guard {
	return Func(name, func(context.Context, *Request) error {
		*trace = append(*trace, name)
		return err
	})
}

func TestPipeline_FirstRejectionStops(t *testing.T) {
	var trace []string
	ran := false
	p := &Pipeline{
		Route: "test",
		Guards: []Guard{
			recorder(&trace, "a", nil),
			recorder(&trace, "b", domain.ErrInvitationRequired),
			recorder(&trace, "c", domain.Validation(map[string]string{"x": "y"})),
		},
		Action: func(context.Context, *Request) (any, error) { ran = true; return "ok", nil },
	}

	_, err := p.Run(context.Background(), &Request{})
	assert.ErrorIs(t, err, domain.ErrInvitationRequired)
	assert.Equal(t, []string{"a", "b"}, trace)
	assert.False(t, ran)
}

func TestPipeline_ActionAfterAllGuards(t *testing.T) {
	var trace []string
	p := &Pipeline{
		Route:  "test",
		Guards: []Guard{recorder(&trace, "a", nil), recorder(&trace, "b", nil)},
		Action: func(_ context.Context, req *Request) (any, error) {
			trace = append(trace, "action:"+req.Route)
			return 42, nil
		},
	}
	out, err := p.Run(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, []string{"a", "b", "action:test"}, trace)
	assert.Equal(t, []string{"a", "b"}, p.Names())
}

func TestPipeline_UnexpectedErrorsBecomeInternal(t *testing.T) {
	p := &Pipeline{
		Route:  "test",
		Guards: []Guard{Func("boom", func(context.Context, *Request) error { return errors.New("db down") })},
		Action: func(context.Context, *Request) (any, error) { return nil, nil },
	}
	_, err := p.Run(context.Background(), &Request{})
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotContains(t, err.Error(), "db down")

	p = &Pipeline{
		Route:  "test",
		Action: func(context.Context, *Request) (any, error) { panic("nil map") },
	}
	_, err = p.Run(context.Background(), &Request{})
	assert.ErrorIs(t, err, domain.ErrInternal)
}

func TestRateLimitGuard(t *testing.T) {
	lim := rate.Bind(rate.NewMemoryLimiter(), "login", rate.Rule{Limit: 2, Window: time.Minute})
	g := RateLimit(lim)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, g.Evaluate(ctx, &Request{ClientIP: "1.1.1.1"}))
	}
	req := &Request{ClientIP: "1.1.1.1"}
	err := g.Evaluate(ctx, req)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindThrottled, de.Kind)
	assert.Greater(t, de.RetryAfter, time.Duration(0))
	require.NotNil(t, req.RateLimit)
	assert.False(t, req.RateLimit.Allowed)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis: connection refused")
}

func TestRateLimitGuard_FailsOpen(t *testing.T) {
	assert.NoError(t, RateLimit(brokenLimiter{}).Evaluate(context.Background(), &Request{ClientIP: "x"}))
}

func TestBanGuard(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, st.PutBan(ctx, &domain.Ban{Identity: "9.9.9.9"}))
	require.NoError(t, st.PutBan(ctx, &domain.Ban{Identity: "bad@x.io"}))
	g := Ban(st, func() time.Time { return now })

	assert.ErrorIs(t, g.Evaluate(ctx, &Request{ClientIP: "9.9.9.9"}), domain.ErrAccountBanned)
	assert.ErrorIs(t, g.Evaluate(ctx, &Request{ClientIP: "1.1.1.1", Identifier: " BAD@x.io"}), domain.ErrAccountBanned)
	assert.NoError(t, g.Evaluate(ctx, &Request{ClientIP: "1.1.1.1", Identifier: "good@x.io"}))
}

func TestInviteAndRegistrationGuards(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, InviteRequired(true).Evaluate(ctx, &Request{}), domain.ErrInvitationRequired)
	assert.NoError(t, InviteRequired(true).Evaluate(ctx, &Request{InviteToken: "t"}))
	assert.NoError(t, InviteRequired(false).Evaluate(ctx, &Request{}))

	assert.ErrorIs(t, RegistrationOpen(false).Evaluate(ctx, &Request{}), domain.ErrForbidden)
	assert.NoError(t, RegistrationOpen(false).Evaluate(ctx, &Request{InviteToken: "t"}))
}

func TestSanitizeHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("Cookie", "sid=1")
	h.Add("Accept", "a")
	h.Add("Accept", "b")

	got := SanitizeHeaders(h)
	assert.Equal(t, "[redacted]", got["Authorization"])
	assert.Equal(t, "[redacted]", got["Cookie"])
	assert.Equal(t, "a, b", got["Accept"])
}
