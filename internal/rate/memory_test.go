package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemoryLimiter_WindowCeiling(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	lim := Bind(NewMemoryLimiter().WithClock(clock.Now), "login", Rule{Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		res, err := lim.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d", i+1)
	}

	res, err := lim.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)
	assert.Zero(t, res.Remaining)

	// other identities have their own bucket
	res, err = lim.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	clock.Advance(time.Minute)
	res, err = lim.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.EqualValues(t, 2, res.Remaining)
}

func TestMemoryLimiter_ClassesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLimiter()
	login := Bind(m, "login", Rule{Limit: 1, Window: time.Minute})
	register := Bind(m, "register", Rule{Limit: 1, Window: time.Minute})

	res, _ := login.Allow(ctx, "ip")
	assert.True(t, res.Allowed)
	res, _ = register.Allow(ctx, "ip")
	assert.True(t, res.Allowed)
	res, _ = login.Allow(ctx, "ip")
	assert.False(t, res.Allowed)
}

func TestMemoryLimiter_ConcurrentNeverExceedsCeiling(t *testing.T) {
	ctx := context.Background()
	lim := Bind(NewMemoryLimiter(), "c", Rule{Limit: 10, Window: time.Hour})

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := lim.Allow(ctx, "k")
			if err == nil && res.Allowed {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 10, allowed)
}
