package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter keeps buckets in an in-process go-cache. Add and
// IncrementInt64 each run under go-cache's lock, so the increment-and-compare
// is atomic per bucket.
type MemoryLimiter struct {
	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{c: gocache.New(time.Minute, time.Minute), now: time.Now}
}

// WithClock swaps the time source. Tests only.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) AllowWithLimits(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(window)
	left := winStart.Add(window).Sub(now)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	var hits int64 = 1
	if err := l.c.Add(k, int64(1), left+time.Second); err != nil {
		n, err := l.c.IncrementInt64(k, 1)
		if err != nil {
			return Result{}, err
		}
		hits = n
	}
	return evaluate(hits, limit, left), nil
}
