// Package rate implements fixed-window request counting per key.
//
// A bucket is (key, window start). Each Allow increments the bucket atomically
// and compares against the ceiling; requests over the ceiling are rejected,
// never queued. Increments are not refunded.
package rate

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter is bound to a single rule.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// MultiLimiter takes the rule per call so one backend serves every route class.
type MultiLimiter interface {
	AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Rule is a ceiling per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Bind returns a Limiter applying rule on m. Keys are namespaced by class.
func Bind(m MultiLimiter, class string, rule Rule) Limiter {
	return &bound{m: m, class: class, rule: rule}
}

type bound struct {
	m     MultiLimiter
	class string
	rule  Rule
}

func (b *bound) Allow(ctx context.Context, key string) (Result, error) {
	return b.m.AllowWithLimits(ctx, b.class+"|"+key, b.rule.Limit, b.rule.Window)
}

// evaluate turns a post-increment hit count into a Result.
func evaluate(hits int64, limit int, windowLeft time.Duration) Result {
	max := int64(limit)
	res := Result{
		Allowed:     hits <= max,
		CurrentHits: hits,
		WindowTTL:   windowLeft,
	}
	if rem := max - hits; rem > 0 {
		res.Remaining = rem
	}
	if !res.Allowed {
		res.RetryAfter = windowLeft
		if res.RetryAfter < time.Second {
			res.RetryAfter = time.Second
		}
	}
	return res
}
