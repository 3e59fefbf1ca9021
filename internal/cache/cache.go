// Package cache provides a small key/value client with memory and Redis
// backends. It holds short-lived records such as 2FA temp tokens.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client is the cache contract.
type Client interface {
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value. A zero ttl never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Take returns and deletes the value atomically: of two concurrent
	// Takes on one key, at most one sees the value.
	Take(ctx context.Context, key string) (string, error)

	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// ErrNotFound is returned for missing keys.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New builds a client for cfg.Driver; unknown drivers fall back to memory.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
