// Package store opens the persistence backend selected by configuration.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/dropDatabas3/gatehouse/internal/store/pg"
)

// Store is every repository the service needs, behind one handle.
type Store interface {
	domain.AccountRepository
	domain.InvitationRepository
	domain.OneTimeTokenRepository
	domain.TwoFactorRepository
	domain.SessionRepository
	domain.BanRepository
	domain.BalanceRepository

	Ping(ctx context.Context) error
	Close()
}

type Config struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// Open returns the configured backend. "memory" needs no DSN.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return memory.New(), nil
	case "postgres", "pg":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: postgres driver requires a dsn")
		}
		return pg.New(ctx, cfg.DSN, cfg.MaxConns)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
