// Package app wires configuration into a running service: stores, cache,
// limiter, verifier, mailer, the auth service and its HTTP handler.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/gatehouse/internal/auth"
	"github.com/dropDatabas3/gatehouse/internal/cache"
	"github.com/dropDatabas3/gatehouse/internal/config"
	"github.com/dropDatabas3/gatehouse/internal/credential"
	"github.com/dropDatabas3/gatehouse/internal/email"
	"github.com/dropDatabas3/gatehouse/internal/http/controllers"
	mw "github.com/dropDatabas3/gatehouse/internal/http/middlewares"
	"github.com/dropDatabas3/gatehouse/internal/http/router"
	"github.com/dropDatabas3/gatehouse/internal/invite"
	"github.com/dropDatabas3/gatehouse/internal/metrics"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/rate"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	"github.com/dropDatabas3/gatehouse/internal/security/secretbox"
	"github.com/dropDatabas3/gatehouse/internal/session"
	"github.com/dropDatabas3/gatehouse/internal/store"
	"github.com/dropDatabas3/gatehouse/internal/store/pg"
	"github.com/dropDatabas3/gatehouse/internal/twofactor"
	"github.com/dropDatabas3/gatehouse/internal/validation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Options tweak wiring for tests.
type Options struct {
	// Registry defaults to the process-wide Prometheus registerer.
	Registry *prometheus.Registry
	// Sender replaces the configured email transport.
	Sender email.Sender
}

// App is the wired service.
type App struct {
	Config  *config.Config
	Store   store.Store
	Cache   cache.Client
	Auth    *auth.Service
	Invites *invite.Registry
	Handler http.Handler
}

// Build opens every backend cfg selects and assembles the HTTP handler.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.From(ctx).With(logger.Layer("app"), logger.Op("build"))

	st, err := store.Open(ctx, store.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN, MaxConns: cfg.Storage.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{Config: cfg, Store: st}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	c, err := cache.New(ctx, cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.Cache = c

	var limiter rate.MultiLimiter = rate.NewMemoryLimiter()
	if rc, isRedis := a.Cache.(*cache.Redis); isRedis {
		limiter = rate.NewRedisLimiter(rc.Client(), cfg.Cache.Redis.Prefix+":rl")
	}

	verifier, err := credential.New(st, directoryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("credential verifier: %w", err)
	}
	log.Info("credential verifier selected", logger.String("verifier", verifier.Name()))

	box, err := secretBox(ctx, cfg)
	if err != nil {
		return nil, err
	}
	issuer, err := session.NewIssuer(ctx, st, session.Config{
		Issuer:      cfg.JWT.Issuer,
		SigningSeed: cfg.JWT.SigningSeed,
		AccessTTL:   cfg.JWT.AccessTTL,
		RefreshTTL:  cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("session issuer: %w", err)
	}

	blacklist, err := password.LoadBlacklist(cfg.Security.PasswordBlacklistPath)
	if err != nil {
		return nil, fmt.Errorf("password blacklist: %w", err)
	}
	pp := cfg.Security.PasswordPolicy
	validator := validation.New(password.Policy{
		MinLength:     pp.MinLength,
		MaxLength:     pp.MaxLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
	}, blacklist)

	a.Invites = invite.NewRegistry(st, cfg.Registration.InviteTTL)
	a.Auth = auth.New(auth.Deps{
		Store:     st,
		Verifier:  verifier,
		Limiter:   limiter,
		Invites:   a.Invites,
		TwoFactor: twofactor.New(st, box, a.Cache, twofactor.Config{Issuer: cfg.MFA.Issuer, Skew: int(cfg.MFA.Skew), BackupCodes: cfg.MFA.BackupCodes, TempTokenTTL: cfg.MFA.TempTokenTTL}),
		Sessions:  issuer,
		Validator: validator,
		Mailer:    email.NewMailer(sender(cfg, opts), cfg.Email.BaseURL),
		Config: auth.Config{
			RateEnabled:         cfg.Rate.Enabled,
			Login:               rate.Rule(cfg.Rate.Login),
			Register:            rate.Rule(cfg.Rate.Register),
			Reset:               rate.Rule(cfg.Rate.Reset),
			Invite:              rate.Rule(cfg.Rate.Invite),
			Refresh:             rate.Rule(cfg.Rate.Refresh),
			RegistrationEnabled: cfg.Registration.Enabled,
			PrivateBeta:         cfg.Registration.PrivateBeta,
			BalanceEnabled:      cfg.Balance.Enabled,
			StartCredits:        cfg.Balance.StartCredits,
			ResetTTL:            cfg.Auth.ResetTTL,
			ActivationTTL:       cfg.Auth.ActivationTTL,
			DebugEchoLinks:      cfg.Email.DebugEchoLinks,
		},
	})

	a.Handler, err = a.handler(opts)
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

func (a *App) handler(opts Options) (http.Handler, error) {
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer
	if opts.Registry != nil {
		reg, gatherer = opts.Registry, opts.Registry
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	mc := mw.MetricsConfig{Registry: reg, Gatherer: gatherer}
	if ps, isPG := a.Store.(*pg.Store); isPG {
		mc.Pool = func() *pgxpool.Pool { return ps.Pool() }
	}
	metricsHandler, err := mw.RegisterMetrics(mc)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	cfg := a.Config
	return router.New(router.Deps{
		Auth:   controllers.NewAuthController(a.Auth),
		Invite: controllers.NewInviteController(a.Invites),
		Config: controllers.NewConfigController(controllers.PublicConfig{
			PrivateBetaMode:     cfg.Registration.PrivateBeta,
			RequiresCaptcha:     cfg.RequiresCaptcha(),
			CaptchaSiteKey:      cfg.Captcha.SiteKey,
			RegistrationEnabled: cfg.Registration.Enabled,
			DirectoryLogin:      cfg.DirectoryEnabled(),
		}),
		Health:     controllers.NewHealthController(map[string]controllers.Pinger{"store": a.Store, "cache": a.Cache}),
		Metrics:    metricsHandler,
		TrustProxy: cfg.Server.TrustProxy,
	}), nil
}

// Close releases the cache and store.
func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

func directoryConfig(cfg *config.Config) *credential.DirectoryConfig {
	if !cfg.DirectoryEnabled() {
		return nil
	}
	d := cfg.Directory
	return &credential.DirectoryConfig{
		URL:          d.URL,
		SearchBase:   d.SearchBase,
		SearchFilter: d.SearchFilter,
		BindDN:       d.BindDN,
		BindPassword: d.BindPassword,
		EmailAttr:    d.EmailAttr,
		NameAttr:     d.NameAttr,
		UsernameAttr: d.UsernameAttr,
		StartTLS:     d.StartTLS,
		Timeout:      d.Timeout,
	}
}

// secretBox opens the 2FA sealing key. Without one, outside prod, an
// ephemeral key is generated and enrolled secrets die with the process.
func secretBox(ctx context.Context, cfg *config.Config) (*secretbox.Box, error) {
	key := cfg.Security.SecretBoxMasterKey
	if key == "" {
		if cfg.App.Env == "prod" {
			return nil, fmt.Errorf("security.secretbox_master_key is required in prod")
		}
		logger.From(ctx).Warn("no secretbox master key configured, using an ephemeral key", logger.Layer("app"))
		var err error
		if key, err = secretbox.GenerateKey(); err != nil {
			return nil, err
		}
	}
	box, err := secretbox.New(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: %w", err)
	}
	return box, nil
}

func sender(cfg *config.Config, opts Options) email.Sender {
	var s email.Sender = email.LogSender{}
	if opts.Sender != nil {
		s = opts.Sender
	} else if cfg.SMTP.Host != "" {
		s = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.TLS)
	}
	if cfg.Email.PerMinute > 0 {
		s = email.NewThrottled(s, cfg.Email.PerMinute)
	}
	return s
}
