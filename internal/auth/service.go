// Package auth assembles the admission pipelines of every /api/auth route and
// implements their terminal actions.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/admission"
	"github.com/dropDatabas3/gatehouse/internal/credential"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/email"
	"github.com/dropDatabas3/gatehouse/internal/invite"
	"github.com/dropDatabas3/gatehouse/internal/rate"
	"github.com/dropDatabas3/gatehouse/internal/session"
	"github.com/dropDatabas3/gatehouse/internal/twofactor"
	"github.com/dropDatabas3/gatehouse/internal/validation"
)

// Route names. They label metrics and logs.
const (
	RouteLogin         = "login"
	RouteLogout        = "logout"
	RouteRefresh       = "refresh"
	RouteRegister      = "register"
	RouteResetRequest  = "password_reset_request"
	RouteReset         = "password_reset"
	RouteSetPassword   = "set_password"
	Route2FAEnable     = "2fa_enable"
	Route2FAVerify     = "2fa_verify"
	Route2FAVerifyTemp = "2fa_verify_temp"
	Route2FAConfirm    = "2fa_confirm"
	Route2FADisable    = "2fa_disable"
	Route2FARegenerate = "2fa_backup_regenerate"
)

// Store is the persistence the actions touch directly.
type Store interface {
	domain.AccountRepository
	domain.OneTimeTokenRepository
	domain.TwoFactorRepository
	domain.BanRepository
	domain.BalanceRepository
	invite.Store
}

// Config carries the deployment switches the pipelines depend on.
type Config struct {
	RateEnabled bool
	Login       rate.Rule
	Register    rate.Rule
	Reset       rate.Rule
	Invite      rate.Rule
	Refresh     rate.Rule

	RegistrationEnabled bool
	PrivateBeta         bool

	BalanceEnabled bool
	StartCredits   int64

	ResetTTL      time.Duration
	ActivationTTL time.Duration

	// DebugEchoLinks returns emailed links in responses. Never in prod.
	DebugEchoLinks bool
}

type Deps struct {
	Store     Store
	Verifier  credential.Verifier
	Limiter   rate.MultiLimiter
	Invites   *invite.Registry
	TwoFactor *twofactor.Engine
	Sessions  *session.Issuer
	Validator *validation.Validator
	Mailer    *email.Mailer
	Config    Config
}

// Meta is what the transport knows about the caller.
type Meta struct {
	ClientIP string
	Header   http.Header
	Bearer   string
}

// Message is the body of responses that carry no data.
type Message struct {
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

type Service struct {
	d         Deps
	now       func() time.Time
	pipelines map[string]*admission.Pipeline
}

func New(d Deps) *Service {
	s := &Service{d: d, now: func() time.Time { return time.Now().UTC() }}
	s.build()
	return s
}

// WithClock swaps the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.build()
	return s
}

// Pipeline returns the assembled pipeline of route, or nil.
func (s *Service) Pipeline(route string) *admission.Pipeline { return s.pipelines[route] }

func (s *Service) limit(class string, rule rate.Rule) []admission.Guard {
	if !s.d.Config.RateEnabled || s.d.Limiter == nil || rule.Limit <= 0 {
		return nil
	}
	return []admission.Guard{admission.RateLimit(rate.Bind(s.d.Limiter, class, rule))}
}

func (s *Service) build() {
	cfg := s.d.Config
	ban := admission.Ban(s.d.Store, s.now)
	sess := admission.SessionRequired(s.d.Sessions, s.d.Store)

	login := []admission.Guard{admission.HeaderLog()}
	login = append(login, s.limit("login", cfg.Login)...)
	login = append(login, ban, admission.Credentials(s.d.Verifier), admission.AccountBan())
	if cfg.BalanceEnabled {
		login = append(login, admission.Balance(s.d.Store, cfg.StartCredits))
	}

	register := append(s.limit("register", cfg.Register), ban,
		admission.RegistrationOpen(cfg.RegistrationEnabled),
		admission.InviteRequired(cfg.PrivateBeta),
		admission.Validate(s.validateRegister),
	)

	resetReq := append(s.limit("reset", cfg.Reset), ban, admission.Validate(s.validateResetRequest))
	reset := append(s.limit("reset", cfg.Reset), ban, admission.Validate(s.validatePassword))
	setPwd := append(s.limit("invite", cfg.Invite), ban,
		admission.OneTimeToken(s.d.Store, domain.PurposeActivation, s.now))

	s.pipelines = map[string]*admission.Pipeline{
		RouteLogin:         {Route: RouteLogin, Guards: login, Action: s.login},
		RouteLogout:        {Route: RouteLogout, Guards: []admission.Guard{sess}, Action: s.logout},
		RouteRefresh:       {Route: RouteRefresh, Guards: s.limit("refresh", cfg.Refresh), Action: s.refresh},
		RouteRegister:      {Route: RouteRegister, Guards: register, Action: s.register},
		RouteResetRequest:  {Route: RouteResetRequest, Guards: resetReq, Action: s.requestReset},
		RouteReset:         {Route: RouteReset, Guards: reset, Action: s.resetPassword},
		RouteSetPassword:   {Route: RouteSetPassword, Guards: setPwd, Action: s.setPassword},
		Route2FAEnable:     {Route: Route2FAEnable, Guards: []admission.Guard{sess}, Action: s.enable2FA},
		Route2FAVerify:     {Route: Route2FAVerify, Guards: []admission.Guard{sess}, Action: s.verify2FA},
		Route2FAVerifyTemp: {Route: Route2FAVerifyTemp, Guards: []admission.Guard{ban}, Action: s.verifyTemp},
		Route2FAConfirm:    {Route: Route2FAConfirm, Guards: []admission.Guard{sess}, Action: s.confirm2FA},
		Route2FADisable:    {Route: Route2FADisable, Guards: []admission.Guard{sess}, Action: s.disable2FA},
		Route2FARegenerate: {Route: Route2FARegenerate, Guards: []admission.Guard{sess}, Action: s.regenerate2FA},
	}
}

func (s *Service) run(ctx context.Context, route string, m Meta, req *admission.Request) (any, error) {
	req.ClientIP = m.ClientIP
	req.Header = m.Header
	req.Bearer = m.Bearer
	return s.pipelines[route].Run(ctx, req)
}

// runAs narrows a pipeline result to T.
func runAs[T any](s *Service, ctx context.Context, route string, m Meta, req *admission.Request) (T, error) {
	var zero T
	out, err := s.run(ctx, route, m, req)
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}
