// Package admission runs ordered guard chains in front of terminal actions.
//
// A Pipeline evaluates its guards in order. The first rejection ends the run
// and is returned as is; the action runs only after every guard passed.
// Guards do not mutate domain state, with one exception: the rate-limit
// guard's increment is kept even when a later guard rejects.
package admission

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/metrics"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/rate"
	"github.com/dropDatabas3/gatehouse/internal/session"
	"go.uber.org/zap"
)

// Request is the per-request context guards read and enrich.
type Request struct {
	Route    string
	ClientIP string
	Header   http.Header

	// Identifier is the login email/username, or the email of a
	// registration or reset request.
	Identifier string
	Secret     string

	// InviteToken is the registration invitation; Token is a reset or
	// activation token.
	InviteToken string
	Token       string
	Bearer      string

	// Form is the decoded payload checked by the validation guard.
	Form any

	// Set by guards.
	Account   *domain.Account
	Principal *session.Principal
	RateLimit *rate.Result
}

// Guard is one admission predicate. A nil return passes.
type Guard interface {
	Name() string
	Evaluate(ctx context.Context, req *Request) error
}

type funcGuard struct {
	name string
	fn   func(ctx context.Context, req *Request) error
}

func (g funcGuard) Name() string                                    { return g.name }
func (g funcGuard) Evaluate(ctx context.Context, req *Request) error { return g.fn(ctx, req) }

// Func adapts a function to a Guard.
func Func(name string, fn func(ctx context.Context, req *Request) error) Guard {
	return funcGuard{name: name, fn: fn}
}

// Action is the terminal operation of a route.
type Action func(ctx context.Context, req *Request) (any, error)

type Pipeline struct {
	Route  string
	Guards []Guard
	Action Action
}

// Names lists the guard names in evaluation order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.Guards))
	for i, g := range p.Guards {
		out[i] = g.Name()
	}
	return out
}

// Run evaluates the guards then the action. Panics and errors that are not
// domain errors are logged with the failing stage and surface as ErrInternal.
func (p *Pipeline) Run(ctx context.Context, req *Request) (out any, err error) {
	start := time.Now()
	req.Route = p.Route
	log := logger.From(ctx).With(logger.Layer("admission"), logger.Route(p.Route))
	stage := ""

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in admission pipeline", logger.Guard(stage), zap.Any("panic", r), zap.Stack("stack"))
			out, err = nil, domain.ErrInternal
		}
		outcome, guard := "admitted", ""
		if err != nil {
			outcome, guard = string(domain.KindOf(err)), stage
		}
		metrics.AdmissionDecisions.WithLabelValues(p.Route, guard, outcome).Inc()
		metrics.AdmissionDuration.WithLabelValues(p.Route).Observe(time.Since(start).Seconds())
	}()

	for _, g := range p.Guards {
		stage = g.Name()
		if gerr := g.Evaluate(ctx, req); gerr != nil {
			return nil, reject(log, stage, gerr)
		}
	}
	stage = "action"
	out, err = p.Action(ctx, req)
	if err != nil {
		return nil, reject(log, stage, err)
	}
	return out, nil
}

func reject(log *zap.Logger, stage string, err error) error {
	de, ok := domain.AsError(err)
	if !ok || de.Kind == domain.KindInternal {
		log.Error("admission failed", logger.Guard(stage), logger.Err(err))
		return domain.ErrInternal
	}
	if de.Kind == domain.KindServiceUnavailable {
		log.Warn("admission dependency unavailable", logger.Guard(stage), logger.Err(err))
	} else {
		log.Debug("admission rejected", logger.Guard(stage), logger.Kind(string(de.Kind)))
	}
	return err
}
