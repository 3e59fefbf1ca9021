package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/http/helpers"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
)

// Pinger is a dependency readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	deps    map[string]Pinger
	timeout time.Duration
}

func NewHealthController(deps map[string]Pinger) *HealthController {
	return &HealthController{deps: deps, timeout: 2 * time.Second}
}

// Live handles GET /healthz.
func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz. Every dependency must answer its ping.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	checks := make(map[string]string, len(c.deps))
	status := http.StatusOK
	for name, p := range c.deps {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}
	state := "ready"
	if status != http.StatusOK {
		state = "degraded"
	}
	helpers.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
}
