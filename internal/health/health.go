// Package health serves liveness and readiness checks.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/musharafmush/pos-sub010/internal/common"
)

const defaultTimeout = 500 * time.Millisecond

var (
	errNotConfigured = errors.New("not configured")
	draining         atomic.Bool
)

// SetReady toggles readiness. Servers call SetReady(false) when shutdown begins so
// load balancers stop routing new sales to them.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Check is a named readiness dependency check.
type Check struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck checks a dependency exposing Ping.
func PingCheck(name string, p Pinger, timeout time.Duration) Check {
	return Check{Name: name, Timeout: timeout, Check: func(ctx context.Context) error {
		if p == nil {
			return errNotConfigured
		}
		return p.Ping(ctx)
	}}
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every check and reports 503 when any of them fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "DRAINING", "server is shutting down", nil)
		return
	}
	if len(h.Checks) == 0 {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "dependencies unavailable", nil)
		return
	}
	checks := make(map[string]string, len(h.Checks))
	healthy := true
	for _, c := range h.Checks {
		checks[c.Name] = "ok"
		if err := c.run(r.Context()); err != nil {
			checks[c.Name] = err.Error()
			healthy = false
		}
	}
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	common.JSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (c Check) run(ctx context.Context) error {
	if c.Check == nil {
		return errNotConfigured
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Check(ctx)
}
