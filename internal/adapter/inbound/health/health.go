// Package health implements Vigil's liveness endpoint: a single
// JSON summary of each long-lived component the serve command wires up,
// degrading the overall status when any required component reports trouble.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/signature"
)

// Response is the JSON body served at /healthz.
type Response struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Goroutines int              `json:"goroutines"`
}

// EventStorePinger is satisfied by sqlstore.Store.
type EventStorePinger interface {
	Ping(ctx context.Context) error
}

// SessionSizer is satisfied by memory.SessionStore.
type SessionSizer interface {
	Size() int
}

// RateLimiterSizer is satisfied by memory.SlidingWindowLimiter.
type RateLimiterSizer interface {
	Size() int
}

// SignatureLister is satisfied by signature.Engine.
type SignatureLister interface {
	List() []signature.RuleView
}

// Checker probes each wired component and renders the combined verdict.
// All fields are optional; a nil component is reported as "not configured"
// rather than failing the overall check.
type Checker struct {
	eventStore   EventStorePinger
	sessionStore SessionSizer
	rateLimiter  RateLimiterSizer
	signatures   SignatureLister
	version      string
}

// NewChecker builds a health Checker. Pass nil for any component not in use.
func NewChecker(eventStore EventStorePinger, sessionStore SessionSizer, rateLimiter RateLimiterSizer, signatures SignatureLister, version string) *Checker {
	return &Checker{
		eventStore:   eventStore,
		sessionStore: sessionStore,
		rateLimiter:  rateLimiter,
		signatures:   signatures,
		version:      version,
	}
}

// Check runs every configured probe and returns the combined response.
func (c *Checker) Check(ctx context.Context) Response {
	checks := make(map[string]string)
	healthy := true

	if c.eventStore == nil {
		checks["event_store"] = "not configured"
	} else if err := c.eventStore.Ping(ctx); err != nil {
		checks["event_store"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["event_store"] = "ok"
	}

	if c.sessionStore == nil {
		checks["session_store"] = "not configured"
	} else {
		checks["session_store"] = fmt.Sprintf("ok (%d sessions)", c.sessionStore.Size())
	}

	if c.rateLimiter == nil {
		checks["rate_limiter"] = "not configured"
	} else {
		checks["rate_limiter"] = fmt.Sprintf("ok (%d keys)", c.rateLimiter.Size())
	}

	if c.signatures == nil {
		checks["signatures"] = "not configured"
	} else {
		checks["signatures"] = fmt.Sprintf("ok (%d rules loaded)", len(c.signatures.List()))
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return Response{
		Status:     status,
		Checks:     checks,
		Version:    c.version,
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}
}

// Handler returns the /healthz endpoint: 200 when every configured
// component reports ok, 503 otherwise.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := c.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}
