// Package health runs registered dependency probes concurrently and serves
// the results as liveness and readiness endpoints. Required components that
// fail make the service not ready; optional ones only degrade it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/resilience"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Option configures a Checker.
type Option func(*Checker)

// WithCheckTimeout bounds each check. A check that overruns is reported as
// degraded.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) { c.checkTimeout = d }
}

// WithCacheTTL makes Run reuse its last report for d.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Checker) { c.cacheTTL = d }
}

// Checker holds named checks and runs them concurrently.
type Checker struct {
	checkTimeout time.Duration
	cacheTTL     time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu     sync.RWMutex
	checks map[string]Check

	cacheMu  sync.Mutex
	last     Report
	lastTime time.Time
}

// NewChecker creates an empty Checker with a 2s per-check timeout and no
// report caching.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		checkTimeout: 2 * time.Second,
		now:          time.Now,
		checks:       make(map[string]Check),
		logger:       slog.Default().With("component", "health"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces a named check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every check and reports the worst component status as the
// overall status.
func (c *Checker) Run(ctx context.Context) Report {
	if c.cacheTTL > 0 {
		c.cacheMu.Lock()
		defer c.cacheMu.Unlock()
		if !c.lastTime.IsZero() && c.now().Sub(c.lastTime) < c.cacheTTL {
			return c.last
		}
	}

	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  c.now().UTC().Format(time.RFC3339),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.runOne(ctx, name, check)
			mu.Lock()
			report.Components[name] = result
			if result.Status.rank() > report.Status.rank() {
				report.Status = result.Status
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if c.cacheTTL > 0 {
		c.last, c.lastTime = report, c.now()
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, name string, check Check) ComponentHealth {
	start := time.Now()
	result, err := resilience.Call(ctx, c.checkTimeout, "health-"+name, func(ctx context.Context) (ComponentHealth, error) {
		return check(ctx), nil
	})
	if err != nil {
		result = ComponentHealth{Status: StatusDegraded, Message: "check timed out"}
	}
	if result.Status != StatusUp {
		c.logger.Warn("health check failing", "check", name, "status", result.Status, "message", result.Message)
	}
	result.Latency = time.Since(start).Round(time.Millisecond).String()
	return result
}

// PingCheck adapts a ping function into a Check. A failing optional
// dependency reports degraded; a failing required one reports down. A nil
// ping means the dependency is not configured.
func PingCheck(optional bool, ping func(ctx context.Context) error) Check {
	failed := StatusDown
	if optional {
		failed = StatusDegraded
	}
	return func(ctx context.Context) ComponentHealth {
		if ping == nil {
			return ComponentHealth{Status: failed, Message: "not configured"}
		}
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failed, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// LiveHandler answers liveness probes. It never runs checks.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c.write(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes. Only a down component makes the
// service unready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.write(w, status, report)
	}
}

func (c *Checker) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.logger.Error("failed to write health response", "error", err)
	}
}
