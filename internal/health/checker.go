// Package health runs preflight checks before a batch run starts.
//
// A run that submits hundreds of jobs against an unreachable backend fails
// hundreds of times; checking once up front fails fast instead.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReadinessChecker is implemented by backends that can verify they are
// ready to accept work.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult contains the result of a single check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Report is the aggregate outcome of a preflight pass.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy returns true if every check passed.
func (r *Report) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// Err returns a single error naming the failed checks, or nil.
func (r *Report) Err() error {
	if r.IsHealthy() {
		return nil
	}
	var failed []string
	for name, check := range r.Checks {
		if check.Status != StatusHealthy {
			failed = append(failed, fmt.Sprintf("%s: %s", name, check.Message))
		}
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failed, "; "))
}

// Checker runs a set of named readiness checks with a per-check timeout.
type Checker struct {
	timeout time.Duration
	names   []string
	checks  map[string]func(ctx context.Context) error
}

// NewChecker creates an empty checker with a 5s per-check timeout.
func NewChecker() *Checker {
	return &Checker{
		timeout: 5 * time.Second,
		checks:  make(map[string]func(ctx context.Context) error),
	}
}

// Add registers a named check. Checks run in registration order.
func (c *Checker) Add(name string, fn func(ctx context.Context) error) {
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
	}
	c.checks[name] = fn
}

// AddReadiness registers a backend's Ready method as a check.
func (c *Checker) AddReadiness(name string, backend ReadinessChecker) {
	c.Add(name, backend.Ready)
}

// Run executes every registered check. All checks run even after a failure
// so the report names everything that is broken, not just the first thing.
func (c *Checker) Run(ctx context.Context) *Report {
	report := &Report{
		Status: StatusHealthy,
		Checks: make(map[string]CheckResult, len(c.names)),
	}

	for _, name := range c.names {
		result := c.runOne(ctx, c.checks[name])
		report.Checks[name] = result
		if result.Status != StatusHealthy {
			report.Status = StatusUnhealthy
		}
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, fn func(ctx context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
