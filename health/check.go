package health

import (
	"context"
	"fmt"
	"time"
)

// Status represents the health status of a check.
type Status int

const (
	// StatusHealthy indicates the probed component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ParseStatus parses a string status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "healthy":
		return StatusHealthy, nil
	case "degraded":
		return StatusDegraded, nil
	case "unhealthy":
		return StatusUnhealthy, nil
	default:
		return StatusHealthy, fmt.Errorf("health: unknown status %q", s)
	}
}

// AtLeast reports whether the status is at or above the given severity.
// Severity is ordered Healthy < Degraded < Unhealthy.
func (s Status) AtLeast(threshold Status) bool {
	return s >= threshold
}

// WorstOf returns the categorical maximum of the given statuses
// (Unhealthy > Degraded > Healthy). An empty argument list is Healthy.
func WorstOf(statuses ...Status) Status {
	worst := StatusHealthy
	for _, s := range statuses {
		if s > worst {
			worst = s
		}
	}
	return worst
}

// Check is the capability a caller supplies for each health probe. The
// engine never inspects a check's internals; it only calls Execute and
// interprets the returned Result through the configured policy.
type Check interface {
	// Name returns the unique name of this check.
	Name() string

	// Category returns the category the check belongs to.
	Category() string

	// Execute performs the probe for the cycle starting at the given time.
	Execute(ctx context.Context, at time.Time) Result
}

// CheckFunc is an adapter to allow ordinary functions to be used as Checks.
type CheckFunc struct {
	name     string
	category string
	fn       func(context.Context, time.Time) Result
}

// NewCheckFunc creates a new CheckFunc.
func NewCheckFunc(name, category string, fn func(context.Context, time.Time) Result) *CheckFunc {
	return &CheckFunc{name: name, category: category, fn: fn}
}

// Name returns the name of this check.
func (f *CheckFunc) Name() string {
	return f.name
}

// Category returns the category of this check.
func (f *CheckFunc) Category() string {
	return f.category
}

// Execute performs the health check.
func (f *CheckFunc) Execute(ctx context.Context, at time.Time) Result {
	return f.fn(ctx, at)
}
