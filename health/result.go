package health

import (
	"time"

	"github.com/google/uuid"
)

// Result contains the outcome of one check execution attempt. It is a value
// type: produced exactly once per attempt and never mutated afterwards. The
// With* helpers return modified copies.
type Result struct {
	// CheckName is the name of the check that produced this result.
	CheckName string

	// Category is the check's category.
	Category string

	// Source identifies the system the check probed, when known.
	Source string

	// Status is the health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Timestamp is when the check was performed, in UTC.
	Timestamp time.Time

	// CorrelationID ties together the attempts, alerts, and remediation
	// activity of one execution episode.
	CorrelationID string

	// Duration is how long the execution took.
	Duration time.Duration

	// Err is the error if the check failed.
	Err error

	// Attempts is the number of execution attempts consumed, including
	// the initial one.
	Attempts int

	// Skipped marks a check that was not executed because a dependency
	// was unhealthy. A skipped result counts neither as success nor
	// failure.
	Skipped bool

	// Cancelled marks a result reported while the surrounding cycle was
	// being cancelled; Status then reflects the last attempt obtained.
	Cancelled bool

	// Details contains arbitrary metadata about the execution.
	Details map[string]any
}

// Healthy creates a healthy result for the named check.
func Healthy(name, message string) Result {
	return newResult(name, StatusHealthy, message, nil)
}

// Degraded creates a degraded result for the named check.
func Degraded(name, message string) Result {
	return newResult(name, StatusDegraded, message, nil)
}

// Unhealthy creates an unhealthy result for the named check.
func Unhealthy(name, message string, err error) Result {
	return newResult(name, StatusUnhealthy, message, err)
}

// Skipped creates a result recording that the named check was not executed.
func Skipped(name, reason string) Result {
	r := newResult(name, StatusHealthy, reason, nil)
	r.Skipped = true
	return r
}

func newResult(name string, status Status, message string, err error) Result {
	return Result{
		CheckName:     name,
		Status:        status,
		Message:       message,
		Err:           err,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
		Attempts:      1,
	}
}

// WithCategory sets the category on a result.
func (r Result) WithCategory(category string) Result {
	r.Category = category
	return r
}

// WithSource sets the source system on a result.
func (r Result) WithSource(source string) Result {
	r.Source = source
	return r
}

// WithDuration sets the duration on a result.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// WithCorrelationID sets the correlation id on a result.
func (r Result) WithCorrelationID(id string) Result {
	r.CorrelationID = id
	return r
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Failed reports whether the result counts as a failed attempt under the
// given policy: Unhealthy always fails, Degraded fails only when the policy
// counts degraded results toward failure.
func (r Result) Failed(degradedCounts bool) bool {
	if r.Skipped {
		return false
	}
	if r.Status == StatusUnhealthy {
		return true
	}
	return r.Status == StatusDegraded && degradedCounts
}
