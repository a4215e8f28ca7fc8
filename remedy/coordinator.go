package remedy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/retry"
)

// ErrDuplicateHandler indicates a remediation handler is already registered
// for the check name.
var ErrDuplicateHandler = errors.New("remedy: handler already registered")

// Outcome is what a remediation handler reports back.
type Outcome struct {
	// Succeeded reports whether the corrective action was applied.
	Succeeded bool

	// Message describes what the handler did.
	Message string

	// Err is the handler's error, if any.
	Err error
}

// Handler is the capability a remediation provider registers per check.
type Handler interface {
	// CanRemediate reports whether the handler can act on the result.
	CanRemediate(res health.Result) bool

	// Remediate attempts the corrective action.
	Remediate(ctx context.Context, res health.Result) Outcome
}

// HandlerFunc adapts a pair of functions to the Handler capability.
type HandlerFunc struct {
	can func(health.Result) bool
	fn  func(context.Context, health.Result) Outcome
}

// NewHandlerFunc creates a HandlerFunc. A nil can function accepts every
// result.
func NewHandlerFunc(can func(health.Result) bool, fn func(context.Context, health.Result) Outcome) *HandlerFunc {
	if can == nil {
		can = func(health.Result) bool { return true }
	}
	return &HandlerFunc{can: can, fn: fn}
}

// CanRemediate reports whether the handler can act on the result.
func (h *HandlerFunc) CanRemediate(res health.Result) bool {
	return h.can(res)
}

// Remediate attempts the corrective action.
func (h *HandlerFunc) Remediate(ctx context.Context, res health.Result) Outcome {
	return h.fn(ctx, res)
}

// Attempt records one remediation invocation and its optional verification.
type Attempt struct {
	// CheckName is the check that was remediated.
	CheckName string

	// Number is the attempt's position within the failure episode,
	// starting at 1.
	Number int

	// Outcome is what the handler reported.
	Outcome Outcome

	// Verification is the re-execution result confirming or refuting the
	// fix, nil when verification is disabled or was cancelled.
	Verification *health.Result

	// CorrelationID carries the triggering result's correlation id.
	CorrelationID string

	// Timestamp is when the handler was invoked.
	Timestamp time.Time
}

// Verified reports whether verification ran and came back healthy.
func (a *Attempt) Verified() bool {
	return a.Verification != nil && a.Verification.Status == health.StatusHealthy && !a.Verification.Skipped
}

// Coordinator owns the name-to-handler map and the per-episode attempt
// counters. The counter for a check resets on its first subsequent healthy
// result, never on a failed remediation, so MaxRemediationAttempts caps
// total tries per sustained outage.
type Coordinator struct {
	retrier *retry.Coordinator

	mu       sync.RWMutex
	handlers map[string]Handler
	attempts map[string]int
}

// NewCoordinator creates a remediation coordinator. Verification executions
// go through the given retry coordinator with a fresh attempt allowance.
func NewCoordinator(retrier *retry.Coordinator) *Coordinator {
	return &Coordinator{
		retrier:  retrier,
		handlers: make(map[string]Handler),
		attempts: make(map[string]int),
	}
}

// RegisterHandler associates a remediation handler with a check name.
func (c *Coordinator) RegisterHandler(checkName string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[checkName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, checkName)
	}
	c.handlers[checkName] = h
	return nil
}

// UnregisterHandler removes the handler for a check name. Returns false
// when none is registered. Episode counters for the name are discarded.
func (c *Coordinator) UnregisterHandler(checkName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[checkName]; !exists {
		return false
	}
	delete(c.handlers, checkName)
	delete(c.attempts, checkName)
	return true
}

// Observe feeds a result into the episode tracking: the first healthy,
// non-skipped result closes the episode and resets the attempt counter.
func (c *Coordinator) Observe(res health.Result) {
	if res.Skipped || res.Status != health.StatusHealthy {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, res.CheckName)
}

// Attempts returns the attempt count consumed in the current episode.
func (c *Coordinator) Attempts(checkName string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts[checkName]
}

// Remediate runs the remediation pipeline for one qualifying result. It
// returns nil when the result does not qualify: remediation disabled,
// severity below the threshold, episode attempt cap reached, no handler, or
// the handler declines. When verification is configured the check is
// re-executed through the retry coordinator after the verification delay and
// the result is attached to the returned attempt; callers feed it back into
// alert evaluation and history like any other result.
func (c *Coordinator) Remediate(ctx context.Context, check health.Check, cfg health.Config, res health.Result) *Attempt {
	if !cfg.EnableRemediation || res.Skipped {
		return nil
	}
	if !res.Status.AtLeast(cfg.RemediationSeverityThreshold) {
		return nil
	}

	c.mu.RLock()
	handler, ok := c.handlers[res.CheckName]
	capped := c.attempts[res.CheckName] >= cfg.MaxRemediationAttempts
	c.mu.RUnlock()
	if !ok || capped {
		return nil
	}

	// The handler runs unlocked so it may call back into the coordinator.
	if !handler.CanRemediate(res) {
		return nil
	}

	c.mu.Lock()
	if c.attempts[res.CheckName] >= cfg.MaxRemediationAttempts {
		c.mu.Unlock()
		return nil
	}
	c.attempts[res.CheckName]++
	number := c.attempts[res.CheckName]
	c.mu.Unlock()

	if cfg.RemediationDelay > 0 {
		if !sleep(ctx, cfg.RemediationDelay) {
			return nil
		}
	}

	attempt := &Attempt{
		CheckName:     res.CheckName,
		Number:        number,
		CorrelationID: res.CorrelationID,
		Timestamp:     time.Now().UTC(),
	}
	attempt.Outcome = handler.Remediate(ctx, res)

	if cfg.VerifyAfterRemediation {
		if sleep(ctx, cfg.RemediationVerificationDelay) {
			verification, _ := c.retrier.Execute(ctx, check, cfg, time.Now().UTC())
			verification.CorrelationID = res.CorrelationID
			attempt.Verification = &verification
		}
	}
	return attempt
}

// sleep waits for d or until the context is cancelled. Returns false on
// cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
