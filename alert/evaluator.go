package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/healthops/health"
)

// Alert is an immutable record of one raised alert.
type Alert struct {
	// ID uniquely identifies the alert event.
	ID string

	// CheckName is the check the alert concerns.
	CheckName string

	// Category is the check's category.
	Category string

	// Severity is the status of the result that triggered the alert.
	Severity health.Status

	// Result is the triggering result.
	Result health.Result

	// ConsecutiveFailures is the counter value when the alert fired.
	ConsecutiveFailures int

	// RaisedAt is when the alert was raised.
	RaisedAt time.Time

	// Escalated marks the secondary, higher-urgency alert raised when an
	// episode persists past the escalation delay.
	Escalated bool

	// CorrelationID carries the triggering result's correlation id.
	CorrelationID string
}

// Decision is the outcome of evaluating one result.
type Decision struct {
	// Alert is the raised alert, nil when none fired.
	Alert *Alert

	// Escalation is the escalation alert, nil when none fired. It is
	// distinct from Alert and does not reset the original cooldown.
	Escalation *Alert

	// Suppressed reports that a qualifying alert was withheld by the
	// cooldown window.
	Suppressed bool
}

// episode tracks one check's failure state. An episode is a continuous span
// of qualifying failures bounded by healthy results.
type episode struct {
	consecutiveFailures int
	windowStart         time.Time
	lastAlertAt         time.Time
	alertOpenSince      time.Time
	escalated           bool
}

// Evaluator consumes per-check result streams and decides whether to emit,
// suppress, or escalate alerts. Safe for concurrent use.
type Evaluator struct {
	mu       sync.Mutex
	episodes map[string]*episode
	now      func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock overrides the evaluator's time source. Used in tests.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.now = now
	}
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		episodes: make(map[string]*episode),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate feeds one result through the check's alerting policy. Skipped
// results leave the episode untouched. A result below the severity
// threshold closes the episode: the failure counter resets to zero and any
// pending escalation timer is cleared; there is no partial recovery.
func (e *Evaluator) Evaluate(cfg health.Config, res health.Result) Decision {
	if !cfg.EnableAlerting || res.Skipped {
		return Decision{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	ep := e.episodes[res.CheckName]
	if ep == nil {
		ep = &episode{}
		e.episodes[res.CheckName] = ep
	}

	if !res.Status.AtLeast(cfg.AlertSeverityThreshold) {
		// Closing the episode clears the failure count and escalation
		// timer but keeps the cooldown memory: a new episode raised
		// inside AlertCooldownPeriod is still a duplicate.
		*ep = episode{lastAlertAt: ep.lastAlertAt}
		return Decision{}
	}

	// Stale failures outside the evaluation window start a fresh count.
	if ep.consecutiveFailures == 0 || now.Sub(ep.windowStart) > cfg.AlertEvaluationWindow {
		ep.windowStart = now
		ep.consecutiveFailures = 1
	} else {
		ep.consecutiveFailures++
	}

	var decision Decision
	if ep.consecutiveFailures >= cfg.AlertFailureThreshold {
		if cfg.SuppressDuplicateAlerts && !ep.lastAlertAt.IsZero() && now.Sub(ep.lastAlertAt) < cfg.AlertCooldownPeriod {
			decision.Suppressed = true
		} else {
			decision.Alert = e.newAlert(res, ep.consecutiveFailures, now, false)
			ep.lastAlertAt = now
			if ep.alertOpenSince.IsZero() {
				ep.alertOpenSince = now
			}
		}
	}

	if cfg.EnableAlertEscalation && !ep.escalated && !ep.alertOpenSince.IsZero() &&
		now.Sub(ep.alertOpenSince) > cfg.AlertEscalationDelay {
		decision.Escalation = e.newAlert(res, ep.consecutiveFailures, now, true)
		ep.escalated = true
	}

	return decision
}

// Reset clears any episode state for the named check, e.g. on unregister.
func (e *Evaluator) Reset(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.episodes, name)
}

// ConsecutiveFailures returns the current failure count for the named check.
func (e *Evaluator) ConsecutiveFailures(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ep := e.episodes[name]; ep != nil {
		return ep.consecutiveFailures
	}
	return 0
}

func (e *Evaluator) newAlert(res health.Result, failures int, now time.Time, escalated bool) *Alert {
	return &Alert{
		ID:                  uuid.NewString(),
		CheckName:           res.CheckName,
		Category:            res.Category,
		Severity:            res.Status,
		Result:              res,
		ConsecutiveFailures: failures,
		RaisedAt:            now,
		Escalated:           escalated,
		CorrelationID:       res.CorrelationID,
	}
}
