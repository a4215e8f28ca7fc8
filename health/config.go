package health

import (
	"fmt"
	"time"
)

// RetryStrategy defines how delays grow between retry attempts.
type RetryStrategy int

const (
	// RetryFixed uses the same delay for every retry.
	RetryFixed RetryStrategy = iota
	// RetryLinear grows the delay linearly with the attempt number.
	RetryLinear
	// RetryExponential doubles the delay each attempt, capped at MaxRetryDelay.
	RetryExponential
)

// String returns the string representation of the strategy.
func (s RetryStrategy) String() string {
	switch s {
	case RetryFixed:
		return "fixed"
	case RetryLinear:
		return "linear"
	case RetryExponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// ParseRetryStrategy parses a string strategy.
func ParseRetryStrategy(s string) (RetryStrategy, error) {
	switch s {
	case "fixed":
		return RetryFixed, nil
	case "linear":
		return RetryLinear, nil
	case "exponential":
		return RetryExponential, nil
	default:
		return RetryFixed, fmt.Errorf("health: unknown retry strategy %q", s)
	}
}

// Config is the per-check policy bundle. A registration takes an immutable
// snapshot of it; changing a Config value after registration has no effect
// on the registered check.
type Config struct {
	// Interval is how often the scheduler executes the check.
	// Default: 30 seconds.
	Interval time.Duration

	// Timeout bounds every execution attempt, including retries and
	// remediation verification. Default: 10 seconds.
	Timeout time.Duration

	// InitialDelay postpones the first scheduled execution after
	// registration.
	InitialDelay time.Duration

	// Priority orders execution within a cycle; higher runs first.
	Priority int

	// AllowParallel permits the check to run concurrently with other
	// parallel-allowed checks. Checks with it false run strictly
	// sequentially relative to each other.
	AllowParallel bool

	// EnableRetry turns on retry for failed attempts.
	EnableRetry bool

	// MaxRetryAttempts is the number of retries after the initial
	// attempt. Default: 3 when retry is enabled.
	MaxRetryAttempts int

	// RetryDelay is the base delay between attempts. Default: 1 second.
	RetryDelay time.Duration

	// MaxRetryDelay caps the computed delay. Default: 30 seconds.
	MaxRetryDelay time.Duration

	// RetryStrategy selects how delays grow between attempts.
	RetryStrategy RetryStrategy

	// RetryJitter randomizes each delay by a uniform factor in
	// [0.5, 1.5) to avoid synchronized retry storms across checks.
	RetryJitter bool

	// RetryOnDegraded counts Degraded results as failed attempts.
	RetryOnDegraded bool

	// EnableAlerting turns on alert evaluation for this check.
	EnableAlerting bool

	// AlertSeverityThreshold is the minimum severity that counts toward
	// the consecutive-failure counter. Default: StatusUnhealthy.
	AlertSeverityThreshold Status

	// AlertFailureThreshold is the number of consecutive qualifying
	// failures that triggers an alert. Default: 3.
	AlertFailureThreshold int

	// AlertEvaluationWindow bounds how long consecutive failures
	// accumulate; failures outside the window start a fresh count.
	// Default: 5 minutes.
	AlertEvaluationWindow time.Duration

	// SuppressDuplicateAlerts suppresses repeat alerts raised within
	// AlertCooldownPeriod of the previous one.
	SuppressDuplicateAlerts bool

	// AlertCooldownPeriod is the duplicate-suppression window.
	// Default: 5 minutes.
	AlertCooldownPeriod time.Duration

	// EnableAlertEscalation raises a second, higher-urgency alert when
	// an episode persists past AlertEscalationDelay.
	EnableAlertEscalation bool

	// AlertEscalationDelay is how long an unresolved alert may stand
	// before escalation. Default: 15 minutes.
	AlertEscalationDelay time.Duration

	// EnableRemediation turns on automated remediation.
	EnableRemediation bool

	// RemediationSeverityThreshold is the minimum severity that
	// qualifies a result for remediation. Default: StatusUnhealthy.
	RemediationSeverityThreshold Status

	// MaxRemediationAttempts caps remediation tries per failure episode.
	// Default: 1 when remediation is enabled.
	MaxRemediationAttempts int

	// RemediationDelay is waited before invoking the handler.
	RemediationDelay time.Duration

	// VerifyAfterRemediation re-executes the check after remediation to
	// confirm recovery.
	VerifyAfterRemediation bool

	// RemediationVerificationDelay is waited between remediation and the
	// verification execution. Default: 5 seconds.
	RemediationVerificationDelay time.Duration

	// DependsOn lists names of checks that must be healthy before this
	// one executes.
	DependsOn []string

	// SkipOnUnhealthyDependencies skips execution when a dependency's
	// latest result is Degraded or Unhealthy. A skip is a normal
	// outcome, not a failure.
	SkipOnUnhealthyDependencies bool

	// Environments restricts the check to the named environments. Empty
	// means all environments.
	Environments []string

	// HistoryRetentionCount caps the number of retained results.
	// Default: 100.
	HistoryRetentionCount int

	// HistoryRetentionPeriod evicts results older than this age.
	// Zero means no age-based eviction.
	HistoryRetentionPeriod time.Duration

	// Properties carries custom key/value policy extensions the engine
	// passes through untouched.
	Properties map[string]string
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{}.Normalize()
}

// Normalize returns a copy of the config with defaults applied to unset
// fields.
func (c Config) Normalize() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.EnableRetry {
		if c.MaxRetryAttempts <= 0 {
			c.MaxRetryAttempts = 3
		}
		if c.RetryDelay <= 0 {
			c.RetryDelay = time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.EnableAlerting {
		// A healthy threshold would treat every result as a failure.
		if c.AlertSeverityThreshold == StatusHealthy {
			c.AlertSeverityThreshold = StatusUnhealthy
		}
		if c.AlertFailureThreshold <= 0 {
			c.AlertFailureThreshold = 3
		}
		if c.AlertEvaluationWindow <= 0 {
			c.AlertEvaluationWindow = 5 * time.Minute
		}
		if c.AlertCooldownPeriod <= 0 {
			c.AlertCooldownPeriod = 5 * time.Minute
		}
		if c.EnableAlertEscalation && c.AlertEscalationDelay <= 0 {
			c.AlertEscalationDelay = 15 * time.Minute
		}
	}
	if c.EnableRemediation {
		if c.RemediationSeverityThreshold == StatusHealthy {
			c.RemediationSeverityThreshold = StatusUnhealthy
		}
		if c.MaxRemediationAttempts <= 0 {
			c.MaxRemediationAttempts = 1
		}
		if c.VerifyAfterRemediation && c.RemediationVerificationDelay <= 0 {
			c.RemediationVerificationDelay = 5 * time.Second
		}
	}
	if c.HistoryRetentionCount <= 0 {
		c.HistoryRetentionCount = 100
	}
	return c
}

// Validate checks the config for invalid policy values. Validation happens
// at registration time; a config that passes here never fails at runtime.
func (c Config) Validate() error {
	for field, d := range map[string]time.Duration{
		"interval":                       c.Interval,
		"timeout":                        c.Timeout,
		"initial_delay":                  c.InitialDelay,
		"retry_delay":                    c.RetryDelay,
		"max_retry_delay":                c.MaxRetryDelay,
		"alert_evaluation_window":        c.AlertEvaluationWindow,
		"alert_cooldown_period":          c.AlertCooldownPeriod,
		"alert_escalation_delay":         c.AlertEscalationDelay,
		"remediation_delay":              c.RemediationDelay,
		"remediation_verification_delay": c.RemediationVerificationDelay,
		"history_retention_period":       c.HistoryRetentionPeriod,
	} {
		if d < 0 {
			return &ConfigError{Field: field, Reason: "duration must not be negative"}
		}
	}
	if c.Interval == 0 {
		return &ConfigError{Field: "interval", Reason: "must be positive"}
	}
	if c.Timeout == 0 {
		return &ConfigError{Field: "timeout", Reason: "must be positive"}
	}
	if c.EnableRetry && c.MaxRetryAttempts < 1 {
		return &ConfigError{Field: "max_retry_attempts", Reason: "must be at least 1 when retry is enabled"}
	}
	if c.EnableRetry && c.MaxRetryDelay < c.RetryDelay {
		return &ConfigError{Field: "max_retry_delay", Reason: "must not be less than retry_delay"}
	}
	if c.EnableAlerting {
		if c.AlertFailureThreshold < 1 {
			return &ConfigError{Field: "alert_failure_threshold", Reason: "must be at least 1 when alerting is enabled"}
		}
		if c.AlertSeverityThreshold < StatusHealthy || c.AlertSeverityThreshold > StatusUnhealthy {
			return &ConfigError{Field: "alert_severity_threshold", Reason: "unknown status"}
		}
	}
	if c.EnableRemediation {
		if c.MaxRemediationAttempts < 1 {
			return &ConfigError{Field: "max_remediation_attempts", Reason: "must be at least 1 when remediation is enabled"}
		}
		if c.RemediationSeverityThreshold < StatusHealthy || c.RemediationSeverityThreshold > StatusUnhealthy {
			return &ConfigError{Field: "remediation_severity_threshold", Reason: "unknown status"}
		}
	}
	if c.RetryStrategy < RetryFixed || c.RetryStrategy > RetryExponential {
		return &ConfigError{Field: "retry_strategy", Reason: "unknown strategy"}
	}
	for _, dep := range c.DependsOn {
		if dep == "" {
			return &ConfigError{Field: "depends_on", Reason: "dependency name must not be empty"}
		}
	}
	return nil
}
