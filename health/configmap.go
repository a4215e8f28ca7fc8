package health

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToMap renders the config as a flat, enumerable key/value form so external
// configuration loaders can persist or transport policy without
// engine-specific code. Custom properties appear under a "property." prefix.
func (c Config) ToMap() map[string]string {
	m := map[string]string{
		"interval":                        c.Interval.String(),
		"timeout":                         c.Timeout.String(),
		"initial_delay":                   c.InitialDelay.String(),
		"priority":                        strconv.Itoa(c.Priority),
		"allow_parallel":                  strconv.FormatBool(c.AllowParallel),
		"enable_retry":                    strconv.FormatBool(c.EnableRetry),
		"max_retry_attempts":              strconv.Itoa(c.MaxRetryAttempts),
		"retry_delay":                     c.RetryDelay.String(),
		"max_retry_delay":                 c.MaxRetryDelay.String(),
		"retry_strategy":                  c.RetryStrategy.String(),
		"retry_jitter":                    strconv.FormatBool(c.RetryJitter),
		"retry_on_degraded":               strconv.FormatBool(c.RetryOnDegraded),
		"enable_alerting":                 strconv.FormatBool(c.EnableAlerting),
		"alert_severity_threshold":        c.AlertSeverityThreshold.String(),
		"alert_failure_threshold":         strconv.Itoa(c.AlertFailureThreshold),
		"alert_evaluation_window":         c.AlertEvaluationWindow.String(),
		"suppress_duplicate_alerts":       strconv.FormatBool(c.SuppressDuplicateAlerts),
		"alert_cooldown_period":           c.AlertCooldownPeriod.String(),
		"enable_alert_escalation":         strconv.FormatBool(c.EnableAlertEscalation),
		"alert_escalation_delay":          c.AlertEscalationDelay.String(),
		"enable_remediation":              strconv.FormatBool(c.EnableRemediation),
		"remediation_severity_threshold":  c.RemediationSeverityThreshold.String(),
		"max_remediation_attempts":        strconv.Itoa(c.MaxRemediationAttempts),
		"remediation_delay":               c.RemediationDelay.String(),
		"verify_after_remediation":        strconv.FormatBool(c.VerifyAfterRemediation),
		"remediation_verification_delay":  c.RemediationVerificationDelay.String(),
		"skip_on_unhealthy_dependencies":  strconv.FormatBool(c.SkipOnUnhealthyDependencies),
		"history_retention_count":         strconv.Itoa(c.HistoryRetentionCount),
		"history_retention_period":        c.HistoryRetentionPeriod.String(),
	}
	if len(c.DependsOn) > 0 {
		m["depends_on"] = strings.Join(c.DependsOn, ",")
	}
	if len(c.Environments) > 0 {
		m["environments"] = strings.Join(c.Environments, ",")
	}
	for k, v := range c.Properties {
		m["property."+k] = v
	}
	return m
}

// ConfigFromMap rebuilds a Config from the form produced by ToMap. Unknown
// keys without the property prefix are rejected; missing keys keep their
// zero value, so callers should Normalize the returned config.
func ConfigFromMap(m map[string]string) (Config, error) {
	var c Config
	for key, value := range m {
		if prop, ok := strings.CutPrefix(key, "property."); ok {
			if c.Properties == nil {
				c.Properties = make(map[string]string)
			}
			c.Properties[prop] = value
			continue
		}
		if err := c.setField(key, value); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

func (c *Config) setField(key, value string) error {
	var err error
	switch key {
	case "interval":
		c.Interval, err = time.ParseDuration(value)
	case "timeout":
		c.Timeout, err = time.ParseDuration(value)
	case "initial_delay":
		c.InitialDelay, err = time.ParseDuration(value)
	case "priority":
		c.Priority, err = strconv.Atoi(value)
	case "allow_parallel":
		c.AllowParallel, err = strconv.ParseBool(value)
	case "enable_retry":
		c.EnableRetry, err = strconv.ParseBool(value)
	case "max_retry_attempts":
		c.MaxRetryAttempts, err = strconv.Atoi(value)
	case "retry_delay":
		c.RetryDelay, err = time.ParseDuration(value)
	case "max_retry_delay":
		c.MaxRetryDelay, err = time.ParseDuration(value)
	case "retry_strategy":
		c.RetryStrategy, err = ParseRetryStrategy(value)
	case "retry_jitter":
		c.RetryJitter, err = strconv.ParseBool(value)
	case "retry_on_degraded":
		c.RetryOnDegraded, err = strconv.ParseBool(value)
	case "enable_alerting":
		c.EnableAlerting, err = strconv.ParseBool(value)
	case "alert_severity_threshold":
		c.AlertSeverityThreshold, err = ParseStatus(value)
	case "alert_failure_threshold":
		c.AlertFailureThreshold, err = strconv.Atoi(value)
	case "alert_evaluation_window":
		c.AlertEvaluationWindow, err = time.ParseDuration(value)
	case "suppress_duplicate_alerts":
		c.SuppressDuplicateAlerts, err = strconv.ParseBool(value)
	case "alert_cooldown_period":
		c.AlertCooldownPeriod, err = time.ParseDuration(value)
	case "enable_alert_escalation":
		c.EnableAlertEscalation, err = strconv.ParseBool(value)
	case "alert_escalation_delay":
		c.AlertEscalationDelay, err = time.ParseDuration(value)
	case "enable_remediation":
		c.EnableRemediation, err = strconv.ParseBool(value)
	case "remediation_severity_threshold":
		c.RemediationSeverityThreshold, err = ParseStatus(value)
	case "max_remediation_attempts":
		c.MaxRemediationAttempts, err = strconv.Atoi(value)
	case "remediation_delay":
		c.RemediationDelay, err = time.ParseDuration(value)
	case "verify_after_remediation":
		c.VerifyAfterRemediation, err = strconv.ParseBool(value)
	case "remediation_verification_delay":
		c.RemediationVerificationDelay, err = time.ParseDuration(value)
	case "depends_on":
		c.DependsOn = splitList(value)
	case "skip_on_unhealthy_dependencies":
		c.SkipOnUnhealthyDependencies, err = strconv.ParseBool(value)
	case "environments":
		c.Environments = splitList(value)
	case "history_retention_count":
		c.HistoryRetentionCount, err = strconv.Atoi(value)
	case "history_retention_period":
		c.HistoryRetentionPeriod, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("health: unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("health: config key %q: %w", key, err)
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
