package health

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_NormalizeDefaults(t *testing.T) {
	cfg := Config{EnableRetry: true, EnableAlerting: true}.Normalize()

	if cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Interval)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.MaxRetryAttempts != 3 {
		t.Errorf("MaxRetryAttempts = %d, want 3", cfg.MaxRetryAttempts)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", cfg.RetryDelay)
	}
	if cfg.AlertFailureThreshold != 3 {
		t.Errorf("AlertFailureThreshold = %d, want 3", cfg.AlertFailureThreshold)
	}
	if cfg.AlertSeverityThreshold != StatusUnhealthy {
		t.Errorf("AlertSeverityThreshold = %v, want unhealthy", cfg.AlertSeverityThreshold)
	}
	if cfg.HistoryRetentionCount != 100 {
		t.Errorf("HistoryRetentionCount = %d, want 100", cfg.HistoryRetentionCount)
	}
}

func TestConfig_ValidateRejectsNegativeDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelay = -time.Second

	err := cfg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() error = %v, want ConfigError", err)
	}
	if cfgErr.Field != "retry_delay" {
		t.Errorf("Field = %q, want retry_delay", cfgErr.Field)
	}
}

func TestConfig_ValidateRetryAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRetry = true
	cfg.MaxRetryAttempts = 0
	cfg.RetryDelay = time.Second
	cfg.MaxRetryDelay = time.Minute

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero retry attempts with retry enabled")
	}
}

func TestConfig_ValidateMaxDelayBelowBase(t *testing.T) {
	cfg := Config{
		EnableRetry:   true,
		RetryDelay:    10 * time.Second,
		MaxRetryDelay: time.Second,
	}.Normalize()

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max_retry_delay < retry_delay")
	}
}

func TestConfig_MapRoundTrip(t *testing.T) {
	cfg := Config{
		Interval:                    time.Minute,
		Timeout:                     5 * time.Second,
		Priority:                    7,
		AllowParallel:               true,
		EnableRetry:                 true,
		MaxRetryAttempts:            2,
		RetryDelay:                  100 * time.Millisecond,
		MaxRetryDelay:               time.Second,
		RetryStrategy:               RetryExponential,
		RetryJitter:                 true,
		EnableAlerting:              true,
		AlertSeverityThreshold:      StatusDegraded,
		AlertFailureThreshold:       4,
		AlertEvaluationWindow:       time.Minute,
		SuppressDuplicateAlerts:     true,
		AlertCooldownPeriod:         2 * time.Minute,
		DependsOn:                   []string{"db", "cache"},
		SkipOnUnhealthyDependencies: true,
		Environments:                []string{"prod"},
		HistoryRetentionCount:       50,
		Properties:                  map[string]string{"team": "infra"},
	}.Normalize()

	got, err := ConfigFromMap(cfg.ToMap())
	if err != nil {
		t.Fatalf("ConfigFromMap() error = %v", err)
	}
	got = got.Normalize()

	if got.RetryStrategy != RetryExponential {
		t.Errorf("RetryStrategy = %v, want exponential", got.RetryStrategy)
	}
	if got.AlertSeverityThreshold != StatusDegraded {
		t.Errorf("AlertSeverityThreshold = %v, want degraded", got.AlertSeverityThreshold)
	}
	if len(got.DependsOn) != 2 || got.DependsOn[0] != "db" || got.DependsOn[1] != "cache" {
		t.Errorf("DependsOn = %v, want [db cache]", got.DependsOn)
	}
	if got.Properties["team"] != "infra" {
		t.Errorf("Properties = %v, want team=infra", got.Properties)
	}
	if got.Priority != 7 || !got.AllowParallel || got.AlertFailureThreshold != 4 {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestConfigFromMap_UnknownKey(t *testing.T) {
	if _, err := ConfigFromMap(map[string]string{"bogus": "1"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestConfigFromMap_BadValue(t *testing.T) {
	if _, err := ConfigFromMap(map[string]string{"interval": "not-a-duration"}); err == nil {
		t.Error("expected error for malformed duration")
	}
}
