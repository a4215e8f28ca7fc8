package configfile

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/healthops/health"
)

// Duration is a custom type for handling time.Duration in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration format: %w", err)
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// String returns the string representation of Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// File is the root of the engine configuration document.
type File struct {
	Service ServiceConfig          `yaml:"service"`
	Checks  map[string]CheckConfig `yaml:"checks"`
}

// ServiceConfig holds service-level settings.
type ServiceConfig struct {
	Environment  string   `yaml:"environment"`
	TickInterval Duration `yaml:"tick_interval"`
	MaxParallel  int      `yaml:"max_parallel" validate:"min=0"`
	EventBuffer  int      `yaml:"event_buffer" validate:"min=0"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// CheckConfig is the YAML form of a per-check policy.
type CheckConfig struct {
	Interval      Duration `yaml:"interval"`
	Timeout       Duration `yaml:"timeout"`
	InitialDelay  Duration `yaml:"initial_delay"`
	Priority      int      `yaml:"priority"`
	AllowParallel bool     `yaml:"allow_parallel"`

	EnableRetry      bool     `yaml:"enable_retry"`
	MaxRetryAttempts int      `yaml:"max_retry_attempts" validate:"min=0"`
	RetryDelay       Duration `yaml:"retry_delay"`
	MaxRetryDelay    Duration `yaml:"max_retry_delay"`
	RetryStrategy    string   `yaml:"retry_strategy" validate:"omitempty,oneof=fixed linear exponential"`
	RetryJitter      bool     `yaml:"retry_jitter"`
	RetryOnDegraded  bool     `yaml:"retry_on_degraded"`

	EnableAlerting          bool     `yaml:"enable_alerting"`
	AlertSeverityThreshold  string   `yaml:"alert_severity_threshold" validate:"omitempty,oneof=healthy degraded unhealthy"`
	AlertFailureThreshold   int      `yaml:"alert_failure_threshold" validate:"min=0"`
	AlertEvaluationWindow   Duration `yaml:"alert_evaluation_window"`
	SuppressDuplicateAlerts bool     `yaml:"suppress_duplicate_alerts"`
	AlertCooldownPeriod     Duration `yaml:"alert_cooldown_period"`
	EnableAlertEscalation   bool     `yaml:"enable_alert_escalation"`
	AlertEscalationDelay    Duration `yaml:"alert_escalation_delay"`

	EnableRemediation            bool     `yaml:"enable_remediation"`
	RemediationSeverityThreshold string   `yaml:"remediation_severity_threshold" validate:"omitempty,oneof=healthy degraded unhealthy"`
	MaxRemediationAttempts       int      `yaml:"max_remediation_attempts" validate:"min=0"`
	RemediationDelay             Duration `yaml:"remediation_delay"`
	VerifyAfterRemediation       bool     `yaml:"verify_after_remediation"`
	RemediationVerificationDelay Duration `yaml:"remediation_verification_delay"`

	DependsOn                   []string `yaml:"depends_on"`
	SkipOnUnhealthyDependencies bool     `yaml:"skip_on_unhealthy_dependencies"`

	Environments []string `yaml:"environments"`

	HistoryRetentionCount  int      `yaml:"history_retention_count" validate:"min=0"`
	HistoryRetentionPeriod Duration `yaml:"history_retention_period"`

	Properties map[string]string `yaml:"properties"`
}

// ToConfig converts the YAML form into an engine policy, normalized and
// validated.
func (c CheckConfig) ToConfig() (health.Config, error) {
	cfg := health.Config{
		Interval:      time.Duration(c.Interval),
		Timeout:       time.Duration(c.Timeout),
		InitialDelay:  time.Duration(c.InitialDelay),
		Priority:      c.Priority,
		AllowParallel: c.AllowParallel,

		EnableRetry:      c.EnableRetry,
		MaxRetryAttempts: c.MaxRetryAttempts,
		RetryDelay:       time.Duration(c.RetryDelay),
		MaxRetryDelay:    time.Duration(c.MaxRetryDelay),
		RetryJitter:      c.RetryJitter,
		RetryOnDegraded:  c.RetryOnDegraded,

		EnableAlerting:          c.EnableAlerting,
		AlertFailureThreshold:   c.AlertFailureThreshold,
		AlertEvaluationWindow:   time.Duration(c.AlertEvaluationWindow),
		SuppressDuplicateAlerts: c.SuppressDuplicateAlerts,
		AlertCooldownPeriod:     time.Duration(c.AlertCooldownPeriod),
		EnableAlertEscalation:   c.EnableAlertEscalation,
		AlertEscalationDelay:    time.Duration(c.AlertEscalationDelay),

		EnableRemediation:            c.EnableRemediation,
		MaxRemediationAttempts:       c.MaxRemediationAttempts,
		RemediationDelay:             time.Duration(c.RemediationDelay),
		VerifyAfterRemediation:       c.VerifyAfterRemediation,
		RemediationVerificationDelay: time.Duration(c.RemediationVerificationDelay),

		DependsOn:                   c.DependsOn,
		SkipOnUnhealthyDependencies: c.SkipOnUnhealthyDependencies,
		Environments:                c.Environments,
		HistoryRetentionCount:       c.HistoryRetentionCount,
		HistoryRetentionPeriod:      time.Duration(c.HistoryRetentionPeriod),
		Properties:                  c.Properties,
	}

	var err error
	if c.RetryStrategy != "" {
		if cfg.RetryStrategy, err = health.ParseRetryStrategy(c.RetryStrategy); err != nil {
			return health.Config{}, err
		}
	}
	if c.AlertSeverityThreshold != "" {
		if cfg.AlertSeverityThreshold, err = health.ParseStatus(c.AlertSeverityThreshold); err != nil {
			return health.Config{}, err
		}
	}
	if c.RemediationSeverityThreshold != "" {
		if cfg.RemediationSeverityThreshold, err = health.ParseStatus(c.RemediationSeverityThreshold); err != nil {
			return health.Config{}, err
		}
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return health.Config{}, err
	}
	return cfg, nil
}

// EnvPath is the environment variable naming the configuration document.
const EnvPath = "HEALTHOPS_CONFIG"

// DefaultPath is used when EnvPath is unset.
const DefaultPath = "healthops.yaml"

// LoadFromEnv loads the configuration document named by the HEALTHOPS_CONFIG
// environment variable, falling back to healthops.yaml in the working
// directory.
func LoadFromEnv() (*File, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

// Load reads, parses, and validates the configuration document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied configuration.
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates a configuration document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&f.Service); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}
	for name, check := range f.Checks {
		if err := validate.Struct(&check); err != nil {
			return nil, fmt.Errorf("invalid config for check %q: %w", name, err)
		}
	}
	return &f, nil
}

// Configs converts every check entry into a validated engine policy.
func (f *File) Configs() (map[string]health.Config, error) {
	out := make(map[string]health.Config, len(f.Checks))
	for name, check := range f.Checks {
		cfg, err := check.ToConfig()
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}
