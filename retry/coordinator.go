package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/healthops/health"
)

// Coordinator executes checks under their retry policy.
type Coordinator struct {
	jitter  func() float64
	onRetry func(attempt int, res health.Result, delay time.Duration)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOnRetry registers a callback invoked before each retry attempt.
func WithOnRetry(fn func(attempt int, res health.Result, delay time.Duration)) Option {
	return func(c *Coordinator) {
		c.onRetry = fn
	}
}

// WithJitterSource overrides the jitter randomness source. Used in tests.
func WithJitterSource(fn func() float64) Option {
	return func(c *Coordinator) {
		c.jitter = fn
	}
}

// New creates a retry coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		jitter: rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the check under the config's retry policy and returns the
// last result together with the number of attempts consumed. When retry is
// disabled the check executes exactly once. Every attempt is individually
// bounded by the config's timeout; a timed-out attempt counts as a failed
// attempt. All results of one call share a correlation id.
func (c *Coordinator) Execute(ctx context.Context, check health.Check, cfg health.Config, at time.Time) (health.Result, int) {
	correlationID := uuid.NewString()

	maxAttempts := 1
	if cfg.EnableRetry {
		maxAttempts += cfg.MaxRetryAttempts
	}

	var result health.Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result = health.Run(ctx, check, cfg.Timeout, at)
		result.CorrelationID = correlationID
		result.Attempts = attempt

		if !result.Failed(cfg.RetryOnDegraded) || attempt >= maxAttempts {
			return result, attempt
		}

		delay := c.delayFor(cfg, attempt)
		if c.onRetry != nil {
			c.onRetry(attempt, result, delay)
		}

		select {
		case <-ctx.Done():
			result.Cancelled = true
			return result, attempt
		case <-time.After(delay):
		}
	}
	return result, maxAttempts
}

func (c *Coordinator) delayFor(cfg health.Config, attempt int) time.Duration {
	delay := Delay(cfg, attempt)
	if cfg.RetryJitter && delay > 0 {
		// Uniform factor in [0.5, 1.5) to desynchronize retry storms.
		delay = time.Duration(float64(delay) * (0.5 + c.jitter()))
	}
	return delay
}

// Delay computes the backoff before the retry following the given attempt
// number (1-based), without jitter. The result is capped at MaxRetryDelay.
func Delay(cfg health.Config, attempt int) time.Duration {
	var delay time.Duration
	switch cfg.RetryStrategy {
	case health.RetryFixed:
		delay = cfg.RetryDelay
	case health.RetryLinear:
		delay = cfg.RetryDelay * time.Duration(attempt)
	case health.RetryExponential:
		delay = time.Duration(float64(cfg.RetryDelay) * math.Pow(2, float64(attempt-1)))
	}
	if cfg.MaxRetryDelay > 0 && delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
