package retry

import (
	"context"
	"testing"
	"time"

	"github.com/jonwraymond/healthops/health"
)

func failingCheck(name string, invocations *int) health.Check {
	return health.NewCheckFunc(name, "test", func(ctx context.Context, at time.Time) health.Result {
		*invocations++
		return health.Unhealthy(name, "down", nil)
	})
}

func retryConfig(strategy health.RetryStrategy, attempts int, delay time.Duration) health.Config {
	return health.Config{
		Timeout:          time.Second,
		EnableRetry:      true,
		MaxRetryAttempts: attempts,
		RetryDelay:       delay,
		MaxRetryDelay:    time.Minute,
		RetryStrategy:    strategy,
	}.Normalize()
}

func TestExecute_NoRetryWhenDisabled(t *testing.T) {
	invocations := 0
	cfg := health.DefaultConfig()

	res, attempts := New().Execute(context.Background(), failingCheck("c", &invocations), cfg, time.Now())
	if invocations != 1 {
		t.Errorf("invocations = %d, want 1", invocations)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if res.Status != health.StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", res.Status)
	}
}

func TestExecute_RetryExhaustion(t *testing.T) {
	invocations := 0
	cfg := retryConfig(health.RetryFixed, 3, 10*time.Millisecond)

	res, attempts := New().Execute(context.Background(), failingCheck("c", &invocations), cfg, time.Now())
	if invocations != 4 {
		t.Errorf("invocations = %d, want 4 (1 initial + 3 retries)", invocations)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if res.Attempts != 4 {
		t.Errorf("result Attempts = %d, want 4", res.Attempts)
	}
}

func TestExecute_SuccessStopsRetrying(t *testing.T) {
	invocations := 0
	check := health.NewCheckFunc("c", "test", func(ctx context.Context, at time.Time) health.Result {
		invocations++
		if invocations < 3 {
			return health.Unhealthy("c", "down", nil)
		}
		return health.Healthy("c", "recovered")
	})
	cfg := retryConfig(health.RetryFixed, 5, time.Millisecond)

	res, attempts := New().Execute(context.Background(), check, cfg, time.Now())
	if invocations != 3 {
		t.Errorf("invocations = %d, want 3", invocations)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if res.Status != health.StatusHealthy {
		t.Errorf("Status = %v, want healthy", res.Status)
	}
}

func TestExecute_DegradedOnlyRetriesWhenConfigured(t *testing.T) {
	invocations := 0
	check := health.NewCheckFunc("c", "test", func(ctx context.Context, at time.Time) health.Result {
		invocations++
		return health.Degraded("c", "slow")
	})

	cfg := retryConfig(health.RetryFixed, 2, time.Millisecond)
	if _, attempts := New().Execute(context.Background(), check, cfg, time.Now()); attempts != 1 {
		t.Errorf("attempts = %d, want 1 when degraded does not count", attempts)
	}

	invocations = 0
	cfg.RetryOnDegraded = true
	if _, attempts := New().Execute(context.Background(), check, cfg, time.Now()); attempts != 3 {
		t.Errorf("attempts = %d, want 3 when degraded counts", attempts)
	}
}

func TestExecute_SharedCorrelationID(t *testing.T) {
	var ids []string
	check := health.NewCheckFunc("c", "test", func(ctx context.Context, at time.Time) health.Result {
		return health.Unhealthy("c", "down", nil)
	})
	cfg := retryConfig(health.RetryFixed, 2, time.Millisecond)

	c := New(WithOnRetry(func(attempt int, res health.Result, delay time.Duration) {
		ids = append(ids, res.CorrelationID)
	}))
	final, _ := c.Execute(context.Background(), check, cfg, time.Now())

	for _, id := range ids {
		if id != final.CorrelationID {
			t.Errorf("correlation id %q differs from final %q", id, final.CorrelationID)
		}
	}
	if final.CorrelationID == "" {
		t.Error("final result missing correlation id")
	}
}

func TestExecute_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	invocations := 0
	check := health.NewCheckFunc("c", "test", func(c context.Context, at time.Time) health.Result {
		invocations++
		cancel()
		return health.Unhealthy("c", "down", nil)
	})
	cfg := retryConfig(health.RetryFixed, 3, time.Minute)

	res, attempts := New().Execute(ctx, check, cfg, time.Now())
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !res.Cancelled {
		t.Error("result should be tagged cancelled")
	}
	if res.Status != health.StatusUnhealthy {
		t.Errorf("Status = %v, want last obtained result", res.Status)
	}
}

func TestDelay_Strategies(t *testing.T) {
	base := 100 * time.Millisecond

	fixed := health.Config{RetryStrategy: health.RetryFixed, RetryDelay: base, MaxRetryDelay: time.Minute}
	for attempt := 1; attempt <= 4; attempt++ {
		if got := Delay(fixed, attempt); got != base {
			t.Errorf("fixed Delay(%d) = %v, want %v", attempt, got, base)
		}
	}

	linear := health.Config{RetryStrategy: health.RetryLinear, RetryDelay: base, MaxRetryDelay: time.Minute}
	if got := Delay(linear, 3); got != 3*base {
		t.Errorf("linear Delay(3) = %v, want %v", got, 3*base)
	}
}

func TestDelay_ExponentialMonotonicAndCapped(t *testing.T) {
	cfg := health.Config{
		RetryStrategy: health.RetryExponential,
		RetryDelay:    100 * time.Millisecond,
		MaxRetryDelay: time.Second,
	}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		got := Delay(cfg, attempt)
		if got < prev {
			t.Errorf("Delay(%d) = %v decreased from %v", attempt, got, prev)
		}
		if got > cfg.MaxRetryDelay {
			t.Errorf("Delay(%d) = %v exceeds cap %v", attempt, got, cfg.MaxRetryDelay)
		}
		prev = got
	}

	// d * 2^(n-1) below the cap.
	if got := Delay(cfg, 3); got != 400*time.Millisecond {
		t.Errorf("Delay(3) = %v, want 400ms", got)
	}
	if got := Delay(cfg, 8); got != time.Second {
		t.Errorf("Delay(8) = %v, want capped at 1s", got)
	}
}

func TestJitter_Bounds(t *testing.T) {
	cfg := retryConfig(health.RetryFixed, 1, 100*time.Millisecond)
	cfg.RetryJitter = true

	for _, f := range []float64{0, 0.5, 0.999} {
		c := New(WithJitterSource(func() float64 { return f }))
		got := c.delayFor(cfg, 1)
		lo := 50 * time.Millisecond
		hi := 150 * time.Millisecond
		if got < lo || got > hi {
			t.Errorf("jittered delay = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}
