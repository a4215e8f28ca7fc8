package health

import (
	"context"
	"fmt"
	"time"
)

// Run executes a single check attempt bounded by the given timeout. A check
// that panics or overruns the timeout is converted into an Unhealthy result;
// a misbehaving check can never propagate a fault to the caller.
func Run(ctx context.Context, check Check, timeout time.Duration, at time.Time) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- Unhealthy(check.Name(), fmt.Sprintf("check panicked: %v", rec), ErrCheckPanic)
			}
		}()
		resultCh <- check.Execute(ctx, at)
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		result = Unhealthy(check.Name(), "check timed out after "+timeout.String(), ErrCheckTimeout)
		result.Cancelled = ctx.Err() == context.Canceled
	}

	result.CheckName = check.Name()
	if result.Category == "" {
		result.Category = check.Category()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = start.UTC()
	}
	result.Duration = time.Since(start)
	if result.Attempts == 0 {
		result.Attempts = 1
	}
	return result
}
