// Package retry wraps a single health-check execution with the configured
// retry policy: fixed, linear, or exponential backoff, optional jitter, a
// delay cap, and a per-attempt timeout. All waits are cancellable.
package retry
