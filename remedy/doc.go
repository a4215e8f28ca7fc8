// Package remedy invokes registered remediation handlers in response to
// qualifying unhealthy results, bounded by a per-episode attempt cap, and
// optionally re-executes the check after a delay to verify the fix.
package remedy
