// Package schedule drives health-check execution: it computes execution
// order from priority and dependencies, gates checks on unhealthy
// dependencies, bounds parallelism, and runs each due check through the
// retry, alert, and remediation policies, recording results in per-check
// history.
//
// Per-check execution state and history are owned exclusively by the
// scheduler; callers only ever see read-only snapshots.
package schedule
