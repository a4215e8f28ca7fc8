// Package alert evaluates streams of health-check results against per-check
// alerting policy: consecutive-failure thresholds inside a rolling window,
// duplicate suppression with a cooldown period, and escalation of episodes
// that persist past a delay. It also holds the registry of alert handlers
// the engine dispatches qualifying alerts to.
package alert
