// Package health defines the core model for the health-check orchestration
// engine: check capabilities, execution results, per-check policy
// configuration, and the registry that owns check registrations.
//
// # Core Concepts
//
// A Check is any component that can probe one aspect of system health. The
// Status type represents the outcome: Healthy, Degraded, or Unhealthy.
// Every execution produces exactly one immutable Result.
//
// # Basic Usage
//
//	check := health.NewCheckFunc("postgres", "database",
//	    func(ctx context.Context, at time.Time) health.Result {
//	        if err := db.PingContext(ctx); err != nil {
//	            return health.Unhealthy("postgres", "ping failed", err)
//	        }
//	        return health.Healthy("postgres", "ok")
//	    })
//
//	reg := health.NewRegistry()
//	if _, err := reg.Register(check, health.DefaultConfig()); err != nil {
//	    log.Fatal(err)
//	}
//	results := reg.RunAll(ctx, time.Now())
//
// The registry applies no retry, alerting, or remediation policy; those are
// layered on top by the retry, alert, remedy, and schedule packages.
package health
