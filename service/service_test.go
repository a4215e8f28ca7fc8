package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/healthops/alert"
	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/remedy"
)

func newCheck(name, category string, status *health.Status) health.Check {
	return health.NewCheckFunc(name, category, func(ctx context.Context, at time.Time) health.Result {
		switch *status {
		case health.StatusHealthy:
			return health.Healthy(name, "ok")
		case health.StatusDegraded:
			return health.Degraded(name, "slow")
		default:
			return health.Unhealthy(name, "down", nil)
		}
	})
}

func initialized(t *testing.T, cfg Config) *Service {
	t.Helper()
	s := New(cfg)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return s
}

// waitFor drains the channel until an event of the wanted type arrives.
func waitFor(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func TestService_LifecyclePreconditions(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})

	if err := s.Start(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start() before Initialize error = %v, want ErrNotInitialized", err)
	}
	if _, err := s.ExecuteCheck(ctx, "db"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ExecuteCheck() before Initialize error = %v, want ErrNotInitialized", err)
	}
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := s.Initialize(ctx); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
	if err := s.Stop(ctx, true); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() while initialized error = %v, want ErrNotRunning", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Errorf("State() = %v, want running", got)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start() while running error = %v, want ErrAlreadyRunning", err)
	}

	if err := s.Stop(ctx, true); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("State() = %v, want stopped", got)
	}

	// Stopped permits a fresh Start.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() after Stop error = %v", err)
	}
	if err := s.Stop(ctx, true); err != nil {
		t.Fatalf("final Stop() error = %v", err)
	}
	s.Close()
}

func TestService_RegisterUnregisterRoundTrip(t *testing.T) {
	s := initialized(t, Config{})
	defer s.Close()
	status := health.StatusHealthy

	events, cancel := s.Subscribe()
	defer cancel()

	if _, err := s.Register(newCheck("db", "database", &status), health.DefaultConfig()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if ev := waitFor(t, events, EventCheckRegistered); ev.CheckName != "db" {
		t.Errorf("registered event CheckName = %q, want db", ev.CheckName)
	}
	if !s.Contains("db") {
		t.Error("Contains(db) = false after Register")
	}

	if _, err := s.ExecuteCheck(context.Background(), "db"); err != nil {
		t.Fatalf("ExecuteCheck() error = %v", err)
	}
	if _, ok := s.LatestResult("db"); !ok {
		t.Error("LatestResult() missing after execution")
	}

	if !s.Unregister("db") {
		t.Fatal("Unregister() = false, want true")
	}
	if ev := waitFor(t, events, EventCheckUnregistered); ev.CheckName != "db" {
		t.Errorf("unregistered event CheckName = %q, want db", ev.CheckName)
	}
	if s.Contains("db") {
		t.Error("Contains(db) = true after Unregister")
	}
	if _, ok := s.LatestResult("db"); ok {
		t.Error("history survived Unregister")
	}

	// The name is immediately reusable.
	if _, err := s.Register(newCheck("db", "database", &status), health.DefaultConfig()); err != nil {
		t.Errorf("re-Register() error = %v", err)
	}
}

func TestService_ExecutionEvents(t *testing.T) {
	s := initialized(t, Config{})
	defer s.Close()

	status := health.StatusHealthy
	if _, err := s.Register(newCheck("db", "database", &status), health.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	events, cancel := s.Subscribe()
	defer cancel()

	if _, err := s.ExecuteCheck(context.Background(), "db"); err != nil {
		t.Fatal(err)
	}
	ev := waitFor(t, events, EventCheckExecuted)
	if ev.Result == nil || ev.Result.Status != health.StatusHealthy {
		t.Errorf("executed event Result = %+v, want healthy result", ev.Result)
	}
	if ev.CorrelationID == "" {
		t.Error("executed event missing correlation id")
	}

	// The very first reduction is itself a transition.
	if ev := waitFor(t, events, EventOverallStatusChanged); ev.Overall != health.StatusHealthy {
		t.Errorf("overall event = %v, want healthy", ev.Overall)
	}

	status = health.StatusUnhealthy
	if _, err := s.ExecuteCheck(context.Background(), "db"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, EventCheckFailed)
	if ev := waitFor(t, events, EventOverallStatusChanged); ev.Overall != health.StatusUnhealthy {
		t.Errorf("overall event = %v, want unhealthy", ev.Overall)
	}
	if got := s.OverallStatus(); got != health.StatusUnhealthy {
		t.Errorf("OverallStatus() = %v, want unhealthy", got)
	}
}

func TestService_AlertHandlerDispatch(t *testing.T) {
	s := initialized(t, Config{})
	defer s.Close()

	status := health.StatusUnhealthy
	cfg := health.DefaultConfig()
	cfg.EnableAlerting = true
	cfg.AlertFailureThreshold = 1
	if _, err := s.Register(newCheck("db", "database", &status), cfg); err != nil {
		t.Fatal(err)
	}

	handled := make(chan alert.Alert, 1)
	err := s.RegisterAlertHandler("pager", alert.HandlerFunc(func(ctx context.Context, a alert.Alert) {
		handled <- a
	}), alert.Criteria{MinSeverity: health.StatusUnhealthy})
	if err != nil {
		t.Fatalf("RegisterAlertHandler() error = %v", err)
	}

	events, cancel := s.Subscribe()
	defer cancel()

	if _, err := s.ExecuteCheck(context.Background(), "db"); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, events, EventAlertRaised)
	if ev.Alert == nil || ev.Alert.CheckName != "db" {
		t.Errorf("alert event = %+v, want alert for db", ev.Alert)
	}
	select {
	case a := <-handled:
		if a.CheckName != "db" {
			t.Errorf("handler received alert for %q, want db", a.CheckName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert handler never invoked")
	}

	if !s.UnregisterAlertHandler("pager") {
		t.Error("UnregisterAlertHandler() = false, want true")
	}
}

func TestService_RemediationEvents(t *testing.T) {
	s := initialized(t, Config{})
	defer s.Close()

	status := health.StatusUnhealthy
	cfg := health.DefaultConfig()
	cfg.EnableRemediation = true
	cfg.VerifyAfterRemediation = true
	cfg.RemediationVerificationDelay = time.Millisecond
	if _, err := s.Register(newCheck("db", "database", &status), cfg); err != nil {
		t.Fatal(err)
	}
	err := s.RegisterRemediationHandler("db", remedy.NewHandlerFunc(nil,
		func(ctx context.Context, res health.Result) remedy.Outcome {
			status = health.StatusHealthy
			return remedy.Outcome{Succeeded: true}
		}))
	if err != nil {
		t.Fatalf("RegisterRemediationHandler() error = %v", err)
	}

	events, cancel := s.Subscribe()
	defer cancel()

	res, err := s.ExecuteCheck(context.Background(), "db")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != health.StatusHealthy {
		t.Errorf("post-remediation status = %v, want healthy", res.Status)
	}

	attempted := waitFor(t, events, EventRemediationAttempted)
	if attempted.Remediation == nil || !attempted.Remediation.Outcome.Succeeded {
		t.Errorf("remediation event = %+v, want succeeded attempt", attempted.Remediation)
	}
	verified := waitFor(t, events, EventRemediationVerified)
	if verified.Result == nil || verified.Result.Status != health.StatusHealthy {
		t.Errorf("verification event Result = %+v, want healthy", verified.Result)
	}
}

func TestService_UpdateConfig(t *testing.T) {
	s := initialized(t, Config{})
	defer s.Close()

	status := health.StatusHealthy
	if _, err := s.Register(newCheck("db", "database", &status), health.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	events, cancel := s.Subscribe()
	defer cancel()

	cfg := health.DefaultConfig()
	cfg.Priority = 5
	if err := s.UpdateConfig("db", cfg); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if ev := waitFor(t, events, EventConfigUpdated); ev.CheckName != "db" {
		t.Errorf("config event CheckName = %q, want db", ev.CheckName)
	}

	if err := s.UpdateConfig("ghost", cfg); !errors.Is(err, health.ErrCheckNotFound) {
		t.Errorf("UpdateConfig(ghost) error = %v, want ErrCheckNotFound", err)
	}
}

func TestService_Restart(t *testing.T) {
	ctx := context.Background()
	s := initialized(t, Config{TickInterval: 5 * time.Millisecond})
	defer s.Close()

	status := health.StatusHealthy
	if _, err := s.Register(newCheck("db", "database", &status), health.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	if err := s.Restart(ctx); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Restart() while stopped error = %v, want ErrNotRunning", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Restart(ctx); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Errorf("State() after Restart = %v, want running", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.LatestResult("db"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler never ran the check after Restart")
		}
		time.Sleep(time.Millisecond)
	}
	if err := s.Stop(ctx, true); err != nil {
		t.Fatal(err)
	}
}

func TestService_RunAll(t *testing.T) {
	s := initialized(t, Config{})
	defer s.Close()

	healthyStatus := health.StatusHealthy
	degradedStatus := health.StatusDegraded
	if _, err := s.Register(newCheck("a", "x", &healthyStatus), health.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register(newCheck("b", "x", &degradedStatus), health.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	results, err := s.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	// Registration order.
	if results[0].CheckName != "a" || results[1].CheckName != "b" {
		t.Errorf("result order = [%s %s], want [a b]", results[0].CheckName, results[1].CheckName)
	}
}
