package health

import (
	"context"
	"testing"
	"time"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusHealthy, StatusDegraded, StatusUnhealthy} {
		got, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q) error = %v", s.String(), err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}

	if _, err := ParseStatus("bogus"); err == nil {
		t.Error("ParseStatus(bogus) expected error")
	}
}

func TestWorstOf(t *testing.T) {
	if got := WorstOf(); got != StatusHealthy {
		t.Errorf("WorstOf() = %v, want healthy", got)
	}
	if got := WorstOf(StatusHealthy, StatusDegraded, StatusHealthy); got != StatusDegraded {
		t.Errorf("WorstOf(H,D,H) = %v, want degraded", got)
	}
	if got := WorstOf(StatusHealthy, StatusDegraded, StatusUnhealthy); got != StatusUnhealthy {
		t.Errorf("WorstOf(H,D,U) = %v, want unhealthy", got)
	}
}

func TestCheckFunc(t *testing.T) {
	check := NewCheckFunc("db", "storage", func(ctx context.Context, at time.Time) Result {
		return Healthy("db", "ok")
	})

	if check.Name() != "db" {
		t.Errorf("Name() = %q, want db", check.Name())
	}
	if check.Category() != "storage" {
		t.Errorf("Category() = %q, want storage", check.Category())
	}

	res := check.Execute(context.Background(), time.Now())
	if res.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", res.Status)
	}
}

func TestResult_Failed(t *testing.T) {
	if !Unhealthy("c", "down", nil).Failed(false) {
		t.Error("unhealthy result should fail")
	}
	if Degraded("c", "slow").Failed(false) {
		t.Error("degraded result should not fail when degraded does not count")
	}
	if !Degraded("c", "slow").Failed(true) {
		t.Error("degraded result should fail when degraded counts")
	}
	if Healthy("c", "ok").Failed(true) {
		t.Error("healthy result should never fail")
	}
	skipped := Skipped("c", "dep down")
	if skipped.Failed(true) {
		t.Error("skipped result should never fail")
	}
}

func TestResult_Immutability(t *testing.T) {
	base := Healthy("c", "ok")
	modified := base.WithCategory("infra").WithSource("node-1")

	if base.Category != "" || base.Source != "" {
		t.Error("With* helpers must not mutate the receiver")
	}
	if modified.Category != "infra" || modified.Source != "node-1" {
		t.Errorf("modified = %+v, want infra/node-1", modified)
	}
	if base.CorrelationID == "" {
		t.Error("results must carry a correlation id")
	}
}
