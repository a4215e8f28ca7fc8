package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/healthops/health"
)

// Metrics records engine events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one completed check execution.
	RecordExecution(ctx context.Context, name, category string, status health.Status, duration time.Duration, attempts int)

	// RecordSkip records a dependency-gated skip.
	RecordSkip(ctx context.Context, name string)

	// RecordAlert records a raised or escalated alert.
	RecordAlert(ctx context.Context, name string, escalated bool)

	// RecordRemediation records one remediation attempt.
	RecordRemediation(ctx context.Context, name string, succeeded bool)

	// RecordCycle records one scheduler cycle.
	RecordCycle(ctx context.Context, duration time.Duration, checks int)

	// RecordEventDropped records an event dropped by a full subscriber
	// buffer.
	RecordEventDropped(ctx context.Context)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	execTotal    metric.Int64Counter
	execFailures metric.Int64Counter
	execSkips    metric.Int64Counter
	execAttempts metric.Int64Counter
	durationHist metric.Float64Histogram
	alertTotal   metric.Int64Counter
	remedyTotal  metric.Int64Counter
	cycleHist    metric.Float64Histogram
	eventsLost   metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.execTotal, err = meter.Int64Counter(
		"healthcheck.exec.total",
		metric.WithDescription("Total number of check executions"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return nil, err
	}

	if m.execFailures, err = meter.Int64Counter(
		"healthcheck.exec.failures",
		metric.WithDescription("Check executions that ended unhealthy"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return nil, err
	}

	if m.execSkips, err = meter.Int64Counter(
		"healthcheck.exec.skips",
		metric.WithDescription("Check executions skipped by dependency gating"),
		metric.WithUnit("{skip}"),
	); err != nil {
		return nil, err
	}

	if m.execAttempts, err = meter.Int64Counter(
		"healthcheck.exec.attempts",
		metric.WithDescription("Execution attempts consumed, including retries"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	if m.durationHist, err = meter.Float64Histogram(
		"healthcheck.exec.duration_ms",
		metric.WithDescription("Check execution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.alertTotal, err = meter.Int64Counter(
		"healthcheck.alerts.total",
		metric.WithDescription("Alerts raised, including escalations"),
		metric.WithUnit("{alert}"),
	); err != nil {
		return nil, err
	}

	if m.remedyTotal, err = meter.Int64Counter(
		"healthcheck.remediations.total",
		metric.WithDescription("Remediation attempts"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	if m.cycleHist, err = meter.Float64Histogram(
		"healthcheck.cycle.duration_ms",
		metric.WithDescription("Scheduler cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.eventsLost, err = meter.Int64Counter(
		"healthcheck.events.dropped",
		metric.WithDescription("Events dropped on full subscriber buffers"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, name, category string, status health.Status, duration time.Duration, attempts int) {
	attrs := []attribute.KeyValue{
		attribute.String("check.name", name),
		attribute.String("check.status", status.String()),
	}
	if category != "" {
		attrs = append(attrs, attribute.String("check.category", category))
	}
	opt := metric.WithAttributes(attrs...)

	m.execTotal.Add(ctx, 1, opt)
	m.execAttempts.Add(ctx, int64(attempts), opt)
	if status == health.StatusUnhealthy {
		m.execFailures.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordSkip(ctx context.Context, name string) {
	m.execSkips.Add(ctx, 1, metric.WithAttributes(attribute.String("check.name", name)))
}

func (m *metricsImpl) RecordAlert(ctx context.Context, name string, escalated bool) {
	m.alertTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check.name", name),
		attribute.Bool("escalated", escalated),
	))
}

func (m *metricsImpl) RecordRemediation(ctx context.Context, name string, succeeded bool) {
	m.remedyTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check.name", name),
		attribute.Bool("succeeded", succeeded),
	))
}

func (m *metricsImpl) RecordCycle(ctx context.Context, duration time.Duration, checks int) {
	m.cycleHist.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.Int("checks", checks)))
}

func (m *metricsImpl) RecordEventDropped(ctx context.Context) {
	m.eventsLost.Add(ctx, 1)
}

// NopMetrics returns a Metrics implementation that does nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordExecution(context.Context, string, string, health.Status, time.Duration, int) {
}
func (nopMetrics) RecordSkip(context.Context, string)              {}
func (nopMetrics) RecordAlert(context.Context, string, bool)       {}
func (nopMetrics) RecordRemediation(context.Context, string, bool) {}
func (nopMetrics) RecordCycle(context.Context, time.Duration, int) {}
func (nopMetrics) RecordEventDropped(context.Context)              {}
