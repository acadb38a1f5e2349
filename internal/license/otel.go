package license

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
)

// Operation names used in spans, metrics and logs.
const (
	OpValidate     = "validate"
	OpCheckSession = "check_session"
)

// LicenseMetrics holds the authority's OpenTelemetry instruments.
type LicenseMetrics struct {
	Requests       metric.Int64Counter
	Failures       metric.Int64Counter
	Duration       metric.Float64Histogram
	Activations    metric.Int64Counter
	WriteConflicts metric.Int64Counter
}

// InitializeLicenseMetrics creates all license-specific metrics
func InitializeLicenseMetrics(meter metric.Meter) (*LicenseMetrics, error) {
	m := &LicenseMetrics{}
	var err error

	m.Requests, err = meter.Int64Counter(
		"license_requests_total",
		metric.WithDescription("License authority requests by operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	m.Failures, err = meter.Int64Counter(
		"license_failures_total",
		metric.WithDescription("Failed license authority requests by operation and error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}

	m.Duration, err = meter.Float64Histogram(
		"license_operation_duration_seconds",
		metric.WithDescription("License authority operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	m.Activations, err = meter.Int64Counter(
		"license_activations_total",
		metric.WithDescription("Licenses bound to a device for the first time"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activations counter: %w", err)
	}

	m.WriteConflicts, err = meter.Int64Counter(
		"license_write_conflicts_total",
		metric.WithDescription("Conditional record writes rejected because the record changed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create write conflicts counter: %w", err)
	}

	return m, nil
}

// traceOperation wraps one authority operation in a span and records its metrics.
func (a *Authority) traceOperation(ctx context.Context, op, key string, fn func(context.Context) error) error {
	ctx, span := a.tracer.Start(ctx, "license."+op,
		trace.WithAttributes(
			attribute.String("license.operation", op),
			attribute.String("license.key_prefix", infrastructure.MaskLicenseKey(key)),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	code := ""
	if err != nil {
		code = apierrors.Code(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("license.error_code", code))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if a.metrics != nil {
		labels := metric.WithAttributes(attribute.String("operation", op))
		a.metrics.Requests.Add(ctx, 1, labels)
		a.metrics.Duration.Record(ctx, duration.Seconds(), labels)
		if err != nil {
			a.metrics.Failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", op),
				attribute.String("error_code", code),
			))
		}
	}
	return err
}

func (a *Authority) recordActivation(ctx context.Context) {
	if a.metrics != nil {
		a.metrics.Activations.Add(ctx, 1)
	}
	trace.SpanFromContext(ctx).AddEvent("license.activated")
}

func (a *Authority) recordConflict(ctx context.Context, attempt int) {
	if a.metrics != nil {
		a.metrics.WriteConflicts.Add(ctx, 1)
	}
	trace.SpanFromContext(ctx).AddEvent("license.write_conflict",
		trace.WithAttributes(attribute.Int("attempt", attempt)))
}
