package store

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts/domain"
)

// Telemetry records a span and a latency sample for every store round trip.
type Telemetry struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	failures metric.Int64Counter
	backend  attribute.KeyValue
}

// NewTelemetry creates the store instruments.
func NewTelemetry(tracer trace.Tracer, meter metric.Meter, backend string) (*Telemetry, error) {
	duration, err := meter.Float64Histogram(
		"license_store_duration_seconds",
		metric.WithDescription("License store round-trip duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store duration histogram: %w", err)
	}
	failures, err := meter.Int64Counter(
		"license_store_failures_total",
		metric.WithDescription("License store calls that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store failure counter: %w", err)
	}
	return &Telemetry{
		tracer:   tracer,
		duration: duration,
		failures: failures,
		backend:  attribute.String("store.backend", backend),
	}, nil
}

func (t *Telemetry) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, "store."+op, trace.WithAttributes(t.backend))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	attrs := metric.WithAttributes(t.backend, attribute.String("store.op", op))
	t.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		t.failures.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("error_code", apierrors.Code(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// Wrap returns s instrumented with t. A VersionedStore stays a VersionedStore.
func (t *Telemetry) Wrap(s Store) Store {
	base := instrumented{next: s, t: t}
	if v, ok := s.(VersionedStore); ok {
		return instrumentedVersioned{instrumented: base, versioned: v}
	}
	return base
}

type instrumented struct {
	next Store
	t    *Telemetry
}

func (i instrumented) Load(ctx context.Context) (Collection, error) {
	var c Collection
	err := i.t.observe(ctx, "load", func(ctx context.Context) error {
		var err error
		c, err = i.next.Load(ctx)
		return err
	})
	return c, err
}

func (i instrumented) Save(ctx context.Context, c Collection) error {
	return i.t.observe(ctx, "save", func(ctx context.Context) error {
		return i.next.Save(ctx, c)
	})
}

func (i instrumented) Close() error { return i.next.Close() }

type instrumentedVersioned struct {
	instrumented
	versioned VersionedStore
}

func (i instrumentedVersioned) UpdateIfUnchanged(ctx context.Context, key string, expectedVersion uint64, rec domain.LicenseRecord) (uint64, error) {
	var version uint64
	err := i.t.observe(ctx, "update_if_unchanged", func(ctx context.Context) error {
		var err error
		version, err = i.versioned.UpdateIfUnchanged(ctx, key, expectedVersion, rec)
		return err
	})
	return version, err
}
