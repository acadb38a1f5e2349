package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"vidgate/internal/config"
	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/internal/store"
	"vidgate/pkg/contracts/domain"
)

// Result is a successful authority outcome.
type Result struct {
	License domain.LicenseView
	// RemainingDays is set by CheckSession when the license has an expiry.
	RemainingDays *int
	Token         string
	IssuedAt      time.Time
}

// Options configures an Authority. Store and Issuer are required.
type Options struct {
	Store  store.Store
	Issuer TokenIssuer

	// Concurrency is config.ConcurrencyLegacy (default) or config.ConcurrencyOptimistic.
	Concurrency     string
	ConflictRetries int

	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *LicenseMetrics
	Tracer  trace.Tracer
}

// Authority validates, activates, locks and meters licenses.
type Authority struct {
	store     store.Store
	versioned store.VersionedStore
	issuer    TokenIssuer
	retries   int
	now       func() time.Time
	logger    *slog.Logger
	metrics   *LicenseMetrics
	tracer    trace.Tracer
}

// NewAuthority builds an Authority. Optimistic concurrency requires a
// store.VersionedStore.
func NewAuthority(opts Options) (*Authority, error) {
	if opts.Store == nil || opts.Issuer == nil {
		return nil, errors.New("license authority needs a store and a token issuer")
	}

	a := &Authority{
		store:   opts.Store,
		issuer:  opts.Issuer,
		retries: opts.ConflictRetries,
		now:     opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = infrastructure.WithComponent(a.logger, "license_authority")
	if a.tracer == nil {
		a.tracer = tracenoop.NewTracerProvider().Tracer("license")
	}

	switch opts.Concurrency {
	case "", config.ConcurrencyLegacy:
	case config.ConcurrencyOptimistic:
		v, ok := opts.Store.(store.VersionedStore)
		if !ok {
			return nil, fmt.Errorf("optimistic concurrency needs a versioned store, got %T", opts.Store)
		}
		a.versioned = v
		if a.retries < 1 {
			a.retries = config.DefaultConflictRetries
		}
	default:
		return nil, fmt.Errorf("unknown concurrency mode %q", opts.Concurrency)
	}
	return a, nil
}

// Optimistic reports whether validations write through UpdateIfUnchanged.
func (a *Authority) Optimistic() bool { return a.versioned != nil }

// Validate activates an unactivated license on deviceID, applies the device
// and expiry guards, counts one processed video and issues a session token.
func (a *Authority) Validate(ctx context.Context, key, deviceID, userAgent string) (*Result, error) {
	start := time.Now()
	var res *Result
	err := a.traceOperation(ctx, OpValidate, key, func(ctx context.Context) error {
		if err := requireInput(key, deviceID); err != nil {
			return err
		}
		var err error
		if a.versioned != nil {
			res, err = a.validateOptimistic(ctx, key, deviceID, userAgent)
		} else {
			res, err = a.validateLegacy(ctx, key, deviceID, userAgent)
		}
		return err
	})
	a.logOutcome(ctx, OpValidate, key, deviceID, start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CheckSession applies the guards without activating or counting and renews
// the session token. An unactivated license is reported as invalidLicense.
func (a *Authority) CheckSession(ctx context.Context, key, deviceID string) (*Result, error) {
	start := time.Now()
	var res *Result
	err := a.traceOperation(ctx, OpCheckSession, key, func(ctx context.Context) error {
		if err := requireInput(key, deviceID); err != nil {
			return err
		}
		c, err := a.store.Load(ctx)
		if err != nil {
			return err
		}
		idx, ok := c.Find(key)
		if !ok {
			return fmt.Errorf("check %s: %w", masked(key), apierrors.ErrInvalidLicense)
		}

		rec := c.Records[idx]
		now := a.now()
		if !rec.Activated() {
			return fmt.Errorf("check %s: never activated: %w", masked(rec.Key), apierrors.ErrInvalidLicense)
		}
		if err := guard(&rec, deviceID, now); err != nil {
			return err
		}

		res, err = a.issue(&rec, deviceID, now)
		if err != nil {
			return err
		}
		res.RemainingDays = domain.RemainingDays(rec.ExpiresAt, now)
		return nil
	})
	a.logOutcome(ctx, OpCheckSession, key, deviceID, start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ready performs one store round trip.
func (a *Authority) Ready(ctx context.Context) error {
	_, err := a.store.Load(ctx)
	return err
}

// Close releases the store.
func (a *Authority) Close() error {
	return a.store.Close()
}

// validateLegacy reads the whole collection, decides, and writes the whole
// collection back with no version check. Concurrent validations of different
// keys can overwrite each other.
func (a *Authority) validateLegacy(ctx context.Context, key, deviceID, userAgent string) (*Result, error) {
	c, err := a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx, ok := c.Find(key)
	if !ok {
		return nil, fmt.Errorf("validate %s: %w", masked(key), apierrors.ErrInvalidLicense)
	}

	now := a.now()
	rec := &c.Records[idx]
	activated, err := a.decideValidate(rec, deviceID, userAgent, now)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(ctx, c); err != nil {
		return nil, err
	}
	if activated {
		a.recordActivation(ctx)
	}
	return a.issue(rec, deviceID, now)
}

// validateOptimistic writes only the matched record, conditional on the
// version it was read at. On conflict the whole decision, guards included,
// is made again against a fresh read.
func (a *Authority) validateOptimistic(ctx context.Context, key, deviceID, userAgent string) (*Result, error) {
	for attempt := 1; attempt <= a.retries; attempt++ {
		c, err := a.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		idx, ok := c.Find(key)
		if !ok {
			return nil, fmt.Errorf("validate %s: %w", masked(key), apierrors.ErrInvalidLicense)
		}

		now := a.now()
		rec := c.Records[idx]
		expected := rec.Version
		activated, err := a.decideValidate(&rec, deviceID, userAgent, now)
		if err != nil {
			return nil, err
		}

		version, err := a.versioned.UpdateIfUnchanged(ctx, rec.Key, expected, rec)
		if errors.Is(err, apierrors.ErrConflict) {
			a.recordConflict(ctx, attempt)
			a.logger.DebugContext(ctx, "license record changed during validation, retrying",
				slog.Int("attempt", attempt),
				slog.Uint64("expected_version", expected),
				slog.Uint64("stored_version", version),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		rec.Version = version
		if activated {
			a.recordActivation(ctx)
		}
		return a.issue(&rec, deviceID, now)
	}
	return nil, fmt.Errorf("validate %s: record kept changing after %d attempts: %w",
		masked(key), a.retries, apierrors.ErrServer)
}

// decideValidate mutates rec in place: activation when unactivated, the
// guards, then the usage increment. Callers persist rec only on success.
func (a *Authority) decideValidate(rec *domain.LicenseRecord, deviceID, userAgent string, now time.Time) (bool, error) {
	activated := false
	if !rec.Activated() {
		activate(rec, deviceID, userAgent, now)
		activated = true
	}
	if err := guard(rec, deviceID, now); err != nil {
		return false, err
	}
	rec.ProcessedVideos++
	return activated, nil
}

// activate binds rec to deviceID. A provisioned expiry that has already
// passed is kept so the expiry guard refuses the activation.
func activate(rec *domain.LicenseRecord, deviceID, userAgent string, now time.Time) {
	at := now
	rec.ActivatedOn = &at
	rec.DeviceHash = deviceID
	rec.DeviceName = DeviceLabel(userAgent)
	rec.ProcessedVideos = 0
	if rec.DurationDays != nil && !rec.ExpiredAt(now) {
		expires := now.Add(time.Duration(*rec.DurationDays) * 24 * time.Hour)
		rec.ExpiresAt = &expires
	}
}

// guard applies the standing guards in order: device binding, then expiry.
func guard(rec *domain.LicenseRecord, deviceID string, now time.Time) error {
	if rec.DeviceHash != "" && rec.DeviceHash != deviceID {
		return fmt.Errorf("license %s: %w", masked(rec.Key), apierrors.ErrDeviceMismatch)
	}
	if rec.ExpiredAt(now) {
		return fmt.Errorf("license %s expired %s: %w", masked(rec.Key), rec.ExpiresAt.Format(time.RFC3339), apierrors.ErrExpired)
	}
	return nil
}

func (a *Authority) issue(rec *domain.LicenseRecord, deviceID string, now time.Time) (*Result, error) {
	token, err := a.issuer.Issue(rec.Key, deviceID, now)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &Result{License: rec.View(), Token: token, IssuedAt: now}, nil
}

// masked renders a key for error messages, which end up in logs.
func masked(key string) string {
	return infrastructure.MaskLicenseKey(domain.NormalizeKey(key))
}

func requireInput(key, deviceID string) error {
	if domain.NormalizeKey(key) == "" {
		return fmt.Errorf("license key required: %w", apierrors.ErrInvalidRequest)
	}
	if deviceID == "" {
		return fmt.Errorf("device id required: %w", apierrors.ErrInvalidRequest)
	}
	return nil
}
