// Package auth coordinates license login, startup restore, the mandatory
// pre-action verification and logout on the client.
//
// The Coordinator is the only type the rest of the client depends on. The
// persisted session is a latency optimization: every trust decision is
// made by the license authority.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"vidgate/internal/device"
	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/internal/session"
	api "vidgate/pkg/contracts/api/v1"
	"vidgate/pkg/contracts/domain"
)

// ErrClosed is returned by operations on a closed Coordinator.
var ErrClosed = errors.New("auth coordinator closed")

// Authority is the remote license authority. *client.AuthorityClient
// satisfies it. Refusals must carry their wire code (see errors.Code).
type Authority interface {
	Validate(ctx context.Context, key, deviceID string) (*api.LicenseResponse, error)
	CheckSession(ctx context.Context, key, deviceID string) (*api.LicenseResponse, error)
}

// State is the coordinator's authentication state.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Verification is the outcome of a successful strict check.
type Verification struct {
	Session       *session.Session
	RemainingDays *int
}

// Options configures a Coordinator. Authority, Devices and Cache are required.
type Options struct {
	Authority Authority
	Devices   device.Provider
	Cache     *session.Cache
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// Coordinator holds the current session in memory in addition to what the
// session cache persists. Its mutex keeps the in-memory fields consistent;
// it does not serialize concurrent logins and logouts against each other's
// persisted writes.
type Coordinator struct {
	authority Authority
	devices   device.Provider
	cache     *session.Cache
	logger    *slog.Logger
	tracer    trace.Tracer

	mu       sync.Mutex
	session  *session.Session
	deviceID string
	closed   bool
}

// NewCoordinator creates an unauthenticated coordinator. Call Init to
// restore a persisted session.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Authority == nil || opts.Devices == nil || opts.Cache == nil {
		return nil, errors.New("auth coordinator needs an authority, a device provider and a session cache")
	}
	c := &Coordinator{
		authority: opts.Authority,
		devices:   opts.Devices,
		cache:     opts.Cache,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = infrastructure.WithComponent(c.logger, "auth_coordinator")
	if c.tracer == nil {
		c.tracer = tracenoop.NewTracerProvider().Tracer("auth")
	}
	return c, nil
}

// Init restores the persisted session. A locally valid session is only
// trusted after a successful remote check; a refusal logs out fully. Any
// false result leaves the coordinator unauthenticated in memory; a network
// failure keeps the persisted session for the next attempt. The returned
// error explains a false result.
func (c *Coordinator) Init(ctx context.Context) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "auth.init")
	defer span.End()

	if err := c.checkOpen(); err != nil {
		return false, err
	}
	if err := c.restore(ctx); err != nil {
		c.clearSession()
		return false, c.fail(span, err)
	}
	return true, nil
}

func (c *Coordinator) restore(ctx context.Context) error {
	deviceID, err := c.resolveDevice(ctx)
	if err != nil {
		return err
	}

	local, err := c.cache.Read()
	if err != nil {
		c.logger.InfoContext(ctx, "no usable local session", slog.String("error_code", apierrors.Code(err)))
		return err
	}

	resp, err := c.authority.CheckSession(ctx, local.License.Key, deviceID)
	if err != nil {
		if errors.Is(err, apierrors.ErrNetwork) {
			c.logger.WarnContext(ctx, "session restore could not reach the authority",
				infrastructure.LicenseAttr(local.License.Key),
				slog.String("error", err.Error()),
			)
		} else {
			c.logger.WarnContext(ctx, "authority refused restored session",
				infrastructure.LicenseAttr(local.License.Key),
				slog.String("error_code", apierrors.Code(err)),
			)
			c.Logout(ctx)
		}
		return err
	}

	s, err := c.cache.Create(*resp.License, deviceID)
	if err != nil {
		return err
	}
	c.setSession(s, deviceID)

	c.logger.InfoContext(ctx, "session restored", infrastructure.LicenseAttr(s.License.Key))
	return nil
}

// Login validates key with the authority and, on success, persists a new
// session. On failure the authority's error is returned unmodified and the
// existing state is left alone.
func (c *Coordinator) Login(ctx context.Context, key string) (*session.Session, error) {
	ctx, span := c.tracer.Start(ctx, "auth.login")
	defer span.End()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	key = domain.NormalizeKey(key)
	if key == "" {
		return nil, c.fail(span, fmt.Errorf("license key is empty: %w", apierrors.ErrInvalidRequest))
	}
	span.SetAttributes(attribute.String("license.key", infrastructure.MaskLicenseKey(key)))

	deviceID, err := c.resolveDevice(ctx)
	if err != nil {
		return nil, c.fail(span, err)
	}

	resp, err := c.authority.Validate(ctx, key, deviceID)
	if err != nil {
		c.logger.WarnContext(ctx, "login refused",
			infrastructure.LicenseAttr(key),
			slog.String("error_code", apierrors.Code(err)),
		)
		return nil, c.fail(span, err)
	}

	s, err := c.cache.Create(*resp.License, deviceID)
	if err != nil {
		return nil, c.fail(span, err)
	}
	c.setSession(s, deviceID)

	c.logger.InfoContext(ctx, "login succeeded",
		infrastructure.LicenseAttr(key),
		slog.String("device_name", s.License.DeviceName),
	)
	return s, nil
}

// VerifyBeforeProcessing is the strict remote check required before every
// unit of paid work. It is never cached. On success the in-memory and
// persisted session are refreshed from the authority's snapshot; on failure
// the session is left in place for the caller to decide.
func (c *Coordinator) VerifyBeforeProcessing(ctx context.Context) (*Verification, error) {
	ctx, span := c.tracer.Start(ctx, "auth.verify_before_processing")
	defer span.End()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	current, deviceID := c.session, c.deviceID
	c.mu.Unlock()

	if current == nil {
		return nil, c.fail(span, fmt.Errorf("verify: %w", apierrors.ErrNotAuthenticated))
	}

	resp, err := c.authority.CheckSession(ctx, current.License.Key, deviceID)
	if err != nil {
		c.logger.WarnContext(ctx, "strict verification failed",
			infrastructure.LicenseAttr(current.License.Key),
			slog.String("error_code", apierrors.Code(err)),
		)
		return nil, c.fail(span, err)
	}

	s, err := c.cache.Create(*resp.License, deviceID)
	if err != nil {
		return nil, c.fail(span, err)
	}
	c.setSession(s, deviceID)

	return &Verification{Session: s, RemainingDays: resp.RemainingDays}, nil
}

// Logout clears persisted and in-memory state. It always succeeds; a
// storage failure is logged.
func (c *Coordinator) Logout(ctx context.Context) {
	if err := c.cache.Destroy(); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear persisted session", slog.String("error", err.Error()))
	}
	c.clearSession()
}

// State reports whether a session is held in memory.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Unauthenticated
	}
	return Authenticated
}

// Session returns a copy of the in-memory session, or nil.
func (c *Coordinator) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// DeviceID returns the identifier sent to the authority, persisting it on
// first use.
func (c *Coordinator) DeviceID(ctx context.Context) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	id, err := c.resolveDevice(ctx)
	if err != nil {
		return "", err
	}
	if err := c.cache.SaveDeviceID(id); err != nil {
		c.logger.WarnContext(ctx, "failed to persist device id", slog.String("error", err.Error()))
	}
	return id, nil
}

// LastLicenseKey returns the key of the last persisted session, if any.
func (c *Coordinator) LastLicenseKey() (string, bool, error) {
	return c.cache.LastLicenseKey()
}

// Close drops in-memory state. Persisted state is kept for the next Init.
// Close is idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.session = nil
	c.deviceID = ""
	return nil
}

// resolveDevice prefers the persisted device id so the binding survives
// changes to the machine facts the provider reads. It writes nothing; a new
// id is persisted with the session that uses it.
func (c *Coordinator) resolveDevice(ctx context.Context) (string, error) {
	if id, ok, err := c.cache.DeviceID(); err == nil && ok && id != "" {
		return id, nil
	}

	id, err := c.devices.DeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("device identity: %w", err)
	}
	return id, nil
}

func (c *Coordinator) setSession(s *session.Session, deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.deviceID = deviceID
}

func (c *Coordinator) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.deviceID = ""
}

func (c *Coordinator) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Coordinator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, apierrors.Code(err))
	span.SetAttributes(attribute.String("error_code", apierrors.Code(err)))
	return err
}
