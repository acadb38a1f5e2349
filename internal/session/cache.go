// Package session persists the client's view of a validated license.
//
// A Session carries its own time-to-live, independent of the license's
// expiry; both are checked on every Read. The cache is a latency
// optimization only: callers must re-verify with the license authority
// before trusting it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/pkg/contracts/domain"
)

// Session is the persisted snapshot of a validated license.
type Session struct {
	License   domain.LicenseView `json:"license" validate:"required"`
	DeviceID  string             `json:"deviceId" validate:"required"`
	CreatedAt time.Time          `json:"createdAt" validate:"required"`
	ExpiresAt time.Time          `json:"expiresAt" validate:"required,gtfield=CreatedAt"`
}

// Legacy returns the license snapshot with both historical field spellings.
func (s *Session) Legacy() map[string]any {
	return Legacy(s.License)
}

// Cache reads and writes the persisted session.
type Cache struct {
	storage  Storage
	ttl      time.Duration
	now      func() time.Time
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCache creates a session cache over storage. Sessions live for ttl.
func NewCache(storage Storage, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		storage:  storage,
		ttl:      ttl,
		now:      now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   infrastructure.WithComponent(logger, "session_cache"),
	}
}

// Create persists a new session for license bound to deviceID, then the
// device id and license key as separate entries.
func (c *Cache) Create(license domain.LicenseView, deviceID string) (*Session, error) {
	now := c.now()
	s := &Session{
		License:   license,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	if err := c.validate.Struct(s); err != nil {
		return nil, fmt.Errorf("create session: %v: %w", err, apierrors.ErrInvalidSessionStructure)
	}

	blob, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := c.storage.Set(KeySession, string(blob)); err != nil {
		return nil, err
	}
	if err := c.storage.Set(KeyDeviceID, deviceID); err != nil {
		return nil, err
	}
	if err := c.storage.Set(KeyLicenseKey, license.Key); err != nil {
		return nil, err
	}

	c.logger.Debug("session created",
		infrastructure.LicenseAttr(license.Key),
		slog.Time("expires_at", s.ExpiresAt),
	)
	return s, nil
}

// Read loads the persisted session. A blob that does not parse or lacks a
// required field is purged and reported as ErrInvalidSessionStructure; the
// next Read then reports ErrNoSession. A session whose own TTL or whose
// license has expired is purged as well.
func (c *Cache) Read() (*Session, error) {
	blob, ok, err := c.storage.Get(KeySession)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.ErrNoSession
	}

	var s Session
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return nil, c.purge(fmt.Errorf("decode session: %v: %w", err, apierrors.ErrInvalidSessionStructure))
	}
	if err := c.validate.Struct(&s); err != nil {
		return nil, c.purge(fmt.Errorf("session shape: %v: %w", err, apierrors.ErrInvalidSessionStructure))
	}

	now := c.now()
	if !now.Before(s.ExpiresAt) {
		return nil, c.purge(fmt.Errorf("session created %s: %w", s.CreatedAt.Format(time.RFC3339), apierrors.ErrSessionExpired))
	}
	if s.License.ExpiresAt != nil && s.License.ExpiresAt.Before(now) {
		return nil, c.purge(fmt.Errorf("cached license: %w", apierrors.ErrExpired))
	}
	return &s, nil
}

// Destroy clears the session, device id and license key entries. It is
// idempotent and attempts every entry even when one fails.
func (c *Cache) Destroy() error {
	var errs []error
	for _, key := range []string{KeySession, KeyDeviceID, KeyLicenseKey} {
		if err := c.storage.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeviceID returns the persisted standalone device id.
func (c *Cache) DeviceID() (string, bool, error) {
	return c.storage.Get(KeyDeviceID)
}

// SaveDeviceID persists the standalone device id.
func (c *Cache) SaveDeviceID(id string) error {
	return c.storage.Set(KeyDeviceID, id)
}

// LastLicenseKey returns the license key of the last session created.
func (c *Cache) LastLicenseKey() (string, bool, error) {
	return c.storage.Get(KeyLicenseKey)
}

func (c *Cache) purge(cause error) error {
	c.logger.Warn("purging persisted session",
		slog.String("error_code", apierrors.Code(cause)),
		slog.String("error", cause.Error()),
	)
	if err := c.Destroy(); err != nil {
		c.logger.Error("failed to purge persisted session", slog.String("error", err.Error()))
	}
	return cause
}
