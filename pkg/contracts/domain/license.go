// Package domain contains the core domain models for the vidgate license authority.
// These types serve as the Single Source of Truth (SSOT) for the server, the
// license store backends and the client.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// LicenseRecord is the persisted unit of authorization, keyed by license key.
// It is provisioned out-of-band and mutated only by the license authority.
type LicenseRecord struct {
	Key             string     `json:"key" validate:"required"`
	Plan            string     `json:"plan"`
	ActivatedOn     *time.Time `json:"activated_on,omitempty"`
	DeviceHash      string     `json:"device_hash,omitempty"`
	DeviceName      string     `json:"device_name,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	DurationDays    *int       `json:"duration_days,omitempty" validate:"omitempty,min=1"`
	ProcessedVideos int64      `json:"processed_videos" validate:"min=0"`

	// Version is bumped on every conditional write. Records written only
	// through whole-collection saves keep whatever version they were loaded with.
	Version uint64 `json:"version"`
}

// LicenseState is the lifecycle state of a record as observed at a point in time.
type LicenseState string

const (
	LicenseStateUnactivated LicenseState = "unactivated"
	LicenseStateActive      LicenseState = "active"
	LicenseStateExpired     LicenseState = "expired"
)

// NormalizeKey trims and uppercases a license key for lookup.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Activated reports whether the record has been bound to a device.
func (r *LicenseRecord) Activated() bool {
	return r.ActivatedOn != nil
}

// ExpiredAt reports whether the record's expiry has passed at now.
func (r *LicenseRecord) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// State returns the lifecycle state at now.
func (r *LicenseRecord) State(now time.Time) LicenseState {
	switch {
	case r.ExpiredAt(now):
		return LicenseStateExpired
	case r.Activated():
		return LicenseStateActive
	default:
		return LicenseStateUnactivated
	}
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r LicenseRecord) Clone() LicenseRecord {
	out := r
	if r.ActivatedOn != nil {
		t := *r.ActivatedOn
		out.ActivatedOn = &t
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	if r.DurationDays != nil {
		d := *r.DurationDays
		out.DurationDays = &d
	}
	return out
}

// View returns the sanitized client-facing view. The bound device hash is never exposed.
func (r *LicenseRecord) View() LicenseView {
	return LicenseView{
		Key:             r.Key,
		Plan:            r.Plan,
		ExpiresAt:       r.ExpiresAt,
		ActivatedAt:     r.ActivatedOn,
		ProcessedVideos: r.ProcessedVideos,
		DeviceName:      r.DeviceName,
	}
}

// LicenseView is the sanitized license shape returned to clients and cached locally.
// processed_videos and device_name are the canonical spellings; decoding also
// accepts the legacy processedVideos and deviceName spellings.
type LicenseView struct {
	Key             string     `json:"key" validate:"required"`
	Plan            string     `json:"plan"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	ActivatedAt     *time.Time `json:"activatedAt"`
	ProcessedVideos int64      `json:"processed_videos"`
	DeviceName      string     `json:"device_name"`
}

// UnmarshalJSON decodes either field spelling. The canonical spelling wins when both are present.
func (v *LicenseView) UnmarshalJSON(data []byte) error {
	type canonical LicenseView
	var aux struct {
		canonical
		CanonicalProcessed *int64  `json:"processed_videos"`
		CanonicalDevice    *string `json:"device_name"`
		LegacyProcessed    *int64  `json:"processedVideos"`
		LegacyDevice       *string `json:"deviceName"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*v = LicenseView(aux.canonical)
	switch {
	case aux.CanonicalProcessed != nil:
		v.ProcessedVideos = *aux.CanonicalProcessed
	case aux.LegacyProcessed != nil:
		v.ProcessedVideos = *aux.LegacyProcessed
	}
	switch {
	case aux.CanonicalDevice != nil:
		v.DeviceName = *aux.CanonicalDevice
	case aux.LegacyDevice != nil:
		v.DeviceName = *aux.LegacyDevice
	}
	return nil
}

// RemainingDays returns ceil((expiresAt - now) / 24h), or nil when the license never expires.
func RemainingDays(expiresAt *time.Time, now time.Time) *int {
	if expiresAt == nil {
		return nil
	}
	remaining := expiresAt.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return &days
}

// License error codes surfaced to callers on the wire.
const (
	ErrCodeInvalidLicense          = "invalidLicense"
	ErrCodeDeviceMismatch          = "deviceMismatch"
	ErrCodeExpired                 = "expired"
	ErrCodeSessionExpired          = "session_expired"
	ErrCodeNetwork                 = "network"
	ErrCodeServerError             = "server_error"
	ErrCodeInvalidSessionStructure = "invalid_session_structure"
	ErrCodeNoSession               = "no_session"
	ErrCodeInvalidRequest          = "invalid_request"
	ErrCodeNotAuthenticated        = "not_authenticated"
)
