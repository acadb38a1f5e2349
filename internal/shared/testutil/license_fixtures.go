package testutil

import (
	"time"

	"vidgate/pkg/contracts/domain"
)

// FixedNow is the reference instant used by license fixtures.
var FixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// Clock returns a func that always reports FixedNow.
func Clock() func() time.Time {
	return func() time.Time { return FixedNow }
}

// MutableClock is a clock tests can advance.
type MutableClock struct {
	Now time.Time
}

// Time returns the current mock time.
func (c *MutableClock) Time() time.Time { return c.Now }

// Advance moves the clock forward.
func (c *MutableClock) Advance(d time.Duration) { c.Now = c.Now.Add(d) }

// UnactivatedLicense returns a provisioned license that has never been used.
func UnactivatedLicense(key string, durationDays int) domain.LicenseRecord {
	rec := domain.LicenseRecord{Key: key, Plan: "monthly"}
	if durationDays > 0 {
		rec.DurationDays = &durationDays
	}
	return rec
}

// ActiveLicense returns a license bound to deviceID that expires in validFor.
func ActiveLicense(key, deviceID string, validFor time.Duration) domain.LicenseRecord {
	activated := FixedNow.Add(-24 * time.Hour)
	expires := FixedNow.Add(validFor)
	days := 30
	return domain.LicenseRecord{
		Key:             key,
		Plan:            "monthly",
		ActivatedOn:     &activated,
		DeviceHash:      deviceID,
		DeviceName:      "Windows PC",
		ExpiresAt:       &expires,
		DurationDays:    &days,
		ProcessedVideos: 4,
	}
}

// ExpiredLicense returns a license bound to deviceID whose expiry passed a day ago.
func ExpiredLicense(key, deviceID string) domain.LicenseRecord {
	return ActiveLicense(key, deviceID, -24*time.Hour)
}

// LifetimeLicense returns an activated license without an expiry.
func LifetimeLicense(key, deviceID string) domain.LicenseRecord {
	rec := ActiveLicense(key, deviceID, 0)
	rec.ExpiresAt = nil
	rec.DurationDays = nil
	rec.Plan = "lifetime"
	return rec
}
