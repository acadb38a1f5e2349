// Package api contains the wire contracts of the vidgate license protocol.
// Version v1 represents the current stable API version.
package api

import (
	"vidgate/pkg/contracts/domain"
)

// ValidateRequest is the body of both the activate/validate and the strict
// session check endpoints.
type ValidateRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required,notblank,max=128"`
	DeviceID   string `json:"deviceId" validate:"required,notblank,max=512"`

	// UserAgent overrides the User-Agent header as the device label hint.
	UserAgent string `json:"userAgent,omitempty" validate:"max=1024"`
}

// LicenseResponse is returned by both license endpoints.
// On failure Valid is false and Error carries one of the domain.ErrCode values.
type LicenseResponse struct {
	Valid         bool                `json:"valid"`
	License       *domain.LicenseView `json:"license,omitempty"`
	RemainingDays *int                `json:"remainingDays,omitempty"`
	Error         string              `json:"error,omitempty"`
	Message       string              `json:"message,omitempty"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}
