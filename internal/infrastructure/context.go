package infrastructure

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
)

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// MaskLicenseKey keeps the first and last four characters of a key.
func MaskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// HashIdentifier returns a short, stable, non-reversible tag for logging
// device ids and similar identifiers.
func HashIdentifier(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:16]
}

// LicenseAttr is the log attribute for a license key.
func LicenseAttr(key string) slog.Attr {
	return slog.String("license_key", MaskLicenseKey(key))
}

// DeviceAttr is the log attribute for a device id.
func DeviceAttr(deviceID string) slog.Attr {
	return slog.String("device", HashIdentifier(deviceID))
}
