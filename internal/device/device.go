// Package device provides the device identifier a license is bound to.
// The identifier is opaque to the rest of the system: the authority only
// compares it for equality.
package device

import (
	"context"
	"errors"
	"strings"
)

// Provider returns a stable identifier for the current device.
type Provider interface {
	DeviceID(ctx context.Context) (string, error)
}

// Static always returns the same identifier. It serves tests and an
// operator-supplied override.
type Static string

// DeviceID implements Provider.
func (s Static) DeviceID(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", errors.New("static device id is empty")
	}
	return id, nil
}
