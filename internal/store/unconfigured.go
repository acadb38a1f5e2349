package store

import (
	"context"
	"fmt"

	apierrors "vidgate/internal/errors"
)

// Unconfigured stands in for a backend whose credentials are missing. Every
// call fails with ErrServerConfiguration so the authority keeps serving and
// reports server_error per request.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) err() error {
	return fmt.Errorf("%s: %w", u.Reason, apierrors.ErrServerConfiguration)
}

// Load implements Store.
func (u Unconfigured) Load(context.Context) (Collection, error) { return Collection{}, u.err() }

// Save implements Store.
func (u Unconfigured) Save(context.Context, Collection) error { return u.err() }

// Close implements Store.
func (u Unconfigured) Close() error { return nil }
