package license

import (
	"context"
	"log/slog"
	"time"

	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/pkg/contracts/domain"
)

// logOutcome logs the result of one authority operation. Keys are masked and
// device ids hashed.
func (a *Authority) logOutcome(ctx context.Context, op, key, deviceID string, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("operation", op),
		infrastructure.LicenseAttr(key),
		infrastructure.DeviceAttr(deviceID),
		slog.Duration("duration", time.Since(start)),
	}

	if err == nil {
		a.logger.LogAttrs(ctx, slog.LevelInfo, "license operation succeeded", attrs...)
		return
	}

	code := apierrors.Code(err)
	attrs = append(attrs, slog.String("error_code", code), slog.String("error", err.Error()))

	// Refusals are ordinary outcomes; only store and server trouble is an error.
	level := slog.LevelWarn
	if code == domain.ErrCodeServerError || code == domain.ErrCodeNetwork {
		level = slog.LevelError
	}
	a.logger.LogAttrs(ctx, level, "license operation refused", attrs...)
}
