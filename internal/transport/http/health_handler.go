package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts"
	api "vidgate/pkg/contracts/api/v1"
)

// ReadinessChecker reports whether a dependency can serve requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store   ReadinessChecker
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. store is probed by the
// readiness check.
func NewHealthHandler(store ReadinessChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		timeout: 5 * time.Second,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.HealthResponse{
		Status:  "healthy",
		Version: contracts.Version,
	})
}

// ReadinessCheck handles GET /api/health/ready. It performs one license
// store round trip.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ready(ctx); err != nil {
		code := apierrors.Code(err)
		h.logger.WarnContext(ctx, "readiness check failed",
			slog.String("error", err.Error()),
			slog.String("error_code", code),
		)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, api.HealthResponse{
			Status:  "unavailable",
			Version: contracts.Version,
			Checks:  map[string]string{"license_store": code},
		})
		return
	}

	render.JSON(w, r, api.HealthResponse{
		Status:  "ready",
		Version: contracts.Version,
		Checks:  map[string]string{"license_store": "ok"},
	})
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.GetVersionInfo())
}
