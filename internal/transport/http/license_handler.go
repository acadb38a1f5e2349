package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"vidgate/internal/config"
	apierrors "vidgate/internal/errors"
	"vidgate/internal/license"
	customMiddleware "vidgate/internal/middleware"
	api "vidgate/pkg/contracts/api/v1"
	"vidgate/pkg/contracts/domain"
)

// LicenseService is the part of *license.Authority the handler needs.
type LicenseService interface {
	Validate(ctx context.Context, key, deviceID, userAgent string) (*license.Result, error)
	CheckSession(ctx context.Context, key, deviceID string) (*license.Result, error)
}

// CookieConfig describes the session cookie set on every successful call.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// CookieConfigFrom builds a CookieConfig from the token configuration.
func CookieConfigFrom(cfg config.TokenConfig) CookieConfig {
	return CookieConfig{Name: cfg.CookieName, MaxAge: cfg.MaxAge, Secure: cfg.Secure}
}

// LicenseHandler serves the activate/validate and strict session check endpoints.
type LicenseHandler struct {
	service   LicenseService
	validator *customMiddleware.RequestValidator
	cookie    CookieConfig
	language  string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service LicenseService, cookie CookieConfig, language string, timeout time.Duration, logger *slog.Logger) *LicenseHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LicenseHandler{
		service:   service,
		validator: customMiddleware.NewRequestValidator(),
		cookie:    cookie,
		language:  language,
		timeout:   timeout,
		logger:    logger.With(slog.String("handler", "license")),
	}
}

// Routes returns a chi router for license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(h.timeout))
	r.Use(customMiddleware.ContentTypeValidator("application/json"))

	r.Post("/validate", h.Validate)
	r.Post("/check-session", h.CheckSession)
	return r
}

// Validate handles POST /api/license/validate. It activates an unactivated
// license, meters one use and issues a session cookie.
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}

	res, err := h.service.Validate(r.Context(), req.LicenseKey, req.DeviceID, userAgent)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.succeed(w, r, res)
}

// CheckSession handles POST /api/license/check-session. It never activates or
// meters; it renews the session cookie and reports remaining days.
func (h *LicenseHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.service.CheckSession(r.Context(), req.LicenseKey, req.DeviceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.succeed(w, r, res)
}

// maxLicenseRequestBytes bounds a license request body.
const maxLicenseRequestBytes = 64 << 10

func (h *LicenseHandler) decode(w http.ResponseWriter, r *http.Request) (*api.ValidateRequest, bool) {
	req := &api.ValidateRequest{}
	r.Body = http.MaxBytesReader(w, r.Body, maxLicenseRequestBytes)
	if err := render.DecodeJSON(r.Body, req); err != nil {
		h.logger.DebugContext(r.Context(), "undecodable license request",
			slog.String("error", err.Error()),
			slog.String("request_id", customMiddleware.GetReqID(r.Context())),
		)
		h.fail(w, r, apierrors.ErrInvalidRequest)
		return nil, false
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.logger.DebugContext(r.Context(), "invalid license request",
			slog.String("error", err.Error()),
			slog.String("request_id", customMiddleware.GetReqID(r.Context())),
		)
		h.fail(w, r, err)
		return nil, false
	}
	return req, true
}

func (h *LicenseHandler) succeed(w http.ResponseWriter, r *http.Request, res *license.Result) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	view := res.License
	render.JSON(w, r, api.LicenseResponse{
		Valid:         true,
		License:       &view,
		RemainingDays: res.RemainingDays,
	})
}

// fail renders a license outcome. These are terminal answers, not problems,
// so they keep the {valid:false, error, message} shape.
func (h *LicenseHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apierrors.Code(err)
	if code == domain.ErrCodeServerError {
		h.logger.ErrorContext(r.Context(), "license request failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
	}

	render.Status(r, apierrors.HTTPStatus(code))
	render.JSON(w, r, api.LicenseResponse{
		Valid:   false,
		Error:   code,
		Message: apierrors.Message(code, h.language),
	})
}
