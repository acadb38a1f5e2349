// Package client talks to the license authority over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/pkg/contracts"
	api "vidgate/pkg/contracts/api/v1"
	"vidgate/pkg/contracts/domain"
)

const (
	validatePath     = "/api/license/validate"
	checkSessionPath = "/api/license/check-session"

	maxResponseBytes = 1 << 20
)

// AuthorityClient calls the license endpoints. The session cookie set by the
// authority is kept in a cookie jar and sent back on later requests.
type AuthorityClient struct {
	baseURL    *url.URL
	http       *http.Client
	userAgent  string
	cookieName string
	logger     *slog.Logger
}

// Option configures an AuthorityClient.
type Option func(*AuthorityClient)

// WithHTTPClient replaces the instrumented default client. The client's
// Jar, if nil, is replaced with a fresh cookie jar.
func WithHTTPClient(c *http.Client) Option {
	return func(a *AuthorityClient) { a.http = c }
}

// WithCookieName sets the name of the session cookie reported by SessionToken.
func WithCookieName(name string) Option {
	return func(a *AuthorityClient) { a.cookieName = name }
}

// New creates a client for the authority at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) (*AuthorityClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid authority url %q", baseURL)
	}

	c := &AuthorityClient{
		baseURL: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent:  UserAgent(),
		cookieName: "vidgate_session",
		logger:     infrastructure.WithComponent(logger, "authority_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Validate activates or validates key for deviceID and meters one use.
func (c *AuthorityClient) Validate(ctx context.Context, key, deviceID string) (*api.LicenseResponse, error) {
	return c.post(ctx, validatePath, key, deviceID)
}

// CheckSession performs the strict remote check. It never meters.
func (c *AuthorityClient) CheckSession(ctx context.Context, key, deviceID string) (*api.LicenseResponse, error) {
	return c.post(ctx, checkSessionPath, key, deviceID)
}

// SessionToken returns the session cookie value held for the authority, if any.
func (c *AuthorityClient) SessionToken() (string, bool) {
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		if cookie.Name == c.cookieName {
			return cookie.Value, true
		}
	}
	return "", false
}

// post sends one license request. Transport and decoding failures are
// ErrNetwork; a {valid:false} answer is returned as a *errors.CodedError
// carrying the authority's code and message unmodified.
func (c *AuthorityClient) post(ctx context.Context, path, key, deviceID string) (*api.LicenseResponse, error) {
	body, err := json.Marshal(api.ValidateRequest{
		LicenseKey: key,
		DeviceID:   deviceID,
		UserAgent:  c.userAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("encode license request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build license request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Request-ID", traceID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "authority unreachable",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("POST %s: %v: %w", path, err, apierrors.ErrNetwork)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %v: %w", path, err, apierrors.ErrNetwork)
	}

	var out api.LicenseResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response (status %d): %v: %w", path, resp.StatusCode, err, apierrors.ErrNetwork)
	}

	c.logger.DebugContext(ctx, "authority answered",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Bool("valid", out.Valid),
		slog.String("error_code", out.Error),
		infrastructure.LicenseAttr(key),
		slog.Duration("duration", time.Since(start)),
	)

	if !out.Valid {
		code := out.Error
		if code == "" {
			code = domain.ErrCodeServerError
		}
		return nil, &apierrors.CodedError{Code: code, Message: out.Message}
	}
	if out.License == nil {
		return nil, fmt.Errorf("%s response carries no license: %w", path, apierrors.ErrNetwork)
	}
	return &out, nil
}

// UserAgent identifies the client and its platform. The platform token is
// what the authority derives the device label from.
func UserAgent() string {
	var platform string
	switch runtime.GOOS {
	case "darwin", "ios":
		platform = "Macintosh; Mac OS X"
	case "windows":
		platform = "Windows NT"
	case "android":
		platform = "Android"
	case "linux":
		platform = "X11; Linux"
	default:
		platform = runtime.GOOS
	}
	return fmt.Sprintf("vidgate/%s (%s; %s)", contracts.Version, platform, runtime.GOARCH)
}
