package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/internal/license"
	api "vidgate/pkg/contracts/api/v1"
	"vidgate/pkg/contracts/domain"
)

// TokenVerifier verifies session tokens. *license.UnsignedIssuer and
// *license.SignedIssuer satisfy it.
type TokenVerifier interface {
	Verify(token string, now time.Time) (license.Claims, error)
}

type claimsKey struct{}

// ClaimsFromContext returns the claims SessionGate stored for the request.
func ClaimsFromContext(ctx context.Context) (license.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(license.Claims)
	return c, ok
}

// SessionGate protects a resource with the session cookie issued by the
// license endpoints. Requests without the cookie get 401 no_session; requests
// whose token does not verify get 401 with the verifier's error code.
type SessionGate struct {
	verifier   TokenVerifier
	cookieName string
	now        func() time.Time
	logger     *slog.Logger
}

// NewSessionGate creates a gate reading cookieName.
func NewSessionGate(verifier TokenVerifier, cookieName string, now func() time.Time, logger *slog.Logger) *SessionGate {
	if now == nil {
		now = time.Now
	}
	return &SessionGate{
		verifier:   verifier,
		cookieName: cookieName,
		now:        now,
		logger:     infrastructure.WithComponent(logger, "session_gate"),
	}
}

// Handler returns the middleware handler function
func (g *SessionGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(g.cookieName)
		if err != nil || cookie.Value == "" {
			g.reject(w, r, apierrors.ErrNoSession)
			return
		}

		claims, err := g.verifier.Verify(cookie.Value, g.now())
		if err != nil {
			g.reject(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *SessionGate) reject(w http.ResponseWriter, r *http.Request, err error) {
	code := apierrors.Code(err)
	if !errors.Is(err, apierrors.ErrNoSession) && !errors.Is(err, apierrors.ErrSessionExpired) {
		code = domain.ErrCodeNotAuthenticated
	}

	g.logger.WarnContext(r.Context(), "protected resource refused",
		slog.String("path", r.URL.Path),
		slog.String("error_code", code),
		slog.String("remote_addr", GetRealIP(r)),
	)
	infrastructure.RecordError(r.Context(), err)

	w.Header().Set("WWW-Authenticate", `Cookie realm="vidgate"`)
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, api.LicenseResponse{
		Valid:   false,
		Error:   code,
		Message: apierrors.Message(code, apierrors.LangEnglish),
	})
}
