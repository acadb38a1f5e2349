package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidgate/internal/license"
	"vidgate/internal/shared/testutil"
	api "vidgate/pkg/contracts/api/v1"
	"vidgate/pkg/contracts/domain"
)

func gatedServer(t *testing.T, verifier TokenVerifier, now func() time.Time) (http.Handler, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	gate := NewSessionGate(verifier, "vidgate_session", now, logger)
	return gate.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte("engine for " + claims.Key))
	})), logs
}

func gateRequest(h http.Handler, token string) (*httptest.ResponseRecorder, api.LicenseResponse) {
	req := httptest.NewRequest(http.MethodGet, "/engine/engine.wasm", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "vidgate_session", Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body api.LicenseResponse
	if rec.Code != http.StatusOK {
		json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec, body
}

func TestSessionGate_UnsignedTokens(t *testing.T) {
	issuer := license.NewUnsignedIssuer(24 * time.Hour)
	h, logs := gatedServer(t, issuer, testutil.Clock())

	t.Run("missing cookie", func(t *testing.T) {
		rec, body := gateRequest(h, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, body.Valid)
		assert.Equal(t, domain.ErrCodeNoSession, body.Error)
		assert.NotEmpty(t, body.Message)
		testutil.AssertLogContains(t, logs, slog.LevelWarn, "protected resource refused")
	})

	t.Run("issued token", func(t *testing.T) {
		token, err := issuer.Issue("ABC-1", "dev1", testutil.FixedNow.Add(-time.Hour))
		require.NoError(t, err)
		rec, _ := gateRequest(h, token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "engine for ABC-1", rec.Body.String())
	})

	t.Run("stale token", func(t *testing.T) {
		token, err := issuer.Issue("ABC-1", "dev1", testutil.FixedNow.Add(-25*time.Hour))
		require.NoError(t, err)
		rec, body := gateRequest(h, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, domain.ErrCodeSessionExpired, body.Error)
	})

	t.Run("garbage", func(t *testing.T) {
		rec, body := gateRequest(h, "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, domain.ErrCodeNotAuthenticated, body.Error)
	})
}

func TestSessionGate_SignedTokens(t *testing.T) {
	issuer, err := license.NewSignedIssuer([]byte("0123456789abcdef0123456789abcdef"), 24*time.Hour)
	require.NoError(t, err)
	h, _ := gatedServer(t, issuer, testutil.Clock())

	token, err := issuer.Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)
	rec, _ := gateRequest(h, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A client-assembled token passes the unsigned gate but not this one.
	forged, err := license.NewUnsignedIssuer(24*time.Hour).Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)
	rec, body := gateRequest(h, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrCodeNotAuthenticated, body.Error)
}
