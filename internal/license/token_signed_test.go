package license

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidgate/internal/config"
	apierrors "vidgate/internal/errors"
	"vidgate/internal/shared/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newSigned(t *testing.T, secret string) *SignedIssuer {
	t.Helper()
	s, err := NewSignedIssuer([]byte(secret), 24*time.Hour)
	require.NoError(t, err)
	return s
}

func TestSignedIssuer_RoundTrip(t *testing.T) {
	s := newSigned(t, testSecret)

	token, err := s.Issue("abc-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)

	claims, err := s.Verify(token, testutil.FixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "ABC-1", claims.Key)
	assert.Equal(t, DeviceDigest("dev1"), claims.Device)
	assert.True(t, claims.IssuedAt.Equal(testutil.FixedNow))
	assert.True(t, claims.ExpiresAt.Equal(testutil.FixedNow.Add(24*time.Hour)))
	assert.NotEmpty(t, claims.ID)
}

func TestSignedIssuer_UniqueTokenIDs(t *testing.T) {
	s := newSigned(t, testSecret)
	a, err := s.Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)
	b, err := s.Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSignedIssuer_Expired(t *testing.T) {
	s := newSigned(t, testSecret)
	token, err := s.Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)

	_, err = s.Verify(token, testutil.FixedNow.Add(25*time.Hour))
	assert.True(t, errors.Is(err, apierrors.ErrSessionExpired))
}

func TestSignedIssuer_RejectsForgeries(t *testing.T) {
	s := newSigned(t, testSecret)
	token, err := s.Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		other := newSigned(t, strings.Repeat("z", 32))
		_, err := other.Verify(token, testutil.FixedNow)
		assert.True(t, errors.Is(err, apierrors.ErrNotAuthenticated))
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"VIP-1","dev":"x","iss":"vidgate","exp":1999999999}`))
		_, err := s.Verify(parts[0]+"."+payload+"."+parts[2], testutil.FixedNow)
		assert.True(t, errors.Is(err, apierrors.ErrNotAuthenticated))
	})

	t.Run("signed with the raw secret", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "ABC-1", "iss": "vidgate", "exp": testutil.FixedNow.Add(time.Hour).Unix()}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.Verify(raw, testutil.FixedNow)
		assert.True(t, errors.Is(err, apierrors.ErrNotAuthenticated), "the secret is only key material")
	})

	t.Run("alg none", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "ABC-1", "iss": "vidgate", "exp": testutil.FixedNow.Add(time.Hour).Unix()}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(raw, testutil.FixedNow)
		assert.True(t, errors.Is(err, apierrors.ErrNotAuthenticated))
	})

	t.Run("unsigned format", func(t *testing.T) {
		legacy, err := NewUnsignedIssuer(time.Hour).Issue("ABC-1", "dev1", testutil.FixedNow)
		require.NoError(t, err)
		_, err = s.Verify(legacy, testutil.FixedNow)
		assert.True(t, errors.Is(err, apierrors.ErrNotAuthenticated))
	})
}

func TestNewSignedIssuer_ShortSecret(t *testing.T) {
	_, err := NewSignedIssuer([]byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestNewIssuer(t *testing.T) {
	cfg := config.Default().Token

	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &UnsignedIssuer{}, issuer)

	cfg.Mode = config.TokenSigned
	cfg.Secret = testSecret
	issuer, err = NewIssuer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SignedIssuer{}, issuer)

	cfg.Mode = "rot13"
	_, err = NewIssuer(cfg)
	assert.Error(t, err)
}
