package license

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "vidgate/internal/errors"
	"vidgate/internal/shared/testutil"
)

// Unsigned tokens are the historical format. These tests pin its behavior,
// including the fact that a client can mint a token on its own.

func TestUnsignedIssuer_Format(t *testing.T) {
	u := NewUnsignedIssuer(24 * time.Hour)

	token, err := u.Issue(" abc-1 ", "dev1", testutil.FixedNow)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Equal(t, "ABC-1:dev1:1773489600000", string(raw))
}

func TestUnsignedIssuer_Deterministic(t *testing.T) {
	u := NewUnsignedIssuer(24 * time.Hour)
	a, err := u.Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)
	b, err := u.Issue("ABC-1", "dev1", testutil.FixedNow)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnsignedIssuer_Verify(t *testing.T) {
	u := NewUnsignedIssuer(24 * time.Hour)
	token, err := u.Issue("ABC-1", "mac:aa:bb", testutil.FixedNow)
	require.NoError(t, err)

	claims, err := u.Verify(token, testutil.FixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "ABC-1", claims.Key)
	assert.Equal(t, "mac:aa:bb", claims.Device, "device ids may contain colons")
	assert.Equal(t, testutil.FixedNow, claims.IssuedAt)
	assert.Equal(t, testutil.FixedNow.Add(24*time.Hour), claims.ExpiresAt)
	assert.Empty(t, claims.ID)

	_, err = u.Verify(token, testutil.FixedNow.Add(24*time.Hour))
	assert.True(t, errors.Is(err, apierrors.ErrSessionExpired))
}

func TestUnsignedIssuer_KeyWithColon(t *testing.T) {
	u := NewUnsignedIssuer(24 * time.Hour)
	token, err := u.Issue("AB:CD", "dev1", testutil.FixedNow)
	require.NoError(t, err)

	claims, err := u.Verify(token, testutil.FixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "AB:CD", claims.Key)
	assert.Equal(t, "dev1", claims.Device)
}

func TestUnsignedIssuer_AcceptsClientMintedToken(t *testing.T) {
	u := NewUnsignedIssuer(24 * time.Hour)
	forged := base64.RawURLEncoding.EncodeToString([]byte("ABC-1:dev1:1773489600000"))

	claims, err := u.Verify(forged, testutil.FixedNow)
	require.NoError(t, err, "unsigned tokens carry no proof of origin")
	assert.Equal(t, "ABC-1", claims.Key)
}

func TestUnsignedIssuer_RejectsMalformed(t *testing.T) {
	u := NewUnsignedIssuer(24 * time.Hour)
	for name, token := range map[string]string{
		"not base64":      "%%%",
		"no separators":   base64.RawURLEncoding.EncodeToString([]byte("ABC-1")),
		"no device":       base64.RawURLEncoding.EncodeToString([]byte("ABC-1::1773489600000")),
		"bad timestamp":   base64.RawURLEncoding.EncodeToString([]byte("ABC-1:dev1:yesterday")),
		"empty key":       base64.RawURLEncoding.EncodeToString([]byte(":dev1:1773489600000")),
		"empty issued at": base64.RawURLEncoding.EncodeToString([]byte("ABC-1:dev1:")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := u.Verify(token, testutil.FixedNow)
			assert.True(t, errors.Is(err, apierrors.ErrNotAuthenticated))
		})
	}
}

func TestUnsignedIssuer_RequiresKeyAndDevice(t *testing.T) {
	u := NewUnsignedIssuer(time.Hour)
	_, err := u.Issue("", "dev1", testutil.FixedNow)
	assert.True(t, errors.Is(err, apierrors.ErrInvalidRequest))
	_, err = u.Issue("ABC-1", "", testutil.FixedNow)
	assert.True(t, errors.Is(err, apierrors.ErrInvalidRequest))
}
