package license

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts/domain"
)

// TokenIssuer mints and verifies the session token carried in the session cookie.
type TokenIssuer interface {
	Issue(key, deviceID string, at time.Time) (string, error)
	Verify(token string, now time.Time) (Claims, error)
}

// Claims is what a verified token says about its bearer.
type Claims struct {
	Key string
	// Device is the raw device id for unsigned tokens and its sha256 hex
	// digest for signed tokens.
	Device    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// ID is empty for unsigned tokens.
	ID string
}

// UnsignedIssuer produces base64url("KEY:deviceId:unixMillis"), with the key
// query-escaped so a colon in it cannot move the separator. Verify only
// checks the structure and age of the token; it cannot tell a token this
// server issued from one a client assembled itself.
type UnsignedIssuer struct {
	ttl time.Duration
}

// NewUnsignedIssuer returns an issuer whose tokens are accepted for ttl after issue.
func NewUnsignedIssuer(ttl time.Duration) *UnsignedIssuer {
	return &UnsignedIssuer{ttl: ttl}
}

// Issue implements TokenIssuer.
func (u *UnsignedIssuer) Issue(key, deviceID string, at time.Time) (string, error) {
	key = domain.NormalizeKey(key)
	if key == "" || deviceID == "" {
		return "", fmt.Errorf("issue token: key and device id required: %w", apierrors.ErrInvalidRequest)
	}
	raw := url.QueryEscape(key) + ":" + deviceID + ":" + strconv.FormatInt(at.UnixMilli(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Verify implements TokenIssuer.
func (u *UnsignedIssuer) Verify(token string, now time.Time) (Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, fmt.Errorf("decode session token: %v: %w", err, apierrors.ErrNotAuthenticated)
	}

	// The escaped key holds no colon; device ids might.
	s := string(raw)
	first, last := strings.Index(s, ":"), strings.LastIndex(s, ":")
	if first <= 0 || last <= first+1 || last == len(s)-1 {
		return Claims{}, fmt.Errorf("malformed session token: %w", apierrors.ErrNotAuthenticated)
	}
	millis, err := strconv.ParseInt(s[last+1:], 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("malformed session token timestamp: %w", apierrors.ErrNotAuthenticated)
	}

	key, err := url.QueryUnescape(s[:first])
	if err != nil {
		return Claims{}, fmt.Errorf("malformed session token key: %w", apierrors.ErrNotAuthenticated)
	}

	issued := time.UnixMilli(millis).UTC()
	claims := Claims{
		Key:       key,
		Device:    s[first+1 : last],
		IssuedAt:  issued,
		ExpiresAt: issued.Add(u.ttl),
	}
	if !now.Before(claims.ExpiresAt) {
		return claims, fmt.Errorf("session token issued %s: %w", issued.Format(time.RFC3339), apierrors.ErrSessionExpired)
	}
	return claims, nil
}
