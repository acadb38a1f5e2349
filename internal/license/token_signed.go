package license

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"vidgate/internal/config"
	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts/domain"
)

const (
	tokenKeyInfo = "vidgate session token v1"
	tokenIssuer  = "vidgate"
)

type sessionClaims struct {
	Device string `json:"dev"`
	jwt.RegisteredClaims
}

// SignedIssuer issues HS256 JWTs. The MAC key is derived from the configured
// secret with HKDF-SHA256; the secret itself never signs anything.
type SignedIssuer struct {
	key []byte
	ttl time.Duration
}

// NewSignedIssuer derives the signing key from secret.
func NewSignedIssuer(secret []byte, ttl time.Duration) (*SignedIssuer, error) {
	if len(secret) < config.MinSigningSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", config.MinSigningSecretLen, len(secret))
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(tokenKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return &SignedIssuer{key: key, ttl: ttl}, nil
}

// DeviceDigest is the device claim carried by signed tokens.
func DeviceDigest(deviceID string) string {
	sum := sha256.Sum256([]byte(deviceID))
	return hex.EncodeToString(sum[:])
}

// Issue implements TokenIssuer.
func (s *SignedIssuer) Issue(key, deviceID string, at time.Time) (string, error) {
	key = domain.NormalizeKey(key)
	if key == "" || deviceID == "" {
		return "", fmt.Errorf("issue token: key and device id required: %w", apierrors.ErrInvalidRequest)
	}
	claims := sessionClaims{
		Device: DeviceDigest(deviceID),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(at),
			ExpiresAt: jwt.NewNumericDate(at.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify implements TokenIssuer. Only HS256 under the derived key is accepted.
func (s *SignedIssuer) Verify(token string, now time.Time) (Claims, error) {
	var sc sessionClaims
	_, err := jwt.ParseWithClaims(token, &sc,
		func(*jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, fmt.Errorf("verify session token: %v: %w", err, apierrors.ErrSessionExpired)
	case err != nil:
		return Claims{}, fmt.Errorf("verify session token: %v: %w", err, apierrors.ErrNotAuthenticated)
	}

	claims := Claims{
		Key:    sc.Subject,
		Device: sc.Device,
		ID:     sc.ID,
	}
	if sc.IssuedAt != nil {
		claims.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		claims.ExpiresAt = sc.ExpiresAt.Time
	}
	return claims, nil
}

// NewIssuer builds the issuer selected by cfg.Mode.
func NewIssuer(cfg config.TokenConfig) (TokenIssuer, error) {
	switch cfg.Mode {
	case config.TokenUnsigned:
		return NewUnsignedIssuer(cfg.MaxAge), nil
	case config.TokenSigned:
		return NewSignedIssuer([]byte(cfg.Secret), cfg.MaxAge)
	}
	return nil, fmt.Errorf("unknown token mode %q", cfg.Mode)
}
