// Package padtoken mints and verifies the HS256 service tokens that
// authenticate the pad sync channel. The review API accepts assessment
// snapshots only from callers holding a token signed with the shared
// secret, so pad content can never be injected by an ordinary client.
package padtoken

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

const (
	// Issuer identifies tokens minted for the pad sync channel.
	Issuer = "paperstacks"
	// Subject names the service identity the token represents.
	Subject = "padsync"
	// DefaultTTL bounds how long a minted token stays valid.
	DefaultTTL = time.Hour
)

// Mint signs a short-lived service token with the shared secret.
func Mint(secret string, now time.Time, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "pad token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify checks a service token against the shared secret. Signature,
// expiry, issuer, and subject must all match.
func Verify(secret, token string) error {
	if strings.TrimSpace(secret) == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "pad token secret is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "service token is required")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return mapJWTError(err)
	}

	if claims.Issuer != Issuer {
		return apperrors.WithMetadata(apperrors.CodeUnauthenticated,
			"service token issuer mismatch",
			map[string]string{"Issuer": claims.Issuer})
	}
	if claims.Subject != Subject {
		return apperrors.WithMetadata(apperrors.CodeUnauthenticated,
			"service token subject mismatch",
			map[string]string{"Subject": claims.Subject})
	}
	return nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.New(apperrors.CodeUnauthenticated, "service token is expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.New(apperrors.CodeUnauthenticated, "service token signature is invalid")
	default:
		return apperrors.New(apperrors.CodeUnauthenticated, "service token is invalid")
	}
}
