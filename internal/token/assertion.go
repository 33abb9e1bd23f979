package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kmoray/trestle/internal/config"
)

// BuildAssertion creates and signs a fresh RS256 JWT-bearer assertion.
// Every call generates a new jti; assertions are never reused or cached,
// only the access token they are exchanged for is. The lifetime is clamped
// to config.MaxJWTLifetime.
func BuildAssertion(key *KeyMaterial, issuer, subject, audience string, lifetime time.Duration) (string, error) {
	if key == nil || key.PrivateKey == nil {
		return "", fmt.Errorf("build assertion: %w", ErrKeyMaterial)
	}
	if audience == "" {
		return "", fmt.Errorf("build assertion: audience is empty")
	}

	if lifetime <= 0 {
		lifetime = config.DefaultJWTLifetime
	}
	if lifetime > config.MaxJWTLifetime {
		lifetime = config.MaxJWTLifetime
	}

	now := timeNow().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = key.KeyID

	signed, err := tok.SignedString(key.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
