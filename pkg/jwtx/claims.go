package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminator values for the "token_type" claim. Access and
// refresh tokens are signed with independent keys, but the claim is checked
// as well so a token can never be replayed on the wrong channel.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Default token TTL constants. These provide sensible security defaults
// but can be overridden per-service via config.
const (
	// DefaultAccessTTL is the default lifetime for access tokens.
	// Short-lived for security - typical range is 15m to 1h.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL is the default lifetime for refresh tokens.
	DefaultRefreshTTL = 14 * 24 * time.Hour

	// DefaultRememberMeTTL is the extended refresh lifetime granted when
	// a login requests "remember me".
	DefaultRememberMeTTL = 90 * 24 * time.Hour
)

// Claims are the signed token claims used across the service. We keep
// changes additive to preserve compatibility for later.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType discriminates access from refresh tokens ("access"|"refresh").
	TokenType string `json:"token_type"`

	// Role is the user's permission class at issue time.
	Role string `json:"role,omitempty"`

	// OrganizationID is the user's primary organization, if any.
	OrganizationID string `json:"org_id,omitempty"`

	// SessionVersion is the per-user counter used for instant bulk
	// invalidation. A token minted against an older version is stale.
	SessionVersion int64 `json:"sv,omitempty"`
}

// NewClaims builds minimally-correct claims for the given token type.
func NewClaims(
	tokenType, subject string,
	role, organizationID string,
	sessionVersion int64,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TokenType:      tokenType,
		Role:           role,
		OrganizationID: organizationID,
		SessionVersion: sessionVersion,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
