package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCategory separates access tokens from refresh tokens. Each category has its own signing secret.
type TokenCategory string

const (
	TokenCategoryAccess  TokenCategory = "access"
	TokenCategoryRefresh TokenCategory = "refresh"
)

// Claims is the payload carried inside a signed token.
// Access tokens carry the subject, organization, role, email and the session they were minted for.
// Refresh tokens carry only the subject, the session id and the rotating secret (RegisteredClaims.ID).
type Claims struct {
	OrganizationID string        `json:"org,omitempty"`
	Role           string        `json:"role,omitempty"`
	Email          string        `json:"email,omitempty"`
	SessionID      string        `json:"sid,omitempty"`
	Category       TokenCategory `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies bearer tokens.
type TokenService interface {
	// Issue signs claims for the given category, expiring ttl from now.
	// Subject, ID and any other registered claims set by the caller are kept; IssuedAt and ExpiresAt are overwritten.
	Issue(claims Claims, category TokenCategory, ttl time.Duration) (token string, expiresAt time.Time, err error)

	// Verify checks signature, structure, category and expiry. Any failure is domain ErrInvalidToken.
	Verify(token string, category TokenCategory) (*Claims, error)

	// AccessTokenTTL returns the configured lifetime of access tokens.
	AccessTokenTTL() time.Duration

	// RefreshTokenTTL returns the configured upper bound of a single refresh token's lifetime.
	RefreshTokenTTL() time.Duration
}
