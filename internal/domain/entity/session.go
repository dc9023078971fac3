package entity

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the position of a refresh lineage in its state machine.
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionRevoked SessionState = "revoked"
	SessionExpired SessionState = "expired"
)

// RevocationReason records why a session was ended.
type RevocationReason string

const (
	RevokedByLogout          RevocationReason = "logout"
	RevokedByReuseDetection  RevocationReason = "reuse_detected"
	RevokedByPasswordReset   RevocationReason = "password_reset"
	RevokedByAccountDisabled RevocationReason = "account_disabled"
	RevokedByUser            RevocationReason = "revoked"
)

// Session is one continuous refresh lineage. The hashed secret changes on every rotation;
// ExpiresAt is fixed at creation and never extended.
type Session struct {
	ID                uuid.UUID        // Stable identifier embedded in every refresh token of the lineage.
	AccountID         uuid.UUID        // Owner of the lineage.
	RefreshTokenHash  string           // SHA-256 of the currently trusted refresh secret.
	ExpiresAt         time.Time        // Absolute ceiling.
	RevokedAt         *time.Time       // Set once, never cleared.
	RevokedReason     RevocationReason // Why the lineage ended.
	LastUsedIP        string
	LastUsedUserAgent string
	LastUsedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsRevoked reports whether the session has been revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired reports whether the absolute ceiling has passed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// State derives the lineage state at now. Revocation wins over expiry.
func (s *Session) State(now time.Time) SessionState {
	switch {
	case s.IsRevoked():
		return SessionRevoked
	case s.IsExpired(now):
		return SessionExpired
	default:
		return SessionActive
	}
}

// RemainingLifetime returns the time left until the ceiling, never negative.
func (s *Session) RemainingLifetime(now time.Time) time.Duration {
	if remaining := s.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}

	return 0
}
