// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is an identity scoped to exactly one Organization.
// Email is unique across the whole system, not only within the organization.
type Account struct {
	ID                     uuid.UUID  // Global unique identifier of the account.
	OrganizationID         uuid.UUID  // Tenant the account belongs to.
	Email                  string     // Login identifier, stored lower-cased.
	PasswordHash           string     // Salted one-way hash of the password.
	FullName               string     // Display name.
	Role                   Role       // owner, admin or agent.
	IsActive               bool       // Deactivated accounts cannot authenticate.
	DeletedAt              *time.Time // Soft-delete marker. Accounts are never physically removed.
	PasswordResetTokenHash *string    // SHA-256 of the outstanding reset token, if any.
	PasswordResetExpiresAt *time.Time // Expiry of the outstanding reset token.
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsLive reports whether the account may authenticate: active and not soft-deleted.
// Every authentication boundary goes through this predicate.
func (a *Account) IsLive() bool {
	return a != nil && a.IsActive && a.DeletedAt == nil
}

// HasValidResetToken reports whether tokenHash matches the outstanding reset token and it has not expired at now.
func (a *Account) HasValidResetToken(tokenHash string, now time.Time) bool {
	if a.PasswordResetTokenHash == nil || a.PasswordResetExpiresAt == nil {
		return false
	}

	return *a.PasswordResetTokenHash == tokenHash && now.Before(*a.PasswordResetExpiresAt)
}

// SetResetToken records a new outstanding reset token, replacing any previous one.
func (a *Account) SetResetToken(tokenHash string, expiresAt time.Time) {
	a.PasswordResetTokenHash = &tokenHash
	a.PasswordResetExpiresAt = &expiresAt
}

// ClearResetToken drops the outstanding reset token and its expiry.
func (a *Account) ClearResetToken() {
	a.PasswordResetTokenHash = nil
	a.PasswordResetExpiresAt = nil
}

// SoftDelete marks the account deleted and inactive at the given time.
func (a *Account) SoftDelete(at time.Time) {
	a.DeletedAt = &at
	a.IsActive = false
	a.ClearResetToken()
}

// NormalizeEmail trims and lower-cases an email so uniqueness holds regardless of input casing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
