package entity

import "slices"

// Role is the fixed set of account roles inside an organization.
type Role string

const (
	// RoleOwner is assigned to the account created together with its organization.
	RoleOwner Role = "owner"
	// RoleAdmin can manage the organization's accounts.
	RoleAdmin Role = "admin"
	// RoleAgent is a regular member.
	RoleAgent Role = "agent"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleAgent:
		return true
	default:
		return false
	}
}

// CanManageAccounts reports whether the role may create, update or delete other accounts.
func (r Role) CanManageAccounts() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Roles is a slice of Role for convenience.
type Roles []Role

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}
