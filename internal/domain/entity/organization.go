package entity

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant boundary. Every Account references exactly one live Organization.
type Organization struct {
	ID            uuid.UUID  // Global unique identifier of the tenant.
	Name          string     // Display name of the company.
	TaxID         string     // Company tax identifier (ICE).
	LogoURL       string     // Optional logo location.
	Phone         string     // Contact phone.
	Address       string     // Street address.
	City          string     // City.
	Email         string     // Company contact email.
	LegalMentions string     // Free-form legal footer printed on documents.
	IsActive      bool       // Inactive tenants keep their data but are not served.
	DeletedAt     *time.Time // Soft-delete marker.
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLive reports whether the organization is active and not soft-deleted.
func (o *Organization) IsLive() bool {
	return o != nil && o.IsActive && o.DeletedAt == nil
}

// SubscriptionPlan names a billing plan.
type SubscriptionPlan string

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	// PlanFree is the starter plan attached to every new organization.
	PlanFree SubscriptionPlan = "FREE"

	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Subscription is the billing record of an organization. Registration creates the starter one.
type Subscription struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Plan           SubscriptionPlan
	Status         SubscriptionStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewStarterSubscription returns the subscription every registration starts with.
func NewStarterSubscription(organizationID uuid.UUID) *Subscription {
	return &Subscription{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Plan:           PlanFree,
		Status:         SubscriptionActive,
	}
}
