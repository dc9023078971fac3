package repository

import (
	"context"

	"tenantauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrSubscriptionNotFound is returned when the organization has no subscription record.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionRepository persists billing records of tenants.
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.Subscription) error
	FindByOrganizationID(ctx context.Context, organizationID uuid.UUID) (*entity.Subscription, error)
}
