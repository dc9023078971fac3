package repository

import (
	"context"

	"tenantauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrOrganizationNotFound is returned when no live organization matches the lookup.
var ErrOrganizationNotFound = errors.New("organization not found")

// OrganizationRepository persists tenants.
type OrganizationRepository interface {
	Create(ctx context.Context, organization *entity.Organization) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Organization, error)
}
