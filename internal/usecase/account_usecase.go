package usecase

import (
	"context"

	"tenantauth/internal/domain/entity"

	"github.com/google/uuid"
)

// CreateAccountInput defines a new member of an existing organization.
type CreateAccountInput struct {
	Email    string
	Password string
	FullName string
	Role     entity.Role
}

// UpdateAccountInput carries the fields to change; nil fields are left untouched.
type UpdateAccountInput struct {
	FullName *string
	Role     *entity.Role
	IsActive *bool
	Password *string
}

// AccountUsecase administers the accounts of one organization. Every call is scoped by the
// caller's organization, so an account of another tenant behaves as if it did not exist.
type AccountUsecase interface {
	CreateAccount(ctx context.Context, organizationID uuid.UUID, input CreateAccountInput) (*AccountView, error)
	ListAccounts(ctx context.Context, organizationID uuid.UUID) ([]*AccountView, error)
	GetAccount(ctx context.Context, organizationID, accountID uuid.UUID) (*AccountView, error)
	// UpdateAccount revokes the account's sessions when it is deactivated or its password changes.
	UpdateAccount(ctx context.Context, organizationID, accountID uuid.UUID, input UpdateAccountInput) (*AccountView, error)
	// DeleteAccount soft-deletes the account and revokes its sessions.
	DeleteAccount(ctx context.Context, organizationID, accountID uuid.UUID) error
}
