// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"tenantauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when the store's uniqueness constraint rejects an email.
	ErrEmailTaken = errors.New("email already taken")
)

// AccountRepository persists Account records. Lookups used for authentication only return
// accounts whose organization is live; liveness of the account itself is left to entity.Account.IsLive.
type AccountRepository interface {
	// Create inserts a new account. Returns ErrEmailTaken on a uniqueness violation.
	Create(ctx context.Context, account *entity.Account) error

	// FindByID retrieves a non-deleted account of a live organization.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByEmail retrieves the account bound to email, soft-deleted or not, if its organization is live.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// FindByResetTokenHash retrieves the account holding the given reset token hash, unexpired at now.
	FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error)

	// ListByOrganization lists non-deleted accounts of an organization ordered by creation time.
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*entity.Account, error)

	// SetResetToken stores an outstanding reset token on an active, non-deleted account and touches
	// nothing else. Returns ErrAccountNotFound when no such account exists.
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error

	// Update persists every mutable field of the account.
	Update(ctx context.Context, account *entity.Account) error
}
