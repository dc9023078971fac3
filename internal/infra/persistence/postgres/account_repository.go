package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/infra/persistence/model"
)

const joinLiveOrganization = "JOIN organizations ON organizations.id = accounts.organization_id " +
	"AND organizations.is_active = true AND organizations.deleted_at IS NULL"

// accountRepository implements the domain.AccountRepository interface using GORM.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// Create persists a new account. A uniqueness violation on email surfaces as repository.ErrEmailTaken.
func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	accountM := fromAccountDomain(account)

	if err := repo.db.WithContext(ctx).Create(accountM).Error; err != nil {
		return translateAccountWriteError(err, "failed to create account")
	}

	account.ID = accountM.ID
	account.CreatedAt = accountM.CreatedAt
	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

// FindByID retrieves a non-deleted account whose organization is live.
func (repo *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	var accountM model.AccountModel
	err := repo.liveScope(ctx).
		Where("accounts.id = ? AND accounts.deleted_at IS NULL", id).
		First(&accountM).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrAccountNotFound, "failed to find account by id")
	}

	return toAccountDomain(&accountM), nil
}

// FindByEmail reads from the primary: it backs login and the registration uniqueness check,
// neither of which can tolerate replica lag.
func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	var accountM model.AccountModel
	err := repo.liveScope(ctx).
		Clauses(dbresolver.Write).
		Where("accounts.email = ?", entity.NormalizeEmail(email)).
		First(&accountM).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrAccountNotFound, "failed to find account by email")
	}

	return toAccountDomain(&accountM), nil
}

// FindByResetTokenHash locks the matching account row so a reset token is consumed at most once.
func (repo *accountRepository) FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	var accountM model.AccountModel
	err := repo.liveScope(ctx).
		Clauses(dbresolver.Write, clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "accounts"}}).
		Where("accounts.password_reset_token_hash = ? AND accounts.password_reset_expires_at > ? AND accounts.deleted_at IS NULL", tokenHash, now).
		First(&accountM).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrAccountNotFound, "failed to find account by reset token")
	}

	return toAccountDomain(&accountM), nil
}

// ListByOrganization lists the non-deleted accounts of a tenant, oldest first.
func (repo *accountRepository) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*entity.Account, error) {
	var accountModels []*model.AccountModel
	err := repo.db.WithContext(ctx).
		Where("organization_id = ? AND deleted_at IS NULL", organizationID).
		Order("created_at ASC").
		Find(&accountModels).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list accounts")
	}

	accounts := make([]*entity.Account, 0, len(accountModels))
	for _, accountM := range accountModels {
		accounts = append(accounts, toAccountDomain(accountM))
	}

	return accounts, nil
}

// SetResetToken writes only the reset columns so concurrent changes to the rest of the row survive.
func (repo *accountRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ? AND is_active = true AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"password_reset_token_hash": tokenHash,
			"password_reset_expires_at": expiresAt,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to store reset token")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

// Update writes every mutable column, zero values included.
func (repo *accountRepository) Update(ctx context.Context, account *entity.Account) error {
	accountM := fromAccountDomain(account)

	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{ID: account.ID}).
		Select("*").
		Omit("id", "created_at", "Organization", "Sessions").
		Updates(accountM)
	if result.Error != nil {
		return translateAccountWriteError(result.Error, "failed to update account")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

func (repo *accountRepository) liveScope(ctx context.Context) *gorm.DB {
	return repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Select("accounts.*").
		Joins(joinLiveOrganization)
}

func translateAccountWriteError(err error, details string) error {
	switch {
	case isUniqueConstraintViolation(err):
		return repository.ErrEmailTaken
	case isForeignKeyConstraintViolation(err):
		return repository.ErrOrganizationNotFound
	case isNotNullConstraintViolation(err), isCheckConstraintViolation(err):
		return domainerrors.ErrValidationFailed.WrapMessage(details)
	default:
		return domainerrors.NewDatabaseExecuteError(err, details)
	}
}

// notFoundOr maps gorm.ErrRecordNotFound to the given sentinel and anything else to a database error.
func notFoundOr(err, notFound error, details string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}

	return domainerrors.NewDatabaseExecuteError(err, details)
}

// --- Mapper Functions ---

// toAccountDomain converts a GORM AccountModel to a domain Account entity.
func toAccountDomain(data *model.AccountModel) *entity.Account {
	if data == nil {
		return nil
	}

	return &entity.Account{
		ID:                     data.ID,
		OrganizationID:         data.OrganizationID,
		Email:                  data.Email,
		PasswordHash:           data.PasswordHash,
		FullName:               data.FullName,
		Role:                   entity.Role(data.Role),
		IsActive:               data.IsActive,
		DeletedAt:              data.DeletedAt,
		PasswordResetTokenHash: data.PasswordResetTokenHash,
		PasswordResetExpiresAt: data.PasswordResetExpiresAt,
		CreatedAt:              data.CreatedAt,
		UpdatedAt:              data.UpdatedAt,
	}
}

// fromAccountDomain converts a domain Account entity to a GORM AccountModel.
func fromAccountDomain(data *entity.Account) *model.AccountModel {
	if data == nil {
		return nil
	}

	return &model.AccountModel{
		ID:                     data.ID,
		OrganizationID:         data.OrganizationID,
		Email:                  entity.NormalizeEmail(data.Email),
		PasswordHash:           data.PasswordHash,
		FullName:               data.FullName,
		Role:                   data.Role.String(),
		IsActive:               data.IsActive,
		DeletedAt:              data.DeletedAt,
		PasswordResetTokenHash: data.PasswordResetTokenHash,
		PasswordResetExpiresAt: data.PasswordResetExpiresAt,
		CreatedAt:              data.CreatedAt,
		UpdatedAt:              data.UpdatedAt,
	}
}
