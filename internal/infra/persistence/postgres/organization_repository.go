package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/infra/persistence/model"
)

type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository is the constructor for organizationRepository.
func NewOrganizationRepository(db *gorm.DB) repository.OrganizationRepository {
	return &organizationRepository{db: db}
}

func (repo *organizationRepository) Create(ctx context.Context, organization *entity.Organization) error {
	orgM := fromOrganizationDomain(organization)

	if err := repo.db.WithContext(ctx).Create(orgM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create organization")
	}

	organization.ID = orgM.ID
	organization.CreatedAt = orgM.CreatedAt
	organization.UpdatedAt = orgM.UpdatedAt

	return nil
}

// FindByID retrieves a live organization.
func (repo *organizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Organization, error) {
	var orgM model.OrganizationModel
	err := repo.db.WithContext(ctx).
		Where("id = ? AND is_active = true AND deleted_at IS NULL", id).
		First(&orgM).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrOrganizationNotFound, "failed to find organization")
	}

	return toOrganizationDomain(&orgM), nil
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository is the constructor for subscriptionRepository.
func NewSubscriptionRepository(db *gorm.DB) repository.SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (repo *subscriptionRepository) Create(ctx context.Context, subscription *entity.Subscription) error {
	subM := fromSubscriptionDomain(subscription)

	if err := repo.db.WithContext(ctx).Create(subM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrOrganizationNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create subscription")
	}

	subscription.ID = subM.ID
	subscription.CreatedAt = subM.CreatedAt
	subscription.UpdatedAt = subM.UpdatedAt

	return nil
}

// FindByOrganizationID returns the most recent subscription of the organization.
func (repo *subscriptionRepository) FindByOrganizationID(ctx context.Context, organizationID uuid.UUID) (*entity.Subscription, error) {
	var subM model.SubscriptionModel
	err := repo.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		First(&subM).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrSubscriptionNotFound, "failed to find subscription")
	}

	return toSubscriptionDomain(&subM), nil
}

// --- Mapper Functions ---

func toOrganizationDomain(data *model.OrganizationModel) *entity.Organization {
	if data == nil {
		return nil
	}

	return &entity.Organization{
		ID:            data.ID,
		Name:          data.Name,
		TaxID:         data.TaxID,
		LogoURL:       data.LogoURL,
		Phone:         data.Phone,
		Address:       data.Address,
		City:          data.City,
		Email:         data.Email,
		LegalMentions: data.LegalMentions,
		IsActive:      data.IsActive,
		DeletedAt:     data.DeletedAt,
		CreatedAt:     data.CreatedAt,
		UpdatedAt:     data.UpdatedAt,
	}
}

func fromOrganizationDomain(data *entity.Organization) *model.OrganizationModel {
	if data == nil {
		return nil
	}

	return &model.OrganizationModel{
		ID:            data.ID,
		Name:          data.Name,
		TaxID:         data.TaxID,
		LogoURL:       data.LogoURL,
		Phone:         data.Phone,
		Address:       data.Address,
		City:          data.City,
		Email:         data.Email,
		LegalMentions: data.LegalMentions,
		IsActive:      data.IsActive,
		DeletedAt:     data.DeletedAt,
		CreatedAt:     data.CreatedAt,
		UpdatedAt:     data.UpdatedAt,
	}
}

func toSubscriptionDomain(data *model.SubscriptionModel) *entity.Subscription {
	return &entity.Subscription{
		ID:             data.ID,
		OrganizationID: data.OrganizationID,
		Plan:           entity.SubscriptionPlan(data.Plan),
		Status:         entity.SubscriptionStatus(data.Status),
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

func fromSubscriptionDomain(data *entity.Subscription) *model.SubscriptionModel {
	return &model.SubscriptionModel{
		ID:             data.ID,
		OrganizationID: data.OrganizationID,
		Plan:           string(data.Plan),
		Status:         string(data.Status),
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}
