package memory

import (
	"context"

	"github.com/google/uuid"

	"tenantauth/internal/domain/entity"
	"tenantauth/internal/domain/repository"
)

type organizationRepository struct {
	store   *Store
	locking bool
}

func (r *organizationRepository) Create(ctx context.Context, organization *entity.Organization) error {
	return r.store.view(ctx, r.locking, func(t *tables) error {
		if organization.ID == uuid.Nil {
			organization.ID = uuid.New()
		}
		now := r.store.now()
		organization.CreatedAt = now
		organization.UpdatedAt = now
		t.organizations[organization.ID] = *organization

		return nil
	})
}

func (r *organizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Organization, error) {
	var found *entity.Organization
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		org, ok := t.organizations[id]
		if !ok || !org.IsLive() {
			return repository.ErrOrganizationNotFound
		}
		found = &org

		return nil
	})

	return found, err
}

type subscriptionRepository struct {
	store   *Store
	locking bool
}

func (r *subscriptionRepository) Create(ctx context.Context, subscription *entity.Subscription) error {
	return r.store.view(ctx, r.locking, func(t *tables) error {
		if _, ok := t.organizations[subscription.OrganizationID]; !ok {
			return repository.ErrOrganizationNotFound
		}
		if subscription.ID == uuid.Nil {
			subscription.ID = uuid.New()
		}
		now := r.store.now()
		subscription.CreatedAt = now
		subscription.UpdatedAt = now
		t.subscriptions[subscription.ID] = *subscription

		return nil
	})
}

func (r *subscriptionRepository) FindByOrganizationID(ctx context.Context, organizationID uuid.UUID) (*entity.Subscription, error) {
	var found *entity.Subscription
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		for _, s := range t.subscriptions {
			if s.OrganizationID != organizationID {
				continue
			}
			if found == nil || s.CreatedAt.After(found.CreatedAt) {
				sub := s
				found = &sub
			}
		}
		if found == nil {
			return repository.ErrSubscriptionNotFound
		}

		return nil
	})

	return found, err
}
