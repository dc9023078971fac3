package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"tenantauth/internal/domain/entity"
	"tenantauth/internal/domain/repository"
)

type accountRepository struct {
	store   *Store
	locking bool
}

func (r *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	return r.store.view(ctx, r.locking, func(t *tables) error {
		email := entity.NormalizeEmail(account.Email)
		for _, existing := range t.accounts {
			if existing.Email == email {
				return repository.ErrEmailTaken
			}
		}
		if _, ok := t.organizations[account.OrganizationID]; !ok {
			return repository.ErrOrganizationNotFound
		}

		if account.ID == uuid.Nil {
			account.ID = uuid.New()
		}
		now := r.store.now()
		account.Email = email
		account.CreatedAt = now
		account.UpdatedAt = now
		t.accounts[account.ID] = *account

		return nil
	})
}

func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return r.findOne(ctx, func(a *entity.Account) bool {
		return a.ID == id && a.DeletedAt == nil
	})
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	email = entity.NormalizeEmail(email)

	return r.findOne(ctx, func(a *entity.Account) bool {
		return a.Email == email
	})
}

func (r *accountRepository) FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	return r.findOne(ctx, func(a *entity.Account) bool {
		return a.DeletedAt == nil && a.HasValidResetToken(tokenHash, now)
	})
}

func (r *accountRepository) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*entity.Account, error) {
	var accounts []*entity.Account
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		for _, a := range t.accounts {
			if a.OrganizationID == organizationID && a.DeletedAt == nil {
				account := a
				accounts = append(accounts, &account)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})

	return accounts, nil
}

func (r *accountRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.store.view(ctx, r.locking, func(t *tables) error {
		stored, ok := t.accounts[id]
		if !ok || !stored.IsActive || stored.DeletedAt != nil {
			return repository.ErrAccountNotFound
		}

		stored.SetResetToken(tokenHash, expiresAt)
		stored.UpdatedAt = r.store.now()
		t.accounts[id] = stored

		return nil
	})
}

func (r *accountRepository) Update(ctx context.Context, account *entity.Account) error {
	return r.store.view(ctx, r.locking, func(t *tables) error {
		stored, ok := t.accounts[account.ID]
		if !ok {
			return repository.ErrAccountNotFound
		}

		email := entity.NormalizeEmail(account.Email)
		for id, existing := range t.accounts {
			if id != account.ID && existing.Email == email {
				return repository.ErrEmailTaken
			}
		}

		account.Email = email
		account.CreatedAt = stored.CreatedAt
		account.UpdatedAt = r.store.now()
		t.accounts[account.ID] = *account

		return nil
	})
}

// findOne returns a copy of the first account matching the predicate whose organization is live.
func (r *accountRepository) findOne(ctx context.Context, match func(*entity.Account) bool) (*entity.Account, error) {
	var found *entity.Account
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		for _, a := range t.accounts {
			account := a
			if !match(&account) {
				continue
			}
			org, ok := t.organizations[account.OrganizationID]
			if !ok || !org.IsLive() {
				continue
			}
			found = &account

			return nil
		}

		return repository.ErrAccountNotFound
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}
