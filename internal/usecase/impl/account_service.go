package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "tenantauth/internal/delivery/context"
	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/domain/service"
	"tenantauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	txManager   repository.TransactionManager
	accountRepo repository.AccountRepository
	hasher      service.PasswordHasher
	now         func() time.Time
	logger      *slog.Logger
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	TxManager   repository.TransactionManager
	AccountRepo repository.AccountRepository
	Hasher      service.PasswordHasher
	Logger      *slog.Logger
}

// NewAccountService is the constructor for accountService.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	return &accountService{
		txManager:   params.TxManager,
		accountRepo: params.AccountRepo,
		hasher:      params.Hasher,
		now:         time.Now,
		logger:      params.Logger,
	}
}

func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateAccount adds a member to the organization.
func (srv *accountService) CreateAccount(ctx context.Context, organizationID uuid.UUID, input usecase.CreateAccountInput) (*usecase.AccountView, error) {
	email := entity.NormalizeEmail(input.Email)
	if email == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("email is required")
	}
	if !input.Role.IsValid() {
		return nil, errors.Wrap(domainerrors.ErrInvalidRole, "create account")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	account := &entity.Account{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Email:          email,
		PasswordHash:   passwordHash,
		FullName:       input.FullName,
		Role:           input.Role,
		IsActive:       true,
	}
	if err := srv.accountRepo.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, errors.Wrap(domainerrors.ErrDuplicateEmail, "create account")
		case errors.Is(err, repository.ErrOrganizationNotFound):
			return nil, errors.Wrap(domainerrors.ErrForbidden, "organization is not live")
		default:
			return nil, errors.Wrap(err, "failed to create account")
		}
	}

	srv.log(ctx).Info("Account created",
		slog.Any("target_account_id", account.ID),
		slog.String("role", account.Role.String()),
	)

	return usecase.NewAccountView(account), nil
}

// ListAccounts lists the organization's accounts.
func (srv *accountService) ListAccounts(ctx context.Context, organizationID uuid.UUID) ([]*usecase.AccountView, error) {
	accounts, err := srv.accountRepo.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list accounts")
	}

	views := make([]*usecase.AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, usecase.NewAccountView(account))
	}

	return views, nil
}

// GetAccount returns one account of the organization.
func (srv *accountService) GetAccount(ctx context.Context, organizationID, accountID uuid.UUID) (*usecase.AccountView, error) {
	account, err := loadTenantAccount(ctx, srv.accountRepo, organizationID, accountID)
	if err != nil {
		return nil, err
	}

	return usecase.NewAccountView(account), nil
}

// UpdateAccount applies the given changes.
func (srv *accountService) UpdateAccount(
	ctx context.Context,
	organizationID, accountID uuid.UUID,
	input usecase.UpdateAccountInput,
) (*usecase.AccountView, error) {
	if input.Role != nil && !input.Role.IsValid() {
		return nil, errors.Wrap(domainerrors.ErrInvalidRole, "update account")
	}

	var passwordHash string
	if input.Password != nil {
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}

		var err error
		if passwordHash, err = srv.hasher.Hash(*input.Password); err != nil {
			return nil, errors.Wrap(err, "failed to hash password")
		}
	}

	var updated *entity.Account
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accounts := repoFactory.AccountRepo()

		account, err := loadTenantAccount(ctx, accounts, organizationID, accountID)
		if err != nil {
			return err
		}

		var revokeReason entity.RevocationReason
		if input.FullName != nil {
			account.FullName = *input.FullName
		}
		if input.Role != nil {
			account.Role = *input.Role
		}
		if passwordHash != "" {
			account.PasswordHash = passwordHash
			account.ClearResetToken()
			revokeReason = entity.RevokedByPasswordReset
		}
		if input.IsActive != nil {
			if account.IsActive && !*input.IsActive {
				revokeReason = entity.RevokedByAccountDisabled
			}
			account.IsActive = *input.IsActive
		}

		if err := accounts.Update(ctx, account); err != nil {
			return errors.Wrap(err, "failed to update account")
		}
		if revokeReason != "" {
			if _, err := repoFactory.SessionRepo().RevokeAllForAccount(ctx, account.ID, revokeReason, srv.now()); err != nil {
				return errors.Wrap(err, "failed to revoke sessions")
			}
		}
		updated = account

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute account update transaction")
	}

	srv.log(ctx).Info("Account updated", slog.Any("target_account_id", accountID))

	return usecase.NewAccountView(updated), nil
}

// DeleteAccount soft-deletes the account.
func (srv *accountService) DeleteAccount(ctx context.Context, organizationID, accountID uuid.UUID) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accounts := repoFactory.AccountRepo()

		account, err := loadTenantAccount(ctx, accounts, organizationID, accountID)
		if err != nil {
			return err
		}

		now := srv.now()
		account.SoftDelete(now)
		if err := accounts.Update(ctx, account); err != nil {
			return errors.Wrap(err, "failed to delete account")
		}
		if _, err := repoFactory.SessionRepo().RevokeAllForAccount(ctx, account.ID, entity.RevokedByAccountDisabled, now); err != nil {
			return errors.Wrap(err, "failed to revoke sessions")
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to execute account deletion transaction")
	}

	srv.log(ctx).Info("Account deleted", slog.Any("target_account_id", accountID))

	return nil
}

// loadTenantAccount finds an account and hides it unless it belongs to organizationID.
func loadTenantAccount(ctx context.Context, accounts repository.AccountRepository, organizationID, accountID uuid.UUID) (*entity.Account, error) {
	account, err := accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "account lookup")
		}

		return nil, errors.Wrap(err, "failed to load account")
	}
	if account.OrganizationID != organizationID {
		return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "account lookup")
	}

	return account, nil
}
