// Package persistence selects the credential store backend.
package persistence

import (
	"log/slog"

	"go.uber.org/fx"

	"tenantauth/config"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/errors"
	"tenantauth/internal/infra/persistence/memory"
	"tenantauth/internal/infra/persistence/postgres"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// Repositories are the store-wide repositories and the transaction manager of one backend.
type Repositories struct {
	fx.Out

	TxManager        repository.TransactionManager
	AccountRepo      repository.AccountRepository
	OrganizationRepo repository.OrganizationRepository
	SubscriptionRepo repository.SubscriptionRepository
	SessionRepo      repository.SessionRepository
}

// NewRepositories opens the backend named by the storage setting. The postgres connection is only
// created when that backend is selected.
func NewRepositories(params Params) (Repositories, error) {
	switch params.Config.Storage {
	case config.StorageMemory:
		params.Logger.Warn("Using the in-memory credential store, data is lost on restart")
		store := memory.NewStore()

		return Repositories{
			TxManager:        store,
			AccountRepo:      store.AccountRepo(),
			OrganizationRepo: store.OrganizationRepo(),
			SubscriptionRepo: store.SubscriptionRepo(),
			SessionRepo:      store.SessionRepo(),
		}, nil

	case config.StoragePostgres, "":
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lifecycle,
			Config:    params.Config,
			Logger:    params.Logger,
		})
		if err != nil {
			return Repositories{}, err
		}

		return Repositories{
			TxManager:        postgres.NewTransactionManager(db),
			AccountRepo:      postgres.NewAccountRepository(db),
			OrganizationRepo: postgres.NewOrganizationRepository(db),
			SubscriptionRepo: postgres.NewSubscriptionRepository(db),
			SessionRepo:      postgres.NewSessionRepository(db),
		}, nil

	default:
		return Repositories{}, errors.Errorf("unknown storage driver: %s", params.Config.Storage)
	}
}
