// Package memory is a process-local credential store. It backs development runs and the
// engine tests; every transaction is serialized behind one mutex.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenantauth/internal/domain/entity"
	"tenantauth/internal/domain/repository"
)

type tables struct {
	organizations map[uuid.UUID]entity.Organization
	subscriptions map[uuid.UUID]entity.Subscription
	accounts      map[uuid.UUID]entity.Account
	sessions      map[uuid.UUID]entity.Session
}

func newTables() *tables {
	return &tables{
		organizations: make(map[uuid.UUID]entity.Organization),
		subscriptions: make(map[uuid.UUID]entity.Subscription),
		accounts:      make(map[uuid.UUID]entity.Account),
		sessions:      make(map[uuid.UUID]entity.Session),
	}
}

// clone copies the maps. Entities are stored by value; their pointer fields are never mutated in place.
func (t *tables) clone() *tables {
	out := newTables()
	for k, v := range t.organizations {
		out.organizations[k] = v
	}
	for k, v := range t.subscriptions {
		out.subscriptions[k] = v
	}
	for k, v := range t.accounts {
		out.accounts[k] = v
	}
	for k, v := range t.sessions {
		out.sessions[k] = v
	}

	return out
}

// Store implements repository.TransactionManager and hands out repositories that lock per call.
// Repositories obtained from Store must not be used inside Execute; use the factory passed to fn.
type Store struct {
	mu   sync.Mutex
	data *tables
	now  func() time.Time
}

var (
	_ repository.TransactionManager = (*Store)(nil)
	_ repository.RepositoryFactory  = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newTables(), now: time.Now}
}

// Execute runs fn with exclusive access to the store. When fn fails or panics every write it made is discarded.
func (s *Store) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(&txFactory{store: s}); err != nil {
		return err
	}
	committed = true

	return nil
}

func (s *Store) AccountRepo() repository.AccountRepository {
	return &accountRepository{store: s, locking: true}
}

func (s *Store) OrganizationRepo() repository.OrganizationRepository {
	return &organizationRepository{store: s, locking: true}
}

func (s *Store) SubscriptionRepo() repository.SubscriptionRepository {
	return &subscriptionRepository{store: s, locking: true}
}

func (s *Store) SessionRepo() repository.SessionRepository {
	return &sessionRepository{store: s, locking: true}
}

// view runs fn against the live tables, taking the lock unless the caller already holds it.
func (s *Store) view(ctx context.Context, locking bool, fn func(t *tables) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if locking {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	return fn(s.data)
}

// txFactory binds repositories to a transaction already holding the store lock.
type txFactory struct {
	store *Store
}

func (f *txFactory) AccountRepo() repository.AccountRepository {
	return &accountRepository{store: f.store}
}

func (f *txFactory) OrganizationRepo() repository.OrganizationRepository {
	return &organizationRepository{store: f.store}
}

func (f *txFactory) SubscriptionRepo() repository.SubscriptionRepository {
	return &subscriptionRepository{store: f.store}
}

func (f *txFactory) SessionRepo() repository.SessionRepository {
	return &sessionRepository{store: f.store}
}
