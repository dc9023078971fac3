package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"tenantauth/internal/domain/entity"
	"tenantauth/internal/domain/repository"
)

type sessionRepository struct {
	store   *Store
	locking bool
}

func (r *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	return r.store.view(ctx, r.locking, func(t *tables) error {
		if _, ok := t.accounts[session.AccountID]; !ok {
			return repository.ErrAccountNotFound
		}
		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		now := r.store.now()
		session.CreatedAt = now
		session.UpdatedAt = now
		t.sessions[session.ID] = *session

		return nil
	})
}

func (r *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var found *entity.Session
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok {
			return repository.ErrSessionNotFound
		}
		found = &s

		return nil
	})

	return found, err
}

// FindByIDForUpdate needs no extra locking: a transaction already holds the store exclusively.
func (r *sessionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	return r.FindByID(ctx, id)
}

func (r *sessionRepository) Rotate(ctx context.Context, params repository.RotateParams) (*entity.Session, error) {
	var rotated *entity.Session
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		s, ok := t.sessions[params.SessionID]
		if !ok || s.IsRevoked() || s.RefreshTokenHash != params.ExpectedHash {
			return repository.ErrSessionRotationConflict
		}

		s.RefreshTokenHash = params.NewHash
		s.ExpiresAt = params.ExpiresAt
		s.LastUsedIP = params.IP
		s.LastUsedUserAgent = params.UserAgent
		s.LastUsedAt = params.UsedAt
		s.UpdatedAt = r.store.now()
		t.sessions[s.ID] = s
		rotated = &s

		return nil
	})

	return rotated, err
}

func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID, reason entity.RevocationReason, at time.Time) error {
	return r.store.view(ctx, r.locking, func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok {
			return repository.ErrSessionNotFound
		}
		if !s.IsRevoked() {
			t.sessions[id] = revoked(s, reason, at)
		}

		return nil
	})
}

func (r *sessionRepository) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, reason entity.RevocationReason, at time.Time) (int64, error) {
	var n int64
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		for id, s := range t.sessions {
			if s.AccountID == accountID && !s.IsRevoked() {
				t.sessions[id] = revoked(s, reason, at)
				n++
			}
		}

		return nil
	})

	return n, err
}

func (r *sessionRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]*entity.Session, error) {
	var sessions []*entity.Session
	err := r.store.view(ctx, r.locking, func(t *tables) error {
		for _, s := range t.sessions {
			if s.AccountID == accountID && s.State(now) == entity.SessionActive {
				session := s
				sessions = append(sessions, &session)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

func revoked(s entity.Session, reason entity.RevocationReason, at time.Time) entity.Session {
	revokedAt := at
	s.RevokedAt = &revokedAt
	s.RevokedReason = reason
	s.UpdatedAt = at

	return s
}
