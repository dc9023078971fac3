package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "tenantauth/internal/delivery/context"
	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	sessionRepo repository.SessionRepository
	now         func() time.Time
	logger      *slog.Logger
}

// SessionServiceParams holds dependencies for SessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	SessionRepo repository.SessionRepository
	Logger      *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		sessionRepo: params.SessionRepo,
		now:         time.Now,
		logger:      params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ListSessions retrieves all active sessions for an account.
func (srv *sessionService) ListSessions(ctx context.Context, accountID, currentSessionID uuid.UUID) ([]*usecase.SessionView, error) {
	sessions, err := srv.sessionRepo.ListActiveByAccount(ctx, accountID, srv.now())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	views := make([]*usecase.SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, &usecase.SessionView{
			ID:                session.ID,
			CreatedAt:         session.CreatedAt,
			ExpiresAt:         session.ExpiresAt,
			LastUsedAt:        session.LastUsedAt,
			LastUsedIP:        session.LastUsedIP,
			LastUsedUserAgent: session.LastUsedUserAgent,
			Current:           session.ID == currentSessionID,
		})
	}

	return views, nil
}

// RevokeSession revokes one session of the account. Sessions of other accounts are reported as missing.
func (srv *sessionService) RevokeSession(ctx context.Context, accountID, sessionID uuid.UUID) error {
	session, err := srv.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return errors.Wrap(domainerrors.ErrSessionNotFound, "revoke session")
		}

		return errors.Wrap(err, "failed to load session")
	}
	if session.AccountID != accountID {
		return errors.Wrap(domainerrors.ErrSessionNotFound, "revoke session")
	}

	if err := srv.sessionRepo.Revoke(ctx, sessionID, entity.RevokedByUser, srv.now()); err != nil {
		return errors.Wrap(err, "failed to revoke session")
	}

	srv.log(ctx).Debug("Session revoked", slog.Any("account_id", accountID), slog.Any("session_id", sessionID))

	return nil
}
