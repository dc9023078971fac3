package impl

import (
	"context"
	"log/slog"

	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/domain/service"
	"tenantauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Refresh rotates the session named by a refresh token. The presented secret must match the
// hash the session currently trusts; a mismatch means an older token of the lineage was
// replayed, and every session of the account is revoked.
//
// The session row is locked for the whole exchange, so of two concurrent refreshes with the
// same token exactly one rotates and the other observes the new hash.
func (srv *authService) Refresh(ctx context.Context, input usecase.RefreshInput) (out *usecase.TokenPair, err error) {
	ctx, span := srv.startSpan(ctx, opRefresh)
	defer func() { srv.endSpan(span, opRefresh, err) }()

	claims, err := srv.tokenService.Verify(input.RefreshToken, service.TokenCategoryRefresh)
	if err != nil {
		return nil, err
	}

	accountID, errSub := uuid.Parse(claims.Subject)
	sessionID, errSid := uuid.Parse(claims.SessionID)
	if errSub != nil || errSid != nil || claims.ID == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "malformed refresh token identifiers")
	}

	now := srv.now()

	var (
		tokens *usecase.TokenPair
		reused bool
		// rejection ends the exchange without a new pair. Revocations made before it still commit.
		rejection error
	)

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessions := repoFactory.SessionRepo()

		session, err := sessions.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				rejection = errors.Wrap(domainerrors.ErrInvalidToken, "session not found")

				return nil
			}

			return errors.Wrap(err, "failed to load session")
		}

		if session.AccountID != accountID || session.IsRevoked() {
			rejection = errors.Wrap(domainerrors.ErrInvalidToken, "session is revoked")

			return nil
		}
		if session.IsExpired(now) {
			rejection = errors.Wrap(domainerrors.ErrSessionExpired, "session ceiling reached")

			return nil
		}

		if !service.SecretMatches(claims.ID, session.RefreshTokenHash) {
			reused = true

			return srv.revokeLineages(ctx, sessions, accountID, entity.RevokedByReuseDetection)
		}

		account, err := repoFactory.AccountRepo().FindByID(ctx, accountID)
		if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
			return errors.Wrap(err, "failed to load account")
		}
		if !account.IsLive() {
			rejection = errors.Wrap(domainerrors.ErrInvalidToken, "account is not live")

			return srv.revokeLineages(ctx, sessions, accountID, entity.RevokedByAccountDisabled)
		}

		secret, err := service.NewRefreshSecret()
		if err != nil {
			return err
		}

		rotated, err := sessions.Rotate(ctx, repository.RotateParams{
			SessionID:    session.ID,
			ExpectedHash: session.RefreshTokenHash,
			NewHash:      service.HashSecret(secret),
			ExpiresAt:    session.ExpiresAt,
			IP:           input.Client.IP,
			UserAgent:    input.Client.UserAgent,
			UsedAt:       now,
		})
		if err != nil {
			if errors.Is(err, repository.ErrSessionRotationConflict) {
				reused = true

				return srv.revokeLineages(ctx, sessions, accountID, entity.RevokedByReuseDetection)
			}

			return errors.Wrap(err, "failed to rotate session")
		}

		tokens, err = srv.issueTokenPair(account, rotated, secret, now)

		return err
	})
	if err != nil {
		srv.log(ctx).Error("Refresh failed", slog.Any("session_id", sessionID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute refresh transaction")
	}

	if reused {
		srv.metrics.ObserveReuseDetected()
		srv.log(ctx).Warn("Refresh token reuse detected, all sessions revoked",
			slog.Any("account_id", accountID),
			slog.Any("session_id", sessionID),
			slog.String("ip", input.Client.IP),
		)

		return nil, errors.Wrap(domainerrors.ErrReuseDetected, "refresh rejected")
	}
	if rejection != nil {
		return nil, rejection
	}

	return tokens, nil
}

func (srv *authService) revokeLineages(
	ctx context.Context,
	sessions repository.SessionRepository,
	accountID uuid.UUID,
	reason entity.RevocationReason,
) error {
	if _, err := sessions.RevokeAllForAccount(ctx, accountID, reason, srv.now()); err != nil {
		return errors.Wrapf(err, "failed to revoke sessions (%s)", reason)
	}

	return nil
}
