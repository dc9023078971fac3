package impl

import (
	"context"
	"log/slog"

	deliverycontext "tenantauth/internal/delivery/context"
	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/lifecycle"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/domain/service"
	"tenantauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ForgotPassword issues a reset token for a live account and hands it to the publisher.
// The answer never depends on whether the email is known.
func (srv *authService) ForgotPassword(ctx context.Context, input usecase.ForgotPasswordInput) (err error) {
	ctx, span := srv.startSpan(ctx, opForgotPassword)
	defer func() { srv.endSpan(span, opForgotPassword, err) }()

	email := entity.NormalizeEmail(input.Email)
	if email == "" {
		return domainerrors.ErrValidationFailed.WithDetails("email is required")
	}

	throttled := false
	if err := srv.resetLimiter.Check(ctx, email, input.Client.IP); err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			throttled = true
		} else {
			srv.log(ctx).Warn("Reset limiter unavailable, continuing", slog.Any("error", err))
		}
	}
	if err := srv.resetLimiter.Record(ctx, email, input.Client.IP); err != nil {
		srv.log(ctx).Warn("Failed to record reset request", slog.Any("error", err))
	}
	if throttled {
		srv.log(ctx).Warn("Password reset request throttled", slog.String("ip", input.Client.IP))

		return nil
	}

	account, err := srv.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			srv.log(ctx).Debug("Password reset requested for unknown email")

			return nil
		}

		return errors.Wrap(err, "failed to load account")
	}
	if !account.IsLive() {
		return nil
	}

	token, err := service.NewResetToken()
	if err != nil {
		return err
	}

	expiresAt := srv.now().Add(srv.cfg.ResetTokenTTL)
	if err := srv.accountRepo.SetResetToken(ctx, account.ID, service.HashSecret(token), expiresAt); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			// Deactivated or deleted since the lookup.
			return nil
		}

		return errors.Wrap(err, "failed to store reset token")
	}

	srv.publishReset(ctx, &service.PasswordResetEvent{
		RequestID: deliverycontext.GetRequestIDFromContext(ctx),
		AccountID: account.ID.String(),
		Email:     account.Email,
		FullName:  account.FullName,
		Token:     token,
		ExpiresAt: expiresAt,
	})

	return nil
}

// publishReset delivers the event off the request path. Failures are logged; the token stays
// valid and the account owner can simply ask again.
func (srv *authService) publishReset(ctx context.Context, event *service.PasswordResetEvent) {
	logger := srv.log(ctx)

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lifecycle.DefaultTimeout)
		defer cancel()

		if err := srv.publisher.PublishPasswordReset(pubCtx, event); err != nil {
			logger.Error("Failed to publish password reset", slog.String("account_id", event.AccountID), slog.Any("error", err))

			return
		}
		logger.Debug("Password reset published", slog.String("account_id", event.AccountID))
	}()
}

// ResetPassword consumes a reset token. The new password, the cleared token and, when
// configured, the revocation of every session commit together.
func (srv *authService) ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) (err error) {
	ctx, span := srv.startSpan(ctx, opResetPassword)
	defer func() { srv.endSpan(span, opResetPassword, err) }()

	if input.Token == "" {
		return errors.Wrap(domainerrors.ErrInvalidOrExpiredToken, "empty reset token")
	}
	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}

	passwordHash, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	now := srv.now()
	tokenHash := service.HashSecret(input.Token)
	revokeSessions := *srv.cfg.RevokeSessionsOnPasswordReset

	var (
		accountID uuid.UUID
		email     string
	)
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		account, err := repoFactory.AccountRepo().FindByResetTokenHash(ctx, tokenHash, now)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return errors.Wrap(domainerrors.ErrInvalidOrExpiredToken, "reset token not found")
			}

			return errors.Wrap(err, "failed to load account")
		}
		if !account.IsLive() || !account.HasValidResetToken(tokenHash, now) {
			return errors.Wrap(domainerrors.ErrInvalidOrExpiredToken, "reset token not usable")
		}

		account.PasswordHash = passwordHash
		account.ClearResetToken()
		if err := repoFactory.AccountRepo().Update(ctx, account); err != nil {
			return errors.Wrap(err, "failed to update password")
		}

		if revokeSessions {
			if err := srv.revokeLineages(ctx, repoFactory.SessionRepo(), account.ID, entity.RevokedByPasswordReset); err != nil {
				return err
			}
		}

		accountID = account.ID
		email = account.Email

		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidOrExpiredToken) {
			return err
		}
		srv.log(ctx).Error("Password reset failed", slog.Any("error", err))

		return errors.Wrap(err, "failed to execute password reset transaction")
	}

	// Failed logins counted against the old password no longer apply.
	if err := srv.loginLimiter.Reset(ctx, email, ""); err != nil {
		srv.log(ctx).Warn("Failed to reset login attempts", slog.Any("error", err))
	}

	srv.log(ctx).Info("Password reset completed",
		slog.Any("account_id", accountID),
		slog.Bool("sessions_revoked", revokeSessions),
	)

	return nil
}
