// Package notification delivers password-reset notices to account owners.
package notification

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"tenantauth/config"
	deliverycontext "tenantauth/internal/delivery/context"
	"tenantauth/internal/domain/service"
)

type logNotifier struct {
	logger *slog.Logger
	debug  bool
}

// Params defines the required parameters
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewLogNotifier writes reset notices to the log. The link itself is only logged in debug mode,
// so production logs never hold a usable token.
func NewLogNotifier(params Params) service.ResetNotifier {
	return &logNotifier{
		logger: params.Logger,
		debug:  params.Config.Env.Debug,
	}
}

func (n *logNotifier) NotifyPasswordReset(ctx context.Context, notice *service.ResetNotice) error {
	attrs := []any{
		slog.String("account_id", notice.AccountID),
		slog.String("email", maskEmail(notice.Email)),
		slog.Time("expires_at", notice.ExpiresAt),
	}
	if n.debug {
		attrs = append(attrs, slog.String("link", notice.Link))
	}

	deliverycontext.GetLoggerOrDefault(ctx, n.logger).InfoContext(ctx, "[Notifier] Password reset notice sent", attrs...)

	return nil
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "***"
	}

	return local[:1] + "***@" + domain
}

// Module provides the notification FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewLogNotifier),
)
