// Package context carries request-scoped values between the transports and the engine:
// the request id, the request logger and, once a bearer token is accepted, the principal.
package context

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	loggerKey
	principalKey
)

const (
	// HeaderXRequestID is the HTTP header name for request ID.
	HeaderXRequestID = "X-Request-Id"

	echoRequestIDKey = "request_id"
)

// Principal is the authenticated caller a request acts for.
type Principal struct {
	AccountID      uuid.UUID
	OrganizationID uuid.UUID
	SessionID      uuid.UUID
}

// LogAttrs returns the attributes every log line of an authenticated request carries.
func (p Principal) LogAttrs() []any {
	return []any{
		slog.String("account_id", p.AccountID.String()),
		slog.String("organization_id", p.OrganizationID.String()),
	}
}

// GetRequestID returns the request ID stored on the echo context, or a fresh UUID
// for requests that bypassed the request ID middleware.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(echoRequestIDKey).(string); ok && id != "" {
		return id
	}

	return uuid.New().String()
}

// SetRequestID sets the request ID in echo.Context.
func SetRequestID(c echo.Context, requestID string) {
	c.Set(echoRequestIDKey, requestID)
}

// GetRequestIDFromContext returns the request ID, or "" when none was set.
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)

	return id
}

// WithRequestID returns a new context with the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetLogger returns the request-scoped logger, or nil.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, _ := ctx.Value(loggerKey).(*slog.Logger)

	return logger
}

// GetLoggerOrDefault returns the request-scoped logger. Without one, fallback is tagged with
// whatever request ID and principal the context holds, so detached work stays traceable.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := GetLogger(ctx); logger != nil {
		return logger
	}
	if fallback == nil {
		return nil
	}

	if id := GetRequestIDFromContext(ctx); id != "" {
		fallback = fallback.With(slog.String("request_id", id))
	}
	if principal, ok := PrincipalFromContext(ctx); ok {
		fallback = fallback.With(principal.LogAttrs()...)
	}

	return fallback
}

// WithLogger returns a new context with the logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithPrincipal stores the caller and tags the request logger, if any, with its ids.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, principal)
	if logger := GetLogger(ctx); logger != nil {
		ctx = WithLogger(ctx, logger.With(principal.LogAttrs()...))
	}

	return ctx
}

// PrincipalFromContext returns the caller stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)

	return principal, ok
}
