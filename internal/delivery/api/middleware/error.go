package middleware

import (
	"log/slog"
	"net/http"

	"tenantauth/internal/delivery/api/response"
	"tenantauth/internal/delivery/api/validator"
	deliverycontext "tenantauth/internal/delivery/context"
	domainerrors "tenantauth/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ErrorMiddleware handles errors in the HTTP pipeline
type ErrorMiddleware struct {
	logger *slog.Logger
	debug  bool
}

// NewErrorMiddleware creates a new error handling middleware. With debug set, 4xx answers
// carry the wrapped error chain as details.
func NewErrorMiddleware(logger *slog.Logger, debug bool) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger,
		debug:  debug,
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	logger := deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger)

	if fields, ok := validator.FieldErrors(err); ok {
		_ = response.ValidationError(c, fields)

		return
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) && !domainerrors.IsInfrastructure(err) {
		var details any
		if appErr.Details() != "" {
			details = appErr.Details()
		} else if m.debug {
			details = err.Error()
		}
		_ = response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), details)

		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
		_ = response.Error(c, httpErr.Code, "HTTP_ERROR", message, nil)

		return
	}

	logger.Error("Unhandled error",
		slog.Any("error", err),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
	)

	_ = response.Error(c, http.StatusInternalServerError, domainerrors.ErrInternalError.ErrorCode(), "Internal server error, please try again later", nil)
}
