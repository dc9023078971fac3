package handler

import (
	"net/http"

	"tenantauth/internal/delivery/api/middleware"
	"tenantauth/internal/delivery/api/response"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
}

// SessionHandler lists and revokes the caller's sessions.
type SessionHandler struct {
	sessionUC usecase.SessionUsecase
}

// NewSessionHandler is the constructor for SessionHandler
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	return &SessionHandler{sessionUC: params.SessionUC}
}

// List handles GET /auth/sessions.
func (h *SessionHandler) List(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "list sessions")
	}

	sessions, err := h.sessionUC.ListSessions(c.Request().Context(), identity.AccountID, identity.SessionID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, sessions)
}

// Revoke handles DELETE /auth/sessions/:id.
func (h *SessionHandler) Revoke(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "revoke session")
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errors.Wrap(domainerrors.ErrSessionNotFound, "malformed session id")
	}

	if err := h.sessionUC.RevokeSession(c.Request().Context(), identity.AccountID, sessionID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
