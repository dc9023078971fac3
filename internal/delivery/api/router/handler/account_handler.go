package handler

import (
	"net/http"

	"tenantauth/internal/delivery/api/middleware"
	"tenantauth/internal/delivery/api/response"
	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// AccountHandlerParams holds dependencies for AccountHandler, injected by Fx.
type AccountHandlerParams struct {
	fx.In

	AccountUC usecase.AccountUsecase
}

// AccountHandler administers the accounts of the caller's organization.
type AccountHandler struct {
	accountUC usecase.AccountUsecase
}

// NewAccountHandler is the constructor for AccountHandler
func NewAccountHandler(params AccountHandlerParams) *AccountHandler {
	return &AccountHandler{accountUC: params.AccountUC}
}

// CreateAccountRequest represents the request body for adding a member.
type CreateAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,max=150"`
	Role     string `json:"role" validate:"required,oneof=owner admin agent"`
}

// UpdateAccountRequest represents a partial update; omitted fields are kept.
type UpdateAccountRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,max=150"`
	Role     *string `json:"role" validate:"omitempty,oneof=owner admin agent"`
	IsActive *bool   `json:"isActive"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

// Me handles GET /auth/me.
func (h *AccountHandler) Me(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "me")
	}

	account, err := h.accountUC.GetAccount(c.Request().Context(), identity.OrganizationID, identity.AccountID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, account)
}

// List handles GET /accounts.
func (h *AccountHandler) List(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "list accounts")
	}

	accounts, err := h.accountUC.ListAccounts(c.Request().Context(), identity.OrganizationID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, accounts)
}

// Create handles POST /accounts.
func (h *AccountHandler) Create(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "create account")
	}

	var req CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid account input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := h.accountUC.CreateAccount(c.Request().Context(), identity.OrganizationID, usecase.CreateAccountInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     entity.Role(req.Role),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, account)
}

// Update handles PATCH /accounts/:id.
func (h *AccountHandler) Update(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "update account")
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errors.Wrap(domainerrors.ErrAccountNotFound, "malformed account id")
	}

	var req UpdateAccountRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid account input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := usecase.UpdateAccountInput{
		FullName: req.FullName,
		IsActive: req.IsActive,
		Password: req.Password,
	}
	if req.Role != nil {
		role := entity.Role(*req.Role)
		input.Role = &role
	}

	account, err := h.accountUC.UpdateAccount(c.Request().Context(), identity.OrganizationID, accountID, input)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, account)
}

// Delete handles DELETE /accounts/:id.
func (h *AccountHandler) Delete(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "delete account")
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errors.Wrap(domainerrors.ErrAccountNotFound, "malformed account id")
	}

	if err := h.accountUC.DeleteAccount(c.Request().Context(), identity.OrganizationID, accountID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
