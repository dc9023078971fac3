// Package handler contains the echo handlers of the public API.
package handler

import (
	"net/http"

	"tenantauth/internal/delivery/api/middleware"
	"tenantauth/internal/delivery/api/response"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
}

// AuthHandler exposes registration, sign-in, refresh, sign-out and password recovery.
type AuthHandler struct {
	authUC usecase.AuthUsecase
}

// NewAuthHandler is the constructor for AuthHandler
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{authUC: params.AuthUC}
}

// RegisterRequest opens an organization with its owner account.
type RegisterRequest struct {
	CompanyName   string `json:"companyName" validate:"required,max=200"`
	TaxID         string `json:"taxId" validate:"omitempty,max=50"`
	LogoURL       string `json:"logoUrl" validate:"omitempty,url,max=500"`
	Phone         string `json:"phone" validate:"omitempty,max=30"`
	Address       string `json:"address" validate:"omitempty,max=255"`
	City          string `json:"city" validate:"omitempty,max=100"`
	CompanyEmail  string `json:"companyEmail" validate:"required,email"`
	LegalMentions string `json:"legalMentions" validate:"omitempty,max=2000"`
	FullName      string `json:"fullName" validate:"required,max=150"`
	Email         string `json:"email" validate:"omitempty,email"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents the request body for signing in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest consumes a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,hexadecimal,len=64"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid registration input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	out, err := h.authUC.Register(c.Request().Context(), usecase.RegisterInput{
		CompanyName:   req.CompanyName,
		TaxID:         req.TaxID,
		LogoURL:       req.LogoURL,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		CompanyEmail:  req.CompanyEmail,
		LegalMentions: req.LegalMentions,
		OwnerFullName: req.FullName,
		OwnerEmail:    req.Email,
		Password:      req.Password,
		Client:        clientInfo(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, out)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	out, err := h.authUC.Login(c.Request().Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   clientInfo(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, out)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid refresh input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tokens, err := h.authUC.Refresh(c.Request().Context(), usecase.RefreshInput{
		RefreshToken: req.RefreshToken,
		Client:       clientInfo(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout and ends every session of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrUnauthorized, "logout")
	}

	if err := h.authUC.Logout(c.Request().Context(), identity.AccountID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword handles POST /auth/forgot-password. The answer is the same for every email.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid forgot-password input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.authUC.ForgotPassword(c.Request().Context(), usecase.ForgotPasswordInput{
		Email:  req.Email,
		Client: clientInfo(c),
	}); err != nil {
		return err
	}

	return response.Accepted(c, "If the email is registered, a reset link is on its way")
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid reset-password input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.authUC.ResetPassword(c.Request().Context(), usecase.ResetPasswordInput{
		Token:       req.Token,
		NewPassword: req.NewPassword,
	}); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

func clientInfo(c echo.Context) usecase.ClientInfo {
	return usecase.ClientInfo{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
