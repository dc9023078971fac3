// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"tenantauth/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// ClientInfo describes the caller a session is opened or refreshed for.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// RegisterInput defines the data required to open a new organization together with its owner account.
type RegisterInput struct {
	CompanyName   string
	TaxID         string
	LogoURL       string
	Phone         string
	Address       string
	City          string
	CompanyEmail  string
	LegalMentions string

	OwnerFullName string
	// OwnerEmail falls back to CompanyEmail when empty.
	OwnerEmail string
	Password   string

	Client ClientInfo
}

// LoginInput defines the data required for an account to sign in.
type LoginInput struct {
	Email    string
	Password string
	Client   ClientInfo
}

// RefreshInput carries the refresh token presented by the client.
type RefreshInput struct {
	RefreshToken string
	Client       ClientInfo
}

// ForgotPasswordInput starts the password reset flow for an email.
type ForgotPasswordInput struct {
	Email  string
	Client ClientInfo
}

// ResetPasswordInput consumes a reset token.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

// --- Output DTOs ---

// AccountView is the sanitized projection of an account. It never carries hashes.
type AccountView struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organizationId"`
	Email          string      `json:"email"`
	FullName       string      `json:"fullName"`
	Role           entity.Role `json:"role"`
	IsActive       bool        `json:"isActive"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// NewAccountView projects an account for output.
func NewAccountView(account *entity.Account) *AccountView {
	if account == nil {
		return nil
	}

	return &AccountView{
		ID:             account.ID,
		OrganizationID: account.OrganizationID,
		Email:          account.Email,
		FullName:       account.FullName,
		Role:           account.Role,
		IsActive:       account.IsActive,
		CreatedAt:      account.CreatedAt,
		UpdatedAt:      account.UpdatedAt,
	}
}

// OrganizationView is the public projection of a tenant.
type OrganizationView struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TaxID         string    `json:"taxId,omitempty"`
	LogoURL       string    `json:"logoUrl,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	Email         string    `json:"email,omitempty"`
	LegalMentions string    `json:"legalMentions,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewOrganizationView projects an organization for output.
func NewOrganizationView(org *entity.Organization) *OrganizationView {
	if org == nil {
		return nil
	}

	return &OrganizationView{
		ID:            org.ID,
		Name:          org.Name,
		TaxID:         org.TaxID,
		LogoURL:       org.LogoURL,
		Phone:         org.Phone,
		Address:       org.Address,
		City:          org.City,
		Email:         org.Email,
		LegalMentions: org.LegalMentions,
		CreatedAt:     org.CreatedAt,
	}
}

// TokenPair is the credential pair handed to a client for one session.
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	TokenType             string    `json:"tokenType"`
	SessionID             uuid.UUID `json:"sessionId"`
}

// AuthOutput is returned by register and login.
type AuthOutput struct {
	Account      *AccountView      `json:"account"`
	Organization *OrganizationView `json:"organization,omitempty"`
	Tokens       TokenPair         `json:"tokens"`
}

// Identity is the authenticated principal behind an access token, resolved against current state.
type Identity struct {
	AccountID      uuid.UUID
	OrganizationID uuid.UUID
	SessionID      uuid.UUID
	Email          string
	Role           entity.Role
}

// AuthUsecase is the authentication engine: registration, sign-in, refresh rotation,
// sign-out and password recovery.
type AuthUsecase interface {
	Register(ctx context.Context, input RegisterInput) (*AuthOutput, error)
	Login(ctx context.Context, input LoginInput) (*AuthOutput, error)
	Refresh(ctx context.Context, input RefreshInput) (*TokenPair, error)
	// Logout revokes every session of the account. Calling it twice is not an error.
	Logout(ctx context.Context, accountID uuid.UUID) error
	// ForgotPassword always succeeds for well-formed input, whether or not the email is known.
	ForgotPassword(ctx context.Context, input ForgotPasswordInput) error
	ResetPassword(ctx context.Context, input ResetPasswordInput) error
	// Authenticate resolves an access token into the identity it currently stands for.
	Authenticate(ctx context.Context, accessToken string) (*Identity, error)
}
