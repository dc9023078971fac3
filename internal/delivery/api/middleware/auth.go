// Package middleware contains the echo middleware specific to the public API.
package middleware

import (
	"strings"

	deliverycontext "tenantauth/internal/delivery/context"
	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	identityKey = "auth.identity"

	// HeaderTenantID optionally names the organization the caller means to act in.
	HeaderTenantID = "X-Tenant-Id"
)

// AuthMiddleware authenticates bearer access tokens and enforces roles.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC}
}

// Authenticate resolves the bearer token into an identity stored on the echo context.
// A tenant header that names another organization is refused.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return errors.Wrap(domainerrors.ErrUnauthorized, "missing bearer token")
		}

		ctx := c.Request().Context()
		identity, err := m.authUC.Authenticate(ctx, token)
		if err != nil {
			return err
		}

		if tenant := c.Request().Header.Get(HeaderTenantID); tenant != "" && tenant != identity.OrganizationID.String() {
			return errors.Wrap(domainerrors.ErrForbidden, "tenant header does not match the token")
		}

		c.Set(identityKey, identity)
		ctx = deliverycontext.WithPrincipal(ctx, deliverycontext.Principal{
			AccountID:      identity.AccountID,
			OrganizationID: identity.OrganizationID,
			SessionID:      identity.SessionID,
		})
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// RequireRole admits only identities holding one of roles. It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	allowed := entity.Roles(roles)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := GetIdentity(c)
			if !ok {
				return errors.Wrap(domainerrors.ErrUnauthorized, "no identity on context")
			}
			if !allowed.Contains(identity.Role) {
				return errors.Wrapf(domainerrors.ErrForbidden, "role %s not allowed", identity.Role)
			}

			return next(c)
		}
	}
}

// GetIdentity returns the identity stored by Authenticate.
func GetIdentity(c echo.Context) (*usecase.Identity, bool) {
	identity, ok := c.Get(identityKey).(*usecase.Identity)

	return identity, ok && identity != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}
