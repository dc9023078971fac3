package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantauth/config"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/service"
	"tenantauth/internal/errors"
)

func newTestJWTService(t *testing.T, now time.Time) *jwtService {
	t.Helper()

	svc, err := NewJWTService(&config.Config{
		SecretKey: config.SecretKeyConfig{
			Access:  "test_access_secret_key_very_long_for_testing",
			Refresh: "test_refresh_secret_key_very_long_for_testing",
		},
	})
	require.NoError(t, err)

	jwtSvc := svc.(*jwtService)
	jwtSvc.now = func() time.Time { return now }

	return jwtSvc
}

func TestJWTService_IssueAndVerifyAccessToken(t *testing.T) {
	now := time.Now()
	svc := newTestJWTService(t, now)

	accountID := uuid.New()
	token, expiresAt, err := svc.Issue(service.Claims{
		OrganizationID: uuid.NewString(),
		Role:           "owner",
		Email:          "owner@acme.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: accountID.String(),
		},
	}, service.TokenCategoryAccess, svc.AccessTokenTTL())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, now.Add(15*time.Minute), expiresAt, time.Second)

	claims, err := svc.Verify(token, service.TokenCategoryAccess)
	require.NoError(t, err)
	assert.Equal(t, accountID.String(), claims.Subject)
	assert.Equal(t, "owner", claims.Role)
	assert.Equal(t, "owner@acme.test", claims.Email)
	assert.Equal(t, service.TokenCategoryAccess, claims.Category)
}

func TestJWTService_RefreshTokenCarriesSessionAndSecret(t *testing.T) {
	svc := newTestJWTService(t, time.Now())
	sessionID := uuid.NewString()

	token, _, err := svc.Issue(service.Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: uuid.NewString(),
			ID:      "secret-value",
		},
	}, service.TokenCategoryRefresh, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(token, service.TokenCategoryRefresh)
	require.NoError(t, err)
	assert.Equal(t, sessionID, claims.SessionID)
	assert.Equal(t, "secret-value", claims.ID)
	assert.Empty(t, claims.Role)
	assert.Empty(t, claims.Email)
}

func TestJWTService_ExpiryNeverExceedsRequestedTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 999_000_000, time.UTC)
	svc := newTestJWTService(t, now)

	_, expiresAt, err := svc.Issue(service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}, service.TokenCategoryRefresh, 1500*time.Millisecond)
	require.NoError(t, err)

	assert.False(t, expiresAt.After(now.Add(1500*time.Millisecond)))
}

func TestJWTService_VerifyRejections(t *testing.T) {
	now := time.Now()
	svc := newTestJWTService(t, now)

	subject := jwt.RegisteredClaims{Subject: uuid.NewString()}
	access, _, err := svc.Issue(service.Claims{RegisteredClaims: subject}, service.TokenCategoryAccess, time.Minute)
	require.NoError(t, err)
	refresh, _, err := svc.Issue(service.Claims{RegisteredClaims: subject}, service.TokenCategoryRefresh, time.Minute)
	require.NoError(t, err)

	otherSecret := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		Category: service.TokenCategoryAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	forged, err := otherSecret.SignedString([]byte("attacker"))
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		Category:         service.TokenCategoryAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	})
	unbounded, err := noExpiry.SignedString(svc.accessSecret)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		category service.TokenCategory
	}{
		{name: "malformed", token: "not.a.jwt", category: service.TokenCategoryAccess},
		{name: "refresh token used as access", token: refresh, category: service.TokenCategoryAccess},
		{name: "access token used as refresh", token: access, category: service.TokenCategoryRefresh},
		{name: "foreign signature", token: forged, category: service.TokenCategoryAccess},
		{name: "missing expiry", token: unbounded, category: service.TokenCategoryAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token, tt.category)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
		})
	}
}

func TestJWTService_ExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	svc := newTestJWTService(t, issuedAt)

	token, _, err := svc.Issue(service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}, service.TokenCategoryAccess, time.Minute)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token, service.TokenCategoryAccess)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
}

func TestNewJWTService_SecretValidation(t *testing.T) {
	_, err := NewJWTService(&config.Config{})
	assert.Error(t, err)

	_, err = NewJWTService(&config.Config{SecretKey: config.SecretKeyConfig{Access: "same", Refresh: "same"}})
	assert.Error(t, err)
}

func TestJWTService_IssueRejectsNonPositiveTTL(t *testing.T) {
	svc := newTestJWTService(t, time.Now())

	_, _, err := svc.Issue(service.Claims{}, service.TokenCategoryRefresh, 0)
	assert.Error(t, err)
}
