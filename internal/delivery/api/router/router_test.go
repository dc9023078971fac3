package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenantauth/config"
	apimiddleware "tenantauth/internal/delivery/api/middleware"
	"tenantauth/internal/delivery/api/router"
	"tenantauth/internal/delivery/api/router/handler"
	"tenantauth/internal/delivery/api/validator"
	"tenantauth/internal/delivery/middleware"
	"tenantauth/internal/infra/auth"
	"tenantauth/internal/infra/cache"
	"tenantauth/internal/infra/metrics"
	"tenantauth/internal/infra/persistence/memory"
	"tenantauth/internal/infra/pubsub"
	"tenantauth/internal/usecase/impl"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

type authData struct {
	Account struct {
		ID             string `json:"id"`
		OrganizationID string `json:"organizationId"`
		Email          string `json:"email"`
		Role           string `json:"role"`
	} `json:"account"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		SessionID    string `json:"sessionId"`
	} `json:"tokens"`
}

type testAPI struct {
	e *echo.Echo
}

func newTestAPI(t *testing.T, rateLimit config.RateLimitConfig) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		SecretKey: config.SecretKeyConfig{
			Access:  "router_test_access_secret_key_long_enough",
			Refresh: "router_test_refresh_secret_key_long_enough",
		},
		Auth: &config.AuthConfig{LoginMaxAttempts: 3, LoginCooldown: time.Minute},
	}
	limits := cfg.Auth.WithDefaults()

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	store := memory.NewStore()
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost)
	reg := metrics.NewRegistry()
	authMetrics, err := metrics.NewAuthMetrics(reg)
	require.NoError(t, err)
	httpMetrics, err := metrics.NewHTTPMetrics(reg)
	require.NoError(t, err)

	authUC, err := impl.NewAuthService(impl.AuthServiceParams{
		TxManager:    store,
		AccountRepo:  store.AccountRepo(),
		SessionRepo:  store.SessionRepo(),
		Hasher:       hasher,
		TokenService: tokens,
		Publisher:    pubsub.NewNoopPublisher(logger),
		LoginLimiter: cache.NewMemoryAttemptLimiter(cache.Limits{
			Prefix: "auth:login", MaxAttempts: limits.LoginMaxAttempts, Window: limits.LoginCooldown,
		}),
		Metrics: authMetrics,
		Config:  cfg,
		Logger:  logger,
	})
	require.NoError(t, err)

	accountUC := impl.NewAccountService(impl.AccountServiceParams{
		TxManager:   store,
		AccountRepo: store.AccountRepo(),
		Hasher:      hasher,
		Logger:      logger,
	})
	sessionUC := impl.NewSessionService(impl.SessionServiceParams{
		SessionRepo: store.SessionRepo(),
		Logger:      logger,
	})

	e := echo.New()
	e.Use(middleware.NewRequestIDMiddleware(logger).Process)
	e.Use(apimiddleware.Metrics(httpMetrics))
	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(logger, false).HandleHTTPError
	e.Validator = validator.New()

	router.NewRouter(router.RouterParams{
		AuthHandler:    handler.NewAuthHandler(handler.AuthHandlerParams{AuthUC: authUC}),
		AccountHandler: handler.NewAccountHandler(handler.AccountHandlerParams{AccountUC: accountUC}),
		SessionHandler: handler.NewSessionHandler(handler.SessionHandlerParams{SessionUC: sessionUC}),
		AuthMiddleware: apimiddleware.NewAuthMiddleware(authUC),
		RateLimiter:    apimiddleware.NewIPRateLimiter(rateLimit),
		Registry:       reg,
	}).RegisterRoutes(e)

	return &testAPI{e: e}
}

func (a *testAPI) do(t *testing.T, method, path, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.20")
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}

	return rec, env
}

func (a *testAPI) register(t *testing.T) authData {
	t.Helper()

	rec, env := a.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"companyName":  "Acme SARL",
		"companyEmail": "contact@acme.test",
		"fullName":     "Amina Owner",
		"email":        "owner@acme.test",
		"password":     "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))

	return data
}

func TestRouter_AuthLifecycle(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})

	registered := api.register(t)
	assert.Equal(t, "owner", registered.Account.Role)
	assert.NotEmpty(t, registered.Tokens.AccessToken)

	rec, env := api.do(t, http.MethodGet, "/auth/me", registered.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, env.Meta.RequestID)
	assert.Contains(t, string(env.Data), "owner@acme.test")

	rec, env = api.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refreshToken": registered.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	assert.NotEqual(t, registered.Tokens.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed token ends every session.
	rec, env = api.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refreshToken": registered.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "REFRESH_TOKEN_REUSE_DETECTED", env.Error.Code)

	rec, _ = api.do(t, http.MethodGet, "/auth/me", registered.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_LoginAndLogout(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	api.register(t)

	rec, env := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "owner@acme.test",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	assert.Nil(t, env.Error.Details)

	rec, unknown := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "nobody@acme.test",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, env.Error, unknown.Error)

	rec, env = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "OWNER@acme.test",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))

	rec, env = api.do(t, http.MethodGet, "/auth/sessions", data.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"current":true`)

	rec, _ = api.do(t, http.MethodPost, "/auth/logout", data.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refreshToken": data.Tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ValidationErrors(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})

	rec, env := api.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"companyName":  "Acme SARL",
		"companyEmail": "not-an-email",
		"fullName":     "Amina Owner",
		"password":     "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.NotNil(t, env.Error.Details)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	raw := httptest.NewRecorder()
	api.e.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestRouter_ForgotPasswordIsUniform(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	api.register(t)

	known, knownEnv := api.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "owner@acme.test"})
	unknown, unknownEnv := api.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ghost@acme.test"})

	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.JSONEq(t, string(knownEnv.Data), string(unknownEnv.Data))

	rec, env := api.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token":       "00000000000000000000000000000000000000000000000000000000000000ff",
		"newPassword": "another-long-password",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_OR_EXPIRED_RESET_TOKEN", env.Error.Code)
}

func TestRouter_AccountAdministration(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	owner := api.register(t)

	rec, env := api.do(t, http.MethodPost, "/accounts", owner.Tokens.AccessToken, map[string]string{
		"email":    "agent@acme.test",
		"password": "agent-password-1",
		"fullName": "Youssef Agent",
		"role":     "agent",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var agent struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &agent))

	rec, env = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "agent@acme.test",
		"password": "agent-password-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var agentLogin authData
	require.NoError(t, json.Unmarshal(env.Data, &agentLogin))

	// Agents cannot administer accounts.
	rec, env = api.do(t, http.MethodGet, "/accounts", agentLogin.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, env = api.do(t, http.MethodGet, "/accounts", owner.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "agent@acme.test")

	rec, _ = api.do(t, http.MethodPatch, "/accounts/"+agent.ID, owner.Tokens.AccessToken, map[string]any{
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/auth/me", agentLogin.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodDelete, "/accounts/"+agent.ID, owner.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = api.do(t, http.MethodDelete, "/accounts/not-a-uuid", owner.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", env.Error.Code)
}

func TestRouter_TenantHeaderMismatch(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	owner := api.register(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+owner.Tokens.AccessToken)
	req.Header.Set(apimiddleware.HeaderTenantID, "7a1b3a52-9c0e-4d4e-8f50-3f2f9d1d0b11")
	rec := httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+owner.Tokens.AccessToken)
	req.Header.Set(apimiddleware.HeaderTenantID, owner.Account.OrganizationID)
	rec = httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RateLimitedPublicRoutes(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{Enabled: true, PerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		rec, _ := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "nobody@acme.test", "password": "whatever-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, env := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@acme.test", "password": "whatever-password",
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)

	// Health checks are not throttled.
	rec, _ = api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	api.register(t)

	rec, _ := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `tenantauth_auth_operations_total{operation="register",outcome="success"} 1`)
	assert.Contains(t, body, `tenantauth_http_requests_total{method="POST",route="/auth/register",status="201"} 1`)
}
