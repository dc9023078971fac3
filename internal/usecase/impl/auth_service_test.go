package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"tenantauth/config"
	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/domain/service"
	"tenantauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_AcmeScenario(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered := f.register(t)
	assert.Equal(t, "owner@acme.test", registered.Account.Email)
	assert.Equal(t, entity.RoleOwner, registered.Account.Role)
	assert.Equal(t, "Acme SARL", registered.Organization.Name)
	assert.Equal(t, registered.Organization.ID, registered.Account.OrganizationID)
	assert.NotEmpty(t, registered.Tokens.AccessToken)
	assert.NotEmpty(t, registered.Tokens.RefreshToken)

	subscription, err := f.store.SubscriptionRepo().FindByOrganizationID(ctx, registered.Organization.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PlanFree, subscription.Plan)

	loggedIn, err := f.svc.Login(ctx, usecase.LoginInput{
		Email:    "OWNER@acme.test ",
		Password: "correct-horse-battery",
		Client:   usecase.ClientInfo{IP: "203.0.113.7"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, registered.Tokens.SessionID, loggedIn.Tokens.SessionID)

	rotated, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: loggedIn.Tokens.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, loggedIn.Tokens.SessionID, rotated.SessionID)
	assert.NotEqual(t, loggedIn.Tokens.RefreshToken, rotated.RefreshToken)

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: loggedIn.Tokens.RefreshToken})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrReuseDetected)
	assert.Equal(t, 1, f.metrics.reuse)

	// Reuse ends every lineage of the account, the legitimate one included.
	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: rotated.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: registered.Tokens.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)

	active, err := f.store.SessionRepo().ListActiveByAccount(ctx, registered.Account.ID, f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	input := acmeRegistration()
	input.CompanyName = "Other Co"
	_, err := f.svc.Register(context.Background(), input)

	assert.ErrorIs(t, err, domainerrors.ErrDuplicateEmail)
}

func TestAuthService_Register_OwnerEmailFallsBackToCompanyEmail(t *testing.T) {
	f := newAuthFixture(t)

	input := acmeRegistration()
	input.OwnerEmail = ""
	out, err := f.svc.Register(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "contact@acme.test", out.Account.Email)
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name   string
		mutate func(*usecase.RegisterInput)
	}{
		{name: "short password", mutate: func(in *usecase.RegisterInput) { in.Password = "short" }},
		{name: "no email at all", mutate: func(in *usecase.RegisterInput) { in.OwnerEmail, in.CompanyEmail = "", "" }},
		{name: "no company name", mutate: func(in *usecase.RegisterInput) { in.CompanyName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := acmeRegistration()
			tt.mutate(&input)

			_, err := f.svc.Register(context.Background(), input)
			assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
		})
	}
}

func TestAuthService_Register_RollsBackOnPartialFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.svc.txManager = failingSessionsTx{store: f.store}

	_, err := f.svc.Register(context.Background(), acmeRegistration())
	require.Error(t, err)
	assert.True(t, domainerrors.IsInfrastructure(err))
	assert.Equal(t, 1, f.metrics.count(opRegister, service.OutcomeError))

	_, err = f.store.AccountRepo().FindByEmail(context.Background(), "owner@acme.test")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	member := &entity.Account{
		OrganizationID: registered.Organization.ID,
		Email:          "agent@acme.test",
		FullName:       "Disabled Agent",
		Role:           entity.RoleAgent,
		IsActive:       false,
	}
	hash, err := f.hasher.Hash("agent-password-1")
	require.NoError(t, err)
	member.PasswordHash = hash
	require.NoError(t, f.store.AccountRepo().Create(ctx, member))

	attempts := []usecase.LoginInput{
		{Email: "nobody@acme.test", Password: "correct-horse-battery"},
		{Email: "owner@acme.test", Password: "wrong-password"},
		{Email: "agent@acme.test", Password: "agent-password-1"},
	}

	var messages []string
	for _, attempt := range attempts {
		_, err := f.svc.Login(ctx, attempt)
		require.Error(t, err)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
		messages = append(messages, err.Error())
	}
	assert.Equal(t, messages[0], messages[1])
	assert.Equal(t, messages[0], messages[2])
	assert.Equal(t, 3, f.metrics.count(opLogin, service.OutcomeFailure))
}

func TestAuthService_Login_Throttled(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.AuthConfig) { cfg.LoginMaxAttempts = 3 })
	ctx := context.Background()
	f.register(t)

	for range 3 {
		_, err := f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "wrong-password"})
		require.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	}

	_, err := f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "correct-horse-battery"})
	assert.ErrorIs(t, err, domainerrors.ErrTooManyAttempts)
}

func TestAuthService_Login_SuccessClearsFailedAttempts(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.AuthConfig) { cfg.LoginMaxAttempts = 3 })
	ctx := context.Background()
	f.register(t)

	for range 2 {
		_, _ = f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "wrong-password"})
	}
	_, err := f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "correct-horse-battery"})
	require.NoError(t, err)

	for range 2 {
		_, _ = f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "wrong-password"})
	}
	_, err = f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "correct-horse-battery"})
	assert.NoError(t, err)
}

func TestAuthService_Login_SuccessKeepsAddressBudget(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.AuthConfig) { cfg.LoginMaxAttempts = 3 })
	ctx := context.Background()
	f.register(t)

	sprayer := usecase.ClientInfo{IP: "198.51.100.23"}
	guess := func(email string) error {
		_, err := f.svc.Login(ctx, usecase.LoginInput{Email: email, Password: "wrong-password", Client: sprayer})

		return err
	}

	assert.ErrorIs(t, guess("alice@acme.test"), domainerrors.ErrInvalidCredentials)
	assert.ErrorIs(t, guess("bob@acme.test"), domainerrors.ErrInvalidCredentials)

	_, err := f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "correct-horse-battery", Client: sprayer})
	require.NoError(t, err)

	assert.ErrorIs(t, guess("carol@acme.test"), domainerrors.ErrInvalidCredentials)
	assert.ErrorIs(t, guess("dave@acme.test"), domainerrors.ErrTooManyAttempts)
}

func TestAuthService_Refresh_NeverExtendsSessionCeiling(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.AuthConfig) {
		cfg.SessionLifetime = time.Hour
		cfg.RefreshTokenTTL = 30 * time.Minute
	})
	ctx := context.Background()
	registered := f.register(t)

	original, err := f.store.SessionRepo().FindByID(ctx, registered.Tokens.SessionID)
	require.NoError(t, err)

	token := registered.Tokens.RefreshToken
	for range 2 {
		f.clock.Advance(25 * time.Minute)

		pair, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: token})
		require.NoError(t, err)
		token = pair.RefreshToken

		current, err := f.store.SessionRepo().FindByID(ctx, registered.Tokens.SessionID)
		require.NoError(t, err)
		assert.True(t, original.ExpiresAt.Equal(current.ExpiresAt))
	}

	// 50 minutes in, only 10 remain; the refresh token is capped accordingly.
	session, err := f.store.SessionRepo().FindByID(ctx, registered.Tokens.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, session.RemainingLifetime(f.clock.Now()))

	f.clock.Advance(10 * time.Minute)
	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: token})
	assert.ErrorIs(t, err, domainerrors.ErrSessionExpired)
}

func TestAuthService_Refresh_ConcurrentExactlyOneWins(t *testing.T) {
	f := newAuthFixture(t)
	registered := f.register(t)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		reused    int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := f.svc.Refresh(context.Background(), usecase.RefreshInput{RefreshToken: registered.Tokens.RefreshToken})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainerrors.ErrReuseDetected), errors.Is(err, domainerrors.ErrInvalidToken):
				reused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, reused)
}

func TestAuthService_Refresh_DeactivatedAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	account, err := f.store.AccountRepo().FindByID(ctx, registered.Account.ID)
	require.NoError(t, err)
	account.IsActive = false
	require.NoError(t, f.store.AccountRepo().Update(ctx, account))

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: registered.Tokens.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)

	session, err := f.store.SessionRepo().FindByID(ctx, registered.Tokens.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.RevokedByAccountDisabled, session.RevokedReason)
}

func TestAuthService_Refresh_RejectsForeignTokens(t *testing.T) {
	f := newAuthFixture(t)
	registered := f.register(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "access token", token: registered.Tokens.AccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Refresh(context.Background(), usecase.RefreshInput{RefreshToken: tt.token})
			assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
		})
	}
}

func TestAuthService_Logout_IsIdempotent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	require.NoError(t, f.svc.Logout(ctx, registered.Account.ID))
	require.NoError(t, f.svc.Logout(ctx, registered.Account.ID))

	_, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: registered.Tokens.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)

	_, err = f.svc.Authenticate(ctx, registered.Tokens.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	identity, err := f.svc.Authenticate(ctx, registered.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.Account.ID, identity.AccountID)
	assert.Equal(t, registered.Organization.ID, identity.OrganizationID)
	assert.Equal(t, registered.Tokens.SessionID, identity.SessionID)
	assert.Equal(t, entity.RoleOwner, identity.Role)

	_, err = f.svc.Authenticate(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)

	account, err := f.store.AccountRepo().FindByID(ctx, registered.Account.ID)
	require.NoError(t, err)
	account.IsActive = false
	require.NoError(t, f.store.AccountRepo().Update(ctx, account))

	_, err = f.svc.Authenticate(ctx, registered.Tokens.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestAuthService_ForgotPassword_UnknownEmailPublishesNothing(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), usecase.ForgotPasswordInput{Email: "ghost@acme.test"}))

	assert.Never(t, func() bool { return len(f.publisher.events) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestAuthService_ForgotPassword_Throttled(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.AuthConfig) { cfg.ResetMaxRequests = 1 })
	ctx := context.Background()
	f.register(t)

	input := usecase.ForgotPasswordInput{Email: "owner@acme.test", Client: usecase.ClientInfo{IP: "198.51.100.4"}}
	require.NoError(t, f.svc.ForgotPassword(ctx, input))
	f.publisher.next(t)

	require.NoError(t, f.svc.ForgotPassword(ctx, input))
	assert.Never(t, func() bool { return len(f.publisher.events) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestAuthService_ResetPassword_RevokesSessionsByDefault(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	require.NoError(t, f.svc.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: "owner@acme.test"}))
	event := f.publisher.next(t)
	assert.Equal(t, registered.Account.ID.String(), event.AccountID)
	assert.Len(t, event.Token, 64)

	require.NoError(t, f.svc.ResetPassword(ctx, usecase.ResetPasswordInput{Token: event.Token, NewPassword: "brand-new-password"}))

	_, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: registered.Tokens.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)

	_, err = f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "correct-horse-battery"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, usecase.LoginInput{Email: "owner@acme.test", Password: "brand-new-password"})
	require.NoError(t, err)

	// Tokens are single use.
	err = f.svc.ResetPassword(ctx, usecase.ResetPasswordInput{Token: event.Token, NewPassword: "another-password"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidOrExpiredToken)
}

func TestAuthService_ResetPassword_KeepsSessionsWhenConfigured(t *testing.T) {
	keep := false
	f := newAuthFixture(t, func(cfg *config.AuthConfig) { cfg.RevokeSessionsOnPasswordReset = &keep })
	ctx := context.Background()
	registered := f.register(t)

	require.NoError(t, f.svc.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: "owner@acme.test"}))
	event := f.publisher.next(t)

	require.NoError(t, f.svc.ResetPassword(ctx, usecase.ResetPasswordInput{Token: event.Token, NewPassword: "brand-new-password"}))

	_, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: registered.Tokens.RefreshToken})
	assert.NoError(t, err)
}

func TestAuthService_ResetPassword_ExpiredOrUnknownToken(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.AuthConfig) { cfg.ResetTokenTTL = 15 * time.Minute })
	ctx := context.Background()
	f.register(t)

	err := f.svc.ResetPassword(ctx, usecase.ResetPasswordInput{Token: "deadbeef", NewPassword: "brand-new-password"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidOrExpiredToken)

	require.NoError(t, f.svc.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: "owner@acme.test"}))
	event := f.publisher.next(t)

	f.clock.Advance(16 * time.Minute)
	err = f.svc.ResetPassword(ctx, usecase.ResetPasswordInput{Token: event.Token, NewPassword: "brand-new-password"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidOrExpiredToken)
	assert.Equal(t, 2, f.metrics.count(opResetPassword, service.OutcomeFailure))
}

func TestAuthService_Logout_UnknownAccount(t *testing.T) {
	f := newAuthFixture(t)

	assert.NoError(t, f.svc.Logout(context.Background(), uuid.New()))
}

func TestAuthService_ForgotPassword_KeepsConcurrentAccountChanges(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	admin := NewAccountService(AccountServiceParams{
		TxManager:   f.store,
		AccountRepo: f.store.AccountRepo(),
		Hasher:      f.hasher,
		Logger:      newDiscardLogger(),
	})
	inactive := false
	f.svc.accountRepo = interleavingAccounts{
		AccountRepository: f.store.AccountRepo(),
		afterFindByEmail: func() {
			_, err := admin.UpdateAccount(ctx, registered.Organization.ID, registered.Account.ID,
				usecase.UpdateAccountInput{IsActive: &inactive})
			require.NoError(t, err)
		},
	}

	require.NoError(t, f.svc.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: "owner@acme.test"}))

	stored, err := f.store.AccountRepo().FindByEmail(ctx, "owner@acme.test")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Nil(t, stored.PasswordResetTokenHash)
	assert.Never(t, func() bool { return len(f.publisher.events) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestAuthService_ForgotPassword_KeepsConcurrentPasswordChange(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	changed := "a-brand-new-password"
	f.svc.accountRepo = interleavingAccounts{
		AccountRepository: f.store.AccountRepo(),
		afterFindByEmail: func() {
			account, err := f.store.AccountRepo().FindByID(ctx, registered.Account.ID)
			require.NoError(t, err)
			account.PasswordHash, err = f.hasher.Hash(changed)
			require.NoError(t, err)
			require.NoError(t, f.store.AccountRepo().Update(ctx, account))
		},
	}

	require.NoError(t, f.svc.ForgotPassword(ctx, usecase.ForgotPasswordInput{Email: "owner@acme.test"}))
	f.publisher.next(t)

	stored, err := f.store.AccountRepo().FindByID(ctx, registered.Account.ID)
	require.NoError(t, err)
	assert.True(t, f.hasher.Check(changed, stored.PasswordHash))
	assert.NotNil(t, stored.PasswordResetTokenHash)
}
