// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"time"

	"tenantauth/config"
	deliverycontext "tenantauth/internal/delivery/context"
	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/domain/service"
	"tenantauth/internal/usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

const (
	opRegister       = "register"
	opLogin          = "login"
	opRefresh        = "refresh"
	opLogout         = "logout"
	opForgotPassword = "forgot_password"
	opResetPassword  = "reset_password"

	tracerName = "tenantauth/internal/usecase"

	minPasswordLength = 8
	// bcrypt silently ignores anything past 72 bytes, so longer passwords are refused up front.
	maxPasswordBytes = 72

	// timingPassword is hashed once at startup; unknown emails are checked against it.
	timingPassword = "tenantauth-timing-equalizer"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager    repository.TransactionManager
	accountRepo  repository.AccountRepository
	sessionRepo  repository.SessionRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	publisher    service.PasswordResetPublisher
	loginLimiter service.AttemptLimiter
	resetLimiter service.AttemptLimiter
	metrics      service.AuthMetrics
	tracer       trace.Tracer
	cfg          config.AuthConfig
	dummyHash    string
	now          func() time.Time
	logger       *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	AccountRepo    repository.AccountRepository
	SessionRepo    repository.SessionRepository
	Hasher         service.PasswordHasher
	TokenService   service.TokenService
	Publisher      service.PasswordResetPublisher
	LoginLimiter   service.AttemptLimiter `name:"login" optional:"true"`
	ResetLimiter   service.AttemptLimiter `name:"passwordReset" optional:"true"`
	Metrics        service.AuthMetrics    `optional:"true"`
	TracerProvider trace.TracerProvider   `optional:"true"`
	Config         *config.Config
	Logger         *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) (usecase.AuthUsecase, error) {
	var authCfg *config.AuthConfig
	if params.Config != nil {
		authCfg = params.Config.Auth
	}

	dummyHash, err := params.Hasher.Hash(timingPassword)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare timing hash")
	}

	srv := &authService{
		txManager:    params.TxManager,
		accountRepo:  params.AccountRepo,
		sessionRepo:  params.SessionRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		publisher:    params.Publisher,
		loginLimiter: params.LoginLimiter,
		resetLimiter: params.ResetLimiter,
		metrics:      params.Metrics,
		cfg:          authCfg.WithDefaults(),
		dummyHash:    dummyHash,
		now:          time.Now,
		logger:       params.Logger,
	}
	if srv.loginLimiter == nil {
		srv.loginLimiter = unlimited{}
	}
	if srv.resetLimiter == nil {
		srv.resetLimiter = unlimited{}
	}
	if srv.metrics == nil {
		srv.metrics = discardMetrics{}
	}

	tp := params.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	srv.tracer = tp.Tracer(tracerName)

	return srv, nil
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates the organization, its owner account and starter subscription, then opens
// the owner's first session. Everything happens in one transaction.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (out *usecase.AuthOutput, err error) {
	ctx, span := srv.startSpan(ctx, opRegister)
	defer func() { srv.endSpan(span, opRegister, err) }()

	email := entity.NormalizeEmail(input.OwnerEmail)
	if email == "" {
		email = entity.NormalizeEmail(input.CompanyEmail)
	}
	if email == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("owner email is required")
	}
	if input.CompanyName == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("company name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	srv.log(ctx).Debug("Starting registration", slog.String("email", email))

	// Fast path; the store's unique index still decides under concurrency.
	if _, err := srv.accountRepo.FindByEmail(ctx, email); err == nil {
		return nil, errors.Wrap(domainerrors.ErrDuplicateEmail, "registration rejected")
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, errors.Wrap(err, "failed to check email availability")
	}

	// Hashing is CPU-bound and stays outside the transaction.
	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	now := srv.now()
	org := &entity.Organization{
		ID:            uuid.New(),
		Name:          input.CompanyName,
		TaxID:         input.TaxID,
		LogoURL:       input.LogoURL,
		Phone:         input.Phone,
		Address:       input.Address,
		City:          input.City,
		Email:         entity.NormalizeEmail(input.CompanyEmail),
		LegalMentions: input.LegalMentions,
		IsActive:      true,
	}
	owner := &entity.Account{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Email:          email,
		PasswordHash:   passwordHash,
		FullName:       input.OwnerFullName,
		Role:           entity.RoleOwner,
		IsActive:       true,
	}

	var tokens *usecase.TokenPair
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.OrganizationRepo().Create(ctx, org); err != nil {
			return errors.Wrap(err, "failed to create organization")
		}
		if err := repoFactory.AccountRepo().Create(ctx, owner); err != nil {
			return errors.Wrap(err, "failed to create owner account")
		}
		if err := repoFactory.SubscriptionRepo().Create(ctx, entity.NewStarterSubscription(org.ID)); err != nil {
			return errors.Wrap(err, "failed to create starter subscription")
		}

		var err error
		tokens, err = srv.openSession(ctx, repoFactory.SessionRepo(), owner, input.Client, now)

		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, errors.Wrap(domainerrors.ErrDuplicateEmail, "registration rejected")
		}
		srv.log(ctx).Error("Registration failed", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute registration transaction")
	}

	srv.log(ctx).Info("Organization registered",
		slog.Any("organization_id", org.ID),
		slog.Any("account_id", owner.ID),
	)

	return &usecase.AuthOutput{
		Account:      usecase.NewAccountView(owner),
		Organization: usecase.NewOrganizationView(org),
		Tokens:       *tokens,
	}, nil
}

// Login verifies credentials and opens a new session. Unknown emails, wrong passwords and
// accounts that are not live all fail the same way and cost one hash comparison.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (out *usecase.AuthOutput, err error) {
	ctx, span := srv.startSpan(ctx, opLogin)
	defer func() { srv.endSpan(span, opLogin, err) }()

	email := entity.NormalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting login", slog.String("email", email))

	if err := srv.loginLimiter.Check(ctx, email, input.Client.IP); err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			srv.log(ctx).Warn("Login throttled", slog.String("email", email), slog.String("ip", input.Client.IP))

			return nil, errors.Wrap(domainerrors.ErrTooManyAttempts, "login throttled")
		}
		srv.log(ctx).Warn("Login limiter unavailable, continuing", slog.Any("error", err))
	}

	account, err := srv.accountRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, errors.Wrap(err, "failed to load account")
	}

	if account == nil {
		srv.hasher.Check(input.Password, srv.dummyHash)

		return nil, srv.rejectLogin(ctx, email, input.Client.IP)
	}
	if !srv.hasher.Check(input.Password, account.PasswordHash) || !account.IsLive() {
		return nil, srv.rejectLogin(ctx, email, input.Client.IP)
	}

	// Only the subject counter: the address keeps paying for failures against other accounts.
	if err := srv.loginLimiter.Reset(ctx, email, ""); err != nil {
		srv.log(ctx).Warn("Failed to reset login attempts", slog.Any("error", err))
	}

	tokens, err := srv.openSession(ctx, srv.sessionRepo, account, input.Client, srv.now())
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Debug("Account logged in", slog.Any("account_id", account.ID), slog.Any("session_id", tokens.SessionID))

	return &usecase.AuthOutput{
		Account: usecase.NewAccountView(account),
		Tokens:  *tokens,
	}, nil
}

func (srv *authService) rejectLogin(ctx context.Context, email, ip string) error {
	if err := srv.loginLimiter.Record(ctx, email, ip); err != nil {
		srv.log(ctx).Warn("Failed to record login attempt", slog.Any("error", err))
	}
	srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.String("ip", ip))

	return errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
}

// Logout revokes every session of the account.
func (srv *authService) Logout(ctx context.Context, accountID uuid.UUID) (err error) {
	ctx, span := srv.startSpan(ctx, opLogout)
	defer func() { srv.endSpan(span, opLogout, err) }()

	revoked, err := srv.sessionRepo.RevokeAllForAccount(ctx, accountID, entity.RevokedByLogout, srv.now())
	if err != nil {
		return errors.Wrap(err, "failed to revoke sessions")
	}

	srv.log(ctx).Debug("Account logged out", slog.Any("account_id", accountID), slog.Int64("revoked", revoked))

	return nil
}

// Authenticate verifies an access token and checks it still stands for an active session
// of a live account in the organization the token names.
func (srv *authService) Authenticate(ctx context.Context, accessToken string) (*usecase.Identity, error) {
	claims, err := srv.tokenService.Verify(accessToken, service.TokenCategoryAccess)
	if err != nil {
		return nil, err
	}

	accountID, errSub := uuid.Parse(claims.Subject)
	sessionID, errSid := uuid.Parse(claims.SessionID)
	if errSub != nil || errSid != nil {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "malformed access token identifiers")
	}

	session, err := srv.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, errors.Wrap(domainerrors.ErrInvalidToken, "session not found")
		}

		return nil, errors.Wrap(err, "failed to load session")
	}
	if session.AccountID != accountID || session.State(srv.now()) != entity.SessionActive {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "session is no longer active")
	}

	account, err := srv.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, errors.Wrap(domainerrors.ErrInvalidToken, "account not found")
		}

		return nil, errors.Wrap(err, "failed to load account")
	}
	if !account.IsLive() || account.OrganizationID.String() != claims.OrganizationID {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "account is not live in this organization")
	}

	return &usecase.Identity{
		AccountID:      account.ID,
		OrganizationID: account.OrganizationID,
		SessionID:      session.ID,
		Email:          account.Email,
		Role:           account.Role,
	}, nil
}

// openSession persists a new session for account through sessions and mints its token pair.
func (srv *authService) openSession(
	ctx context.Context,
	sessions repository.SessionRepository,
	account *entity.Account,
	client usecase.ClientInfo,
	now time.Time,
) (*usecase.TokenPair, error) {
	secret, err := service.NewRefreshSecret()
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		ID:                uuid.New(),
		AccountID:         account.ID,
		RefreshTokenHash:  service.HashSecret(secret),
		ExpiresAt:         now.Add(srv.cfg.SessionLifetime),
		LastUsedIP:        client.IP,
		LastUsedUserAgent: client.UserAgent,
		LastUsedAt:        now,
	}
	if err := sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	return srv.issueTokenPair(account, session, secret, now)
}

// issueTokenPair signs an access token and a refresh token for session. The refresh token
// never outlives the session ceiling.
func (srv *authService) issueTokenPair(account *entity.Account, session *entity.Session, secret string, now time.Time) (*usecase.TokenPair, error) {
	refreshTTL := min(srv.tokenService.RefreshTokenTTL(), session.RemainingLifetime(now))
	if refreshTTL <= 0 {
		return nil, errors.Wrap(domainerrors.ErrSessionExpired, "session ceiling reached")
	}

	accessToken, accessExpiresAt, err := srv.tokenService.Issue(service.Claims{
		OrganizationID: account.OrganizationID.String(),
		Role:           account.Role.String(),
		Email:          account.Email,
		SessionID:      session.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID.String(),
		},
	}, service.TokenCategoryAccess, srv.tokenService.AccessTokenTTL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	refreshToken, refreshExpiresAt, err := srv.tokenService.Issue(service.Claims{
		SessionID: session.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID.String(),
			ID:      secret,
		},
	}, service.TokenCategoryRefresh, refreshTTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	return &usecase.TokenPair{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: refreshExpiresAt,
		TokenType:             "Bearer",
		SessionID:             session.ID,
	}, nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return domainerrors.ErrValidationFailed.WithDetails("password must be at least 8 characters")
	case len(password) > maxPasswordBytes:
		return domainerrors.ErrValidationFailed.WithDetails("password must be at most 72 bytes")
	default:
		return nil
	}
}
