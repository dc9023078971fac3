package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tenantauth/config"
	"tenantauth/internal/domain/entity"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/domain/service"
	"tenantauth/internal/infra/auth"
	"tenantauth/internal/infra/cache"
	"tenantauth/internal/infra/persistence/memory"
	"tenantauth/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	events chan *service.PasswordResetEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(chan *service.PasswordResetEvent, 16)}
}

func (p *recordingPublisher) PublishPasswordReset(_ context.Context, event *service.PasswordResetEvent) error {
	p.events <- event

	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) next(t *testing.T) *service.PasswordResetEvent {
	t.Helper()

	select {
	case event := <-p.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no password reset event published")

		return nil
	}
}

type countingMetrics struct {
	mu         sync.Mutex
	operations map[string]int
	reuse      int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{operations: make(map[string]int)}
}

func (m *countingMetrics) ObserveOperation(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operations[operation+"/"+outcome]++
}

func (m *countingMetrics) ObserveReuseDetected() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reuse++
}

func (m *countingMetrics) count(operation, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.operations[operation+"/"+outcome]
}

type authFixture struct {
	svc       *authService
	store     *memory.Store
	publisher *recordingPublisher
	metrics   *countingMetrics
	clock     *fakeClock
	hasher    service.PasswordHasher
}

func newTestConfig(configure ...func(*config.AuthConfig)) *config.Config {
	authCfg := &config.AuthConfig{
		LoginMaxAttempts: 5,
		LoginCooldown:    time.Minute,
		ResetMaxRequests: 3,
		ResetWindow:      time.Hour,
	}
	for _, fn := range configure {
		fn(authCfg)
	}

	return &config.Config{
		SecretKey: config.SecretKeyConfig{
			Access:  "test_access_secret_key_very_long_for_testing",
			Refresh: "test_refresh_secret_key_very_long_for_testing",
		},
		Auth: authCfg,
	}
}

func newAuthFixture(t *testing.T, configure ...func(*config.AuthConfig)) *authFixture {
	t.Helper()

	cfg := newTestConfig(configure...)
	limits := cfg.Auth.WithDefaults()

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	store := memory.NewStore()
	publisher := newRecordingPublisher()
	metrics := newCountingMetrics()
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost)

	uc, err := NewAuthService(AuthServiceParams{
		TxManager:    store,
		AccountRepo:  store.AccountRepo(),
		SessionRepo:  store.SessionRepo(),
		Hasher:       hasher,
		TokenService: tokens,
		Publisher:    publisher,
		LoginLimiter: cache.NewMemoryAttemptLimiter(cache.Limits{
			Prefix: "auth:login", MaxAttempts: limits.LoginMaxAttempts, Window: limits.LoginCooldown,
		}),
		ResetLimiter: cache.NewMemoryAttemptLimiter(cache.Limits{
			Prefix: "auth:reset", MaxAttempts: limits.ResetMaxRequests, Window: limits.ResetWindow,
		}),
		Metrics: metrics,
		Config:  cfg,
		Logger:  newDiscardLogger(),
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Now()}
	svc := uc.(*authService)
	svc.now = clock.Now

	return &authFixture{
		svc:       svc,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		hasher:    hasher,
	}
}

func acmeRegistration() usecase.RegisterInput {
	return usecase.RegisterInput{
		CompanyName:   "Acme SARL",
		TaxID:         "001234567000089",
		City:          "Casablanca",
		CompanyEmail:  "contact@acme.test",
		OwnerFullName: "Amina Owner",
		OwnerEmail:    "Owner@Acme.test",
		Password:      "correct-horse-battery",
		Client:        usecase.ClientInfo{IP: "203.0.113.7", UserAgent: "test-agent"},
	}
}

func (f *authFixture) register(t *testing.T) *usecase.AuthOutput {
	t.Helper()

	out, err := f.svc.Register(context.Background(), acmeRegistration())
	require.NoError(t, err)

	return out
}

// failingSessionsTx runs the store's transaction but fails every session insert inside it.
type failingSessionsTx struct {
	store *memory.Store
}

func (tx failingSessionsTx) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	return tx.store.Execute(ctx, func(factory repository.RepositoryFactory) error {
		return fn(failingSessionsFactory{RepositoryFactory: factory})
	})
}

type failingSessionsFactory struct {
	repository.RepositoryFactory
}

func (f failingSessionsFactory) SessionRepo() repository.SessionRepository {
	return failingSessionRepo{SessionRepository: f.RepositoryFactory.SessionRepo()}
}

type failingSessionRepo struct {
	repository.SessionRepository
}

func (failingSessionRepo) Create(context.Context, *entity.Session) error {
	return errors.New("connection reset by peer")
}

// interleavingAccounts runs afterFindByEmail between the lookup and whatever the caller does next.
type interleavingAccounts struct {
	repository.AccountRepository
	afterFindByEmail func()
}

func (r interleavingAccounts) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	account, err := r.AccountRepository.FindByEmail(ctx, email)
	if err == nil && r.afterFindByEmail != nil {
		r.afterFindByEmail()
	}

	return account, err
}
