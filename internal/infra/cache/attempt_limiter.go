package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"tenantauth/config"
	"tenantauth/internal/domain/service"
)

// ErrRedisUnavailable wraps Redis faults. Callers treat it as "not limited".
var ErrRedisUnavailable = errors.New("redis unavailable")

// Limits is the attempt budget of one fixed window.
type Limits struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// LimiterParams defines the required parameters
type LimiterParams struct {
	fx.In

	Config *config.Config
	Redis  redis.UniversalClient `optional:"true"`
}

// Limiters are the two throttles used by the authentication engine.
type Limiters struct {
	fx.Out

	Login         service.AttemptLimiter `name:"login"`
	PasswordReset service.AttemptLimiter `name:"passwordReset"`
}

// NewLimiters builds the login and forgot-password throttles, on Redis when available.
func NewLimiters(params LimiterParams) Limiters {
	authCfg := params.Config.Auth.WithDefaults()

	login := Limits{Prefix: "auth:login", MaxAttempts: authCfg.LoginMaxAttempts, Window: authCfg.LoginCooldown}
	reset := Limits{Prefix: "auth:reset", MaxAttempts: authCfg.ResetMaxRequests, Window: authCfg.ResetWindow}

	if params.Redis == nil {
		return Limiters{
			Login:         NewMemoryAttemptLimiter(login),
			PasswordReset: NewMemoryAttemptLimiter(reset),
		}
	}

	return Limiters{
		Login:         NewRedisAttemptLimiter(params.Redis, login),
		PasswordReset: NewRedisAttemptLimiter(params.Redis, reset),
	}
}

// redisAttemptLimiter keeps one INCR counter per subject and per IP, expiring with the window.
type redisAttemptLimiter struct {
	client redis.UniversalClient
	limits Limits
}

// NewRedisAttemptLimiter returns a fixed-window limiter backed by Redis counters.
func NewRedisAttemptLimiter(client redis.UniversalClient, limits Limits) service.AttemptLimiter {
	return &redisAttemptLimiter{client: client, limits: limits}
}

func (l *redisAttemptLimiter) Check(ctx context.Context, subject, ip string) error {
	for _, key := range counterKeys(l.limits.Prefix, subject, ip) {
		count, err := l.client.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}

			return errors.Wrap(ErrRedisUnavailable, err.Error())
		}
		if count >= int64(l.limits.MaxAttempts) {
			return service.ErrRateLimited
		}
	}

	return nil
}

// Record increments every counter and sets its expiry in one MULTI/EXEC, so a counter never outlives
// its window. EXPIRE NX keeps the window fixed while still repairing a key left without a TTL.
func (l *redisAttemptLimiter) Record(ctx context.Context, subject, ip string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range counterKeys(l.limits.Prefix, subject, ip) {
			pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, l.limits.Window)
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(ErrRedisUnavailable, err.Error())
	}

	return nil
}

func (l *redisAttemptLimiter) Reset(ctx context.Context, subject, ip string) error {
	if err := l.client.Del(ctx, counterKeys(l.limits.Prefix, subject, ip)...).Err(); err != nil {
		return errors.Wrap(ErrRedisUnavailable, err.Error())
	}

	return nil
}

func counterKeys(prefix, subject, ip string) []string {
	keys := []string{prefix + ":subject:" + subject}
	if ip != "" {
		keys = append(keys, prefix+":ip:"+ip)
	}

	return keys
}
