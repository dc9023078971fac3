package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
)

// EnvDevelop names local development environments.
const EnvDevelop = "develop"

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Password hashing algorithms.
const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// Pub/Sub providers.
const (
	PubSubProviderGoogle  = "google"
	PubSubProviderGoCloud = "gocloud"
	PubSubProviderLocal   = "local"
)

type Config struct {
	Env EnvConfig `json:"env" yaml:"env"`

	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Storage selects the credential store backend: "postgres" (default) or "memory".
	Storage string `json:"storage" yaml:"storage"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// AutoMigrate creates or updates the schema when the process starts. Meant for development.
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`

	SecretKey SecretKeyConfig `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	// Redis backs login and forgot-password throttling. Optional; in-memory counters are used without it.
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	// PubSub configuration for password-reset event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	Tracing *TracingConfig `json:"tracing" yaml:"tracing"`

	// Worker configures the process receiving password-reset events from Pub/Sub push.
	Worker *WorkerConfig `json:"worker" yaml:"worker"`
}

type EnvConfig struct {
	Env         string `json:"env" yaml:"env"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Debug       bool   `json:"debug" yaml:"debug"`
	Log         Log    `json:"log" yaml:"log"`
}

type HTTPConfig struct {
	Port               int    `json:"port" yaml:"port"`
	MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
	Timeouts           struct {
		ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
		ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
		WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
		IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	} `json:"timeouts" yaml:"timeouts"`
	RateLimit RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`
}

// RateLimitConfig is the per-client-IP token bucket applied to the public auth routes.
type RateLimitConfig struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	PerSecond float64 `json:"perSecond" yaml:"perSecond"`
	Burst     int     `json:"burst" yaml:"burst"`
}

type SecretKeyConfig struct {
	Access  string `json:"access" yaml:"access"`
	Refresh string `json:"refresh" yaml:"refresh"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	Hasher     string       `json:"hasher" yaml:"hasher"`
	BcryptCost int          `json:"bcryptCost" yaml:"bcryptCost"`
	Argon2     Argon2Config `json:"argon2" yaml:"argon2"`

	AccessTokenTTL  time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `json:"refreshTokenTTL" yaml:"refreshTokenTTL"`
	// SessionLifetime is the absolute ceiling of a refresh lineage. Rotation never extends it.
	SessionLifetime time.Duration `json:"sessionLifetime" yaml:"sessionLifetime"`
	ResetTokenTTL   time.Duration `json:"resetTokenTTL" yaml:"resetTokenTTL"`

	// RevokeSessionsOnPasswordReset revokes every session of the account when a reset token is consumed.
	RevokeSessionsOnPasswordReset *bool `json:"revokeSessionsOnPasswordReset" yaml:"revokeSessionsOnPasswordReset"`

	LoginMaxAttempts int           `json:"loginMaxAttempts" yaml:"loginMaxAttempts"`
	LoginCooldown    time.Duration `json:"loginCooldown" yaml:"loginCooldown"`

	// ResetMaxRequests bounds forgot-password requests per email and per IP within ResetWindow.
	ResetMaxRequests int           `json:"resetMaxRequests" yaml:"resetMaxRequests"`
	ResetWindow      time.Duration `json:"resetWindow" yaml:"resetWindow"`
}

type Argon2Config struct {
	Memory      uint32 `json:"memory" yaml:"memory"`
	Time        uint32 `json:"time" yaml:"time"`
	Parallelism uint8  `json:"parallelism" yaml:"parallelism"`
	SaltLength  uint32 `json:"saltLength" yaml:"saltLength"`
	KeyLength   uint32 `json:"keyLength" yaml:"keyLength"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "google", "gocloud", "local" or empty for the no-op publisher
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Topic URL for the gocloud provider, e.g. gcppubsub://projects/p/topics/t or mem://password-reset
	URL string `json:"url" yaml:"url"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

type WorkerConfig struct {
	Port int `json:"port" yaml:"port"`
	// ResetLinkBase is the page that consumes reset tokens; the token is appended as ?token=.
	ResetLinkBase string `json:"resetLinkBase" yaml:"resetLinkBase"`
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `json:"sampleRatio" yaml:"sampleRatio"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// Defaults used when the auth section omits a value.
const (
	DefaultBcryptCost       = 10
	DefaultAccessTokenTTL   = 15 * time.Minute
	DefaultRefreshTokenTTL  = 7 * 24 * time.Hour
	DefaultSessionLifetime  = 7 * 24 * time.Hour
	DefaultResetTokenTTL    = 30 * time.Minute
	DefaultLoginMaxAttempts = 5
	DefaultLoginCooldown    = 15 * time.Minute
	DefaultResetMaxRequests = 3
	DefaultResetWindow      = time.Hour
)

// WithDefaults returns a copy of the auth configuration with every zero value replaced by its default.
// A nil receiver yields the full default set.
func (c *AuthConfig) WithDefaults() AuthConfig {
	var out AuthConfig
	if c != nil {
		out = *c
	}

	if out.Hasher == "" {
		out.Hasher = HasherBcrypt
	}
	if out.BcryptCost == 0 {
		out.BcryptCost = DefaultBcryptCost
	}
	if out.Argon2.Memory == 0 {
		out.Argon2.Memory = 64 * 1024
	}
	if out.Argon2.Time == 0 {
		out.Argon2.Time = 3
	}
	if out.Argon2.Parallelism == 0 {
		out.Argon2.Parallelism = 2
	}
	if out.Argon2.SaltLength == 0 {
		out.Argon2.SaltLength = 16
	}
	if out.Argon2.KeyLength == 0 {
		out.Argon2.KeyLength = 32
	}
	if out.AccessTokenTTL <= 0 {
		out.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if out.RefreshTokenTTL <= 0 {
		out.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if out.SessionLifetime <= 0 {
		out.SessionLifetime = DefaultSessionLifetime
	}
	if out.ResetTokenTTL <= 0 {
		out.ResetTokenTTL = DefaultResetTokenTTL
	}
	if out.RevokeSessionsOnPasswordReset == nil {
		revoke := true
		out.RevokeSessionsOnPasswordReset = &revoke
	}
	if out.LoginMaxAttempts <= 0 {
		out.LoginMaxAttempts = DefaultLoginMaxAttempts
	}
	if out.LoginCooldown <= 0 {
		out.LoginCooldown = DefaultLoginCooldown
	}
	if out.ResetMaxRequests <= 0 {
		out.ResetMaxRequests = DefaultResetMaxRequests
	}
	if out.ResetWindow <= 0 {
		out.ResetWindow = DefaultResetWindow
	}

	return out
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	configFile, found := findConfigFile(currEnv, searchPaths)
	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// AUTH_SESSIONLIFETIME -> auth.sessionLifetime, aligned with the YAML keys.
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func findConfigFile(currEnv string, searchPaths []string) (string, bool) {
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.Storage == "" {
		cfg.Storage = StoragePostgres
	}

	authCfg := cfg.Auth.WithDefaults()
	cfg.Auth = &authCfg

	if cfg.Storage == StoragePostgres {
		if cfg.Postgres == nil {
			return nil, errors.New("postgres configuration is required for the postgres storage driver")
		}
		// POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, ...
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from POSTGRES_REPLICAS_{index}_{field} variables.
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
