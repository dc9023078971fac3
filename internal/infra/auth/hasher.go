package auth

import (
	"github.com/pkg/errors"

	"tenantauth/config"
	"tenantauth/internal/domain/service"
)

// NewPasswordHasher selects the hashing algorithm configured under auth.hasher.
func NewPasswordHasher(cfg *config.Config) (service.PasswordHasher, error) {
	authCfg := cfg.Auth.WithDefaults()

	switch authCfg.Hasher {
	case config.HasherBcrypt:
		return NewBcryptHasherWithCost(authCfg.BcryptCost), nil
	case config.HasherArgon2id:
		return NewArgon2Hasher(authCfg.Argon2)
	default:
		return nil, errors.Errorf("unknown password hasher: %s", authCfg.Hasher)
	}
}
