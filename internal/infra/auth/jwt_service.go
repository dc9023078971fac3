package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"tenantauth/config"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/service"
)

// jwtService is a concrete implementation of the TokenService interface using HS256 JWTs.
// Access and refresh tokens are signed with independent secrets.
type jwtService struct {
	accessSecret  []byte        // Secret key for signing access tokens.
	refreshSecret []byte        // Secret key for signing refresh tokens.
	accessTTL     time.Duration // Time-to-live for access tokens.
	refreshTTL    time.Duration // Upper bound for a single refresh token.
	now           func() time.Time
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}
	if cfg.SecretKey.Access == cfg.SecretKey.Refresh {
		return nil, errors.New("access and refresh secrets must differ")
	}

	authCfg := cfg.Auth.WithDefaults()

	return &jwtService{
		accessSecret:  []byte(cfg.SecretKey.Access),
		refreshSecret: []byte(cfg.SecretKey.Refresh),
		accessTTL:     authCfg.AccessTokenTTL,
		refreshTTL:    authCfg.RefreshTokenTTL,
		now:           time.Now,
	}, nil
}

// Issue signs the claims for the given category. The expiry is truncated to whole seconds,
// so it never lands after now+ttl.
func (s *jwtService) Issue(claims service.Claims, category service.TokenCategory, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.Errorf("%s token ttl must be positive, got %s", category, ttl)
	}

	secret, err := s.secretFor(category)
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	claims.Category = category
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, errors.Wrapf(err, "sign %s token", category)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature with the category's secret, then structure, expiry and category.
func (s *jwtService) Verify(tokenString string, category service.TokenCategory) (*service.Claims, error) {
	secret, err := s.secretFor(category)
	if err != nil {
		return nil, err
	}

	claims := &service.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			// Ensure the signing method is what we expect.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}

			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "verify "+string(category)+" token")
	}

	if claims.Category != category {
		return nil, errors.Wrapf(domainerrors.ErrInvalidToken, "expected %s token, got %q", category, claims.Category)
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "token has no subject")
	}

	return claims, nil
}

// AccessTokenTTL returns the configured duration for access tokens.
func (s *jwtService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// RefreshTokenTTL returns the configured upper bound for refresh tokens.
func (s *jwtService) RefreshTokenTTL() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) secretFor(category service.TokenCategory) ([]byte, error) {
	switch category {
	case service.TokenCategoryAccess:
		return s.accessSecret, nil
	case service.TokenCategoryRefresh:
		return s.refreshSecret, nil
	default:
		return nil, errors.Errorf("unknown token category %q", category)
	}
}
