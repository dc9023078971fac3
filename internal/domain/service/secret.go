package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
)

const secretBytes = 32

// NewRefreshSecret returns 32 random bytes, base64url encoded, embedded in a refresh token as its jti.
func NewRefreshSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate refresh secret")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewResetToken returns 32 random bytes, hex encoded, handed to the account owner out of band.
func NewResetToken() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate reset token")
	}

	return hex.EncodeToString(buf), nil
}

// HashSecret returns the hex SHA-256 of a high-entropy secret. Only this digest is ever stored.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))

	return hex.EncodeToString(sum[:])
}

// SecretMatches compares a presented secret against a stored digest in constant time.
func SecretMatches(secret, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(storedHash)) == 1
}
