package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"

	"tenantauth/config"
	"tenantauth/internal/domain/service"
)

const argon2Algorithm = "argon2id"

// argon2Hasher hashes passwords with argon2id and encodes them as PHC strings:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
type argon2Hasher struct {
	params config.Argon2Config
}

type argon2Encoded struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2Hasher validates the parameters and returns an argon2id hasher.
func NewArgon2Hasher(params config.Argon2Config) (service.PasswordHasher, error) {
	switch {
	case params.Memory < 8*1024:
		return nil, errors.New("argon2 memory must be at least 8 MiB")
	case params.Time < 1:
		return nil, errors.New("argon2 time cost must be at least 1")
	case params.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be at least 1")
	case params.SaltLength < 16:
		return nil, errors.New("argon2 salt must be at least 16 bytes")
	case params.KeyLength < 16:
		return nil, errors.New("argon2 key must be at least 16 bytes")
	}

	return &argon2Hasher{params: params}, nil
}

// Hash derives an argon2id key from the password and a fresh random salt.
func (h *argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "generate argon2 salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Check recomputes the key with the parameters stored in the hash and compares in constant time.
func (h *argon2Hasher) Check(password, hash string) bool {
	encoded, err := parseArgon2Hash(hash)
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(password), encoded.salt, encoded.time, encoded.memory, encoded.parallelism, uint32(len(encoded.hash)))

	return subtle.ConstantTimeCompare(key, encoded.hash) == 1
}

func parseArgon2Hash(hash string) (*argon2Encoded, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2Algorithm {
		return nil, errors.New("invalid argon2id hash format")
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, errors.New("unsupported argon2 version")
	}

	var out argon2Encoded
	for _, kv := range strings.Split(parts[3], ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("invalid argon2 parameters")
		}

		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid argon2 parameter %s", key)
		}

		switch key {
		case "m":
			out.memory = uint32(n)
		case "t":
			out.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, errors.New("argon2 parallelism out of range")
			}
			out.parallelism = uint8(n)
		default:
			return nil, errors.Errorf("unknown argon2 parameter %s", key)
		}
	}
	if out.memory == 0 || out.time == 0 || out.parallelism == 0 {
		return nil, errors.New("missing argon2 parameters")
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, errors.Wrap(err, "invalid argon2 salt")
	}
	if out.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, errors.Wrap(err, "invalid argon2 key")
	}
	if len(out.hash) == 0 {
		return nil, errors.New("empty argon2 key")
	}

	return &out, nil
}
