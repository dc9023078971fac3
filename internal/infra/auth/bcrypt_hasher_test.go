package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_Hash(t *testing.T) {
	hasher := NewBcryptHasherWithCost(bcrypt.MinCost)

	hash, err := hasher.Hash("password123")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "password123", hash)

	// Salted: hashing twice never yields the same string.
	again, err := hasher.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestBcryptHasher_Check(t *testing.T) {
	hasher := NewBcryptHasherWithCost(bcrypt.MinCost)

	hash, err := hasher.Hash("password123")
	require.NoError(t, err)

	assert.True(t, hasher.Check("password123", hash))
	assert.False(t, hasher.Check("password124", hash))
	assert.False(t, hasher.Check("password123", "not-a-bcrypt-hash"))
}

func TestBcryptHasher_CostIsApplied(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{name: "configured cost", cost: 5, want: 5},
		{name: "below minimum is clamped", cost: 1, want: bcrypt.MinCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := NewBcryptHasherWithCost(tt.cost).Hash("password123")
			require.NoError(t, err)

			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cost)
		})
	}
}

func TestBcryptHasher_PasswordTooLong(t *testing.T) {
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}

	_, err := NewBcryptHasherWithCost(bcrypt.MinCost).Hash(string(long))
	assert.Error(t, err)
}
