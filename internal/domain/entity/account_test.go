package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccount_IsLive(t *testing.T) {
	deletedAt := time.Now()

	tests := []struct {
		name    string
		account *Account
		want    bool
	}{
		{name: "active account", account: &Account{IsActive: true}, want: true},
		{name: "inactive account", account: &Account{IsActive: false}, want: false},
		{name: "soft deleted account", account: &Account{IsActive: true, DeletedAt: &deletedAt}, want: false},
		{name: "nil account", account: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.IsLive())
		})
	}
}

func TestAccount_ResetToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	account := &Account{IsActive: true}

	assert.False(t, account.HasValidResetToken("hash", now))

	account.SetResetToken("hash", now.Add(30*time.Minute))
	assert.True(t, account.HasValidResetToken("hash", now))
	assert.False(t, account.HasValidResetToken("other", now))
	assert.False(t, account.HasValidResetToken("hash", now.Add(30*time.Minute)))

	account.ClearResetToken()
	assert.Nil(t, account.PasswordResetTokenHash)
	assert.Nil(t, account.PasswordResetExpiresAt)
}

func TestAccount_SoftDelete(t *testing.T) {
	now := time.Now()
	account := &Account{IsActive: true}
	account.SetResetToken("hash", now.Add(time.Hour))

	account.SoftDelete(now)

	assert.False(t, account.IsLive())
	assert.Equal(t, &now, account.DeletedAt)
	assert.Nil(t, account.PasswordResetTokenHash)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "owner@acme.test", NormalizeEmail("  Owner@ACME.test "))
}
