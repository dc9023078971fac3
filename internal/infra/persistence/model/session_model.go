package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table. Only the SHA-256 of the current refresh secret is stored.
type SessionModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	AccountID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_sessions_account_active,priority:1"`
	RefreshTokenHash  string     `gorm:"type:char(64);not null"`
	ExpiresAt         time.Time  `gorm:"not null"`
	RevokedAt         *time.Time `gorm:"index:idx_sessions_account_active,priority:2"`
	RevokedReason     string     `gorm:"type:varchar(32)"`
	LastUsedIP        string     `gorm:"type:varchar(64)"`
	LastUsedUserAgent string     `gorm:"type:varchar(512)"`
	LastUsedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}
