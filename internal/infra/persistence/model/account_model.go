package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table. Email is unique across every tenant.
// It is an exported type so it can be used by the GORM Gen tool from other packages.
type AccountModel struct {
	ID                     uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	OrganizationID         uuid.UUID `gorm:"type:uuid;not null;index"`
	Email                  string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash           string    `gorm:"type:varchar(255);not null"`
	FullName               string    `gorm:"type:varchar(150);not null"`
	Role                   string    `gorm:"type:varchar(20);not null"`
	IsActive               bool      `gorm:"not null;default:true"`
	PasswordResetTokenHash *string   `gorm:"type:char(64);index"`
	PasswordResetExpiresAt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              *time.Time `gorm:"index"`

	Organization *OrganizationModel `gorm:"foreignKey:OrganizationID"`
	Sessions     []SessionModel     `gorm:"foreignKey:AccountID"`
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
