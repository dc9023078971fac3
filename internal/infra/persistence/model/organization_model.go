package model

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationModel mirrors the 'organizations' table, the tenant boundary.
type OrganizationModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Name          string    `gorm:"type:varchar(200);not null"`
	TaxID         string    `gorm:"type:varchar(50)"`
	LogoURL       string    `gorm:"type:text"`
	Phone         string    `gorm:"type:varchar(30)"`
	Address       string    `gorm:"type:text"`
	City          string    `gorm:"type:varchar(100)"`
	Email         string    `gorm:"type:varchar(255)"`
	LegalMentions string    `gorm:"type:text"`
	IsActive      bool      `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time `gorm:"index"`

	Subscriptions []SubscriptionModel `gorm:"foreignKey:OrganizationID"`
}

// TableName explicitly sets the table name for GORM.
func (OrganizationModel) TableName() string {
	return "organizations"
}

// SubscriptionModel mirrors the 'subscriptions' table.
type SubscriptionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index"`
	Plan           string    `gorm:"type:varchar(30);not null"`
	Status         string    `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName explicitly sets the table name for GORM.
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}
