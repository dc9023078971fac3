package service

import (
	"context"
	"time"
)

// PasswordResetEvent carries a freshly issued reset token to the notification channel.
type PasswordResetEvent struct {
	RequestID string    `json:"request_id,omitempty"` // For distributed tracing
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordResetPublisher delivers reset tokens to an out-of-process mailer.
type PasswordResetPublisher interface {
	// PublishPasswordReset hands the event over to the channel.
	PublishPasswordReset(ctx context.Context, event *PasswordResetEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
