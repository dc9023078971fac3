package service

import (
	"context"
	"time"
)

// ResetNotice is the message sent to an account owner who asked for a password reset.
type ResetNotice struct {
	AccountID string
	Email     string
	FullName  string
	Link      string
	ExpiresAt time.Time
}

// ResetNotifier delivers reset links to account owners.
type ResetNotifier interface {
	// NotifyPasswordReset sends the notice. Errors are treated as transient by the worker.
	NotifyPasswordReset(ctx context.Context, notice *ResetNotice) error
}
