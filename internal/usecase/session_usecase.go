package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionView describes one live session of the caller.
type SessionView struct {
	ID                uuid.UUID `json:"id"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	LastUsedAt        time.Time `json:"lastUsedAt"`
	LastUsedIP        string    `json:"lastUsedIp,omitempty"`
	LastUsedUserAgent string    `json:"lastUsedUserAgent,omitempty"`
	Current           bool      `json:"current"`
}

// SessionUsecase defines the interface for session management operations.
type SessionUsecase interface {
	// ListSessions returns the account's active sessions, flagging currentSessionID.
	ListSessions(ctx context.Context, accountID, currentSessionID uuid.UUID) ([]*SessionView, error)
	// RevokeSession ends one session owned by the account.
	RevokeSession(ctx context.Context, accountID, sessionID uuid.UUID) error
}
