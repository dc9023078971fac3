package repository

import (
	"context"
	"time"

	"tenantauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRotationConflict is returned by Rotate when the session no longer holds the expected
	// hash or was revoked in the meantime.
	ErrSessionRotationConflict = errors.New("session rotation conflict")
)

// RotateParams describes a compare-and-swap of a session's trusted refresh hash.
type RotateParams struct {
	SessionID    uuid.UUID
	ExpectedHash string    // Hash the caller verified the presented token against.
	NewHash      string    // Hash of the freshly minted secret.
	ExpiresAt    time.Time // Original ceiling, written back unchanged.
	IP           string
	UserAgent    string
	UsedAt       time.Time
}

// SessionRepository is the server-side registry of refresh lineages.
type SessionRepository interface {
	// Create inserts a new session with its initial hashed secret.
	Create(ctx context.Context, session *entity.Session) error

	// FindByID retrieves a session regardless of its state.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// FindByIDForUpdate retrieves a session from the primary and locks its row until the
	// surrounding transaction ends. Outside a transaction it behaves like FindByID.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// Rotate swaps the trusted hash if, and only if, the session still holds ExpectedHash and is not revoked.
	// Returns ErrSessionRotationConflict otherwise.
	Rotate(ctx context.Context, params RotateParams) (*entity.Session, error)

	// Revoke ends one session. Revoking an already revoked session is a no-op.
	Revoke(ctx context.Context, id uuid.UUID, reason entity.RevocationReason, at time.Time) error

	// RevokeAllForAccount ends every unrevoked session of the account and reports how many changed.
	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, reason entity.RevocationReason, at time.Time) (int64, error)

	// ListActiveByAccount lists sessions neither revoked nor past their ceiling at now, newest first.
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]*entity.Session, error)
}
