package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"tenantauth/internal/domain/entity"
	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/repository"
	"tenantauth/internal/infra/persistence/model"
)

// sessionRepository implements the domain.SessionRepository interface using GORM.
// Every read that feeds a rotation or revocation decision goes to the primary.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	sessionM := fromSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrAccountNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt
	session.UpdatedAt = sessionM.UpdatedAt

	return nil
}

func (repo *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	return repo.find(repo.db.WithContext(ctx).Clauses(dbresolver.Write), id)
}

// FindByIDForUpdate holds a row lock until the surrounding transaction ends, so concurrent
// refreshes of one session are serialized.
func (repo *sessionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	return repo.find(repo.db.WithContext(ctx).Clauses(dbresolver.Write, clause.Locking{Strength: "UPDATE"}), id)
}

// Rotate is a conditional update: zero affected rows means another rotation or a revocation won.
func (repo *sessionRepository) Rotate(ctx context.Context, params repository.RotateParams) (*entity.Session, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ? AND refresh_token_hash = ? AND revoked_at IS NULL", params.SessionID, params.ExpectedHash).
		Updates(map[string]any{
			"refresh_token_hash":   params.NewHash,
			"expires_at":           params.ExpiresAt,
			"last_used_ip":         params.IP,
			"last_used_user_agent": params.UserAgent,
			"last_used_at":         params.UsedAt,
		})
	if result.Error != nil {
		return nil, domainerrors.NewDatabaseExecuteError(result.Error, "failed to rotate session")
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrSessionRotationConflict
	}

	return repo.FindByID(ctx, params.SessionID)
}

// Revoke is idempotent: an already revoked session keeps its original reason and timestamp.
func (repo *sessionRepository) Revoke(ctx context.Context, id uuid.UUID, reason entity.RevocationReason, at time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]any{"revoked_at": at, "revoked_reason": string(reason)})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to revoke session")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to look up session")
	}
	if count == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

func (repo *sessionRepository) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, reason entity.RevocationReason, at time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Updates(map[string]any{"revoked_at": at, "revoked_reason": string(reason)})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to revoke account sessions")
	}

	return result.RowsAffected, nil
}

func (repo *sessionRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]*entity.Session, error) {
	var sessionModels []*model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("account_id = ? AND revoked_at IS NULL AND expires_at > ?", accountID, now).
		Order("created_at DESC").
		Find(&sessionModels).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list sessions")
	}

	sessions := make([]*entity.Session, 0, len(sessionModels))
	for _, sessionM := range sessionModels {
		sessions = append(sessions, toSessionDomain(sessionM))
	}

	return sessions, nil
}

func (repo *sessionRepository) find(db *gorm.DB, id uuid.UUID) (*entity.Session, error) {
	var sessionM model.SessionModel
	if err := db.Where("id = ?", id).First(&sessionM).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrSessionNotFound, "failed to find session")
	}

	return toSessionDomain(&sessionM), nil
}

// --- Mapper Functions ---

// toSessionDomain converts a GORM SessionModel to a domain Session entity.
func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:                data.ID,
		AccountID:         data.AccountID,
		RefreshTokenHash:  data.RefreshTokenHash,
		ExpiresAt:         data.ExpiresAt,
		RevokedAt:         data.RevokedAt,
		RevokedReason:     entity.RevocationReason(data.RevokedReason),
		LastUsedIP:        data.LastUsedIP,
		LastUsedUserAgent: data.LastUsedUserAgent,
		LastUsedAt:        data.LastUsedAt,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}

// fromSessionDomain converts a domain Session entity to a GORM SessionModel.
func fromSessionDomain(data *entity.Session) *model.SessionModel {
	if data == nil {
		return nil
	}

	return &model.SessionModel{
		ID:                data.ID,
		AccountID:         data.AccountID,
		RefreshTokenHash:  data.RefreshTokenHash,
		ExpiresAt:         data.ExpiresAt,
		RevokedAt:         data.RevokedAt,
		RevokedReason:     string(data.RevokedReason),
		LastUsedIP:        data.LastUsedIP,
		LastUsedUserAgent: data.LastUsedUserAgent,
		LastUsedAt:        data.LastUsedAt,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}
