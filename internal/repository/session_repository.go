package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	// FindWithUser loads a session together with its owner. A missing
	// session returns ErrSessionNotFound; a missing owner returns the
	// session with a nil user.
	FindWithUser(ctx context.Context, id string) (*domain.Session, *domain.User, error)
	UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error
	// Delete is idempotent: deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindWithUser(ctx context.Context, id string) (*domain.Session, *domain.User, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_with_user", "not_found")
			return nil, nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_with_user", "error")
		return nil, nil, err
	}
	var u domain.User
	err = r.db.WithContext(ctx).Where("id = ?", s.UserID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_with_user", "owner_missing")
			return &s, nil, nil
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_with_user", "error")
		return nil, nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_with_user", "success")
	return &s, &u, nil
}

func (r *GormSessionRepository) UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "update_expires_at", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "update_expires_at", "success")
	return nil
}

func (r *GormSessionRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Session{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete", "success")
	return nil
}

func (r *GormSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_expired", "success")
	return res.RowsAffected, nil
}
