package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/observability"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// UpsertByEmail returns the existing user for email or creates one.
	// passwordHash is only applied on creation.
	UpsertByEmail(ctx context.Context, email string, passwordHash *string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id, name string, pictureURL *string, emailVerified bool) error
	// SetTwoFactor stores or clears both encrypted MFA fields atomically.
	SetTwoFactor(ctx context.Context, id string, encryptedKey, encryptedRecoveryCode *string) error
	SetRecoveryCode(ctx context.Context, id string, encryptedRecoveryCode *string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "user", "find_by_email", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(ctx, "user", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_email", "success")
	return &u, nil
}

func (r *GormUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "email_exists", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "email_exists", "success")
	return count > 0, nil
}

func (r *GormUserRepository) UpsertByEmail(ctx context.Context, email string, passwordHash *string) (*domain.User, error) {
	existing, err := r.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "upsert_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "upsert_by_email", "success")
	return u, nil
}

func (r *GormUserRepository) UpdateProfile(ctx context.Context, id, name string, pictureURL *string, emailVerified bool) error {
	updates := map[string]any{
		"name":              name,
		"picture_url":       pictureURL,
		"is_email_verified": emailVerified,
	}
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "update_profile", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "update_profile", "success")
	return nil
}

func (r *GormUserRepository) SetTwoFactor(ctx context.Context, id string, encryptedKey, encryptedRecoveryCode *string) error {
	updates := map[string]any{
		"two_factor_auth_key":           encryptedKey,
		"two_factor_auth_recovery_code": encryptedRecoveryCode,
	}
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "set_two_factor", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "set_two_factor", "success")
	return nil
}

func (r *GormUserRepository) SetRecoveryCode(ctx context.Context, id string, encryptedRecoveryCode *string) error {
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("two_factor_auth_recovery_code", encryptedRecoveryCode).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "set_recovery_code", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "set_recovery_code", "success")
	return nil
}
