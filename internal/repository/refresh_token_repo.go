package repository

import (
	"context"

	"sattva/internal/model"

	"gorm.io/gorm"
)

// RefreshTokenRepository defines the interface for data access of RefreshToken entities
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository returns a new instance of RefreshTokenRepository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *refreshTokenRepository) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	if err := GetDB(ctx, r.db).First(&rt, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *refreshTokenRepository) Delete(ctx context.Context, token string) error {
	return GetDB(ctx, r.db).Delete(&model.RefreshToken{}, "token = ?", token).Error
}

func (r *refreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	return GetDB(ctx, r.db).Delete(&model.RefreshToken{}, "user_id = ?", userID).Error
}
