package repository

import (
	"context"

	"sattva/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityRepository resolves catalog rows into the tagged model.Entity
// variant. This is the single place where the experience/class distinction
// is established; consumers never inspect raw rows.
type EntityRepository interface {
	Resolve(ctx context.Context, bookingType string, id uuid.UUID) (model.Entity, error)
	ListExperiences(ctx context.Context, page, limit int) ([]model.Experience, int64, error)
	ListClasses(ctx context.Context, page, limit int) ([]model.WellnessClass, int64, error)
}

type entityRepository struct {
	db *gorm.DB
}

func NewEntityRepository(db *gorm.DB) EntityRepository {
	return &entityRepository{db: db}
}

func (r *entityRepository) Resolve(ctx context.Context, bookingType string, id uuid.UUID) (model.Entity, error) {
	db := GetDB(ctx, r.db)

	switch bookingType {
	case model.BookingTypePilgrimExperience:
		var exp model.Experience
		if err := db.First(&exp, "id = ? AND is_active = ?", id, true).Error; err != nil {
			return model.Entity{}, err
		}
		return model.Entity{Kind: model.BookingTypePilgrimExperience, Experience: &exp}, nil
	case model.BookingTypeWellnessClass:
		var class model.WellnessClass
		if err := db.First(&class, "id = ? AND is_active = ?", id, true).Error; err != nil {
			return model.Entity{}, err
		}
		return model.Entity{Kind: model.BookingTypeWellnessClass, Class: &class}, nil
	default:
		return model.Entity{}, gorm.ErrRecordNotFound
	}
}

func (r *entityRepository) ListExperiences(ctx context.Context, page, limit int) ([]model.Experience, int64, error) {
	var items []model.Experience
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Experience{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("is_active = ?", true).Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *entityRepository) ListClasses(ctx context.Context, page, limit int) ([]model.WellnessClass, int64, error) {
	var items []model.WellnessClass
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.WellnessClass{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("is_active = ?", true).Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}
