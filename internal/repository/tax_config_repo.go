package repository

import (
	"context"
	"time"

	"sattva/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaxConfigRepository persists tax configurations. There is deliberately no
// Delete: configurations are deactivated or superseded, never removed.
type TaxConfigRepository interface {
	Create(ctx context.Context, config *model.TaxConfiguration) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TaxConfiguration, error)
	GetByCode(ctx context.Context, code string) (*model.TaxConfiguration, error)
	List(ctx context.Context, page, limit int) ([]model.TaxConfiguration, int64, error)
	// ListCandidates narrows by the SQL-expressible clauses (active + date
	// window); the full applicability predicate runs in the service.
	ListCandidates(ctx context.Context, at time.Time) ([]model.TaxConfiguration, error)
	Update(ctx context.Context, config *model.TaxConfiguration) error
}

type taxConfigRepository struct {
	db *gorm.DB
}

func NewTaxConfigRepository(db *gorm.DB) TaxConfigRepository {
	return &taxConfigRepository{db: db}
}

func (r *taxConfigRepository) Create(ctx context.Context, config *model.TaxConfiguration) error {
	return GetDB(ctx, r.db).Create(config).Error
}

func (r *taxConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TaxConfiguration, error) {
	var config model.TaxConfiguration
	if err := GetDB(ctx, r.db).
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&config, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *taxConfigRepository) GetByCode(ctx context.Context, code string) (*model.TaxConfiguration, error) {
	var config model.TaxConfiguration
	if err := GetDB(ctx, r.db).
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&config, "config_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *taxConfigRepository) List(ctx context.Context, page, limit int) ([]model.TaxConfiguration, int64, error) {
	var configs []model.TaxConfiguration
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.TaxConfiguration{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("effective_from DESC").
		Offset(offset).Limit(limit).
		Find(&configs).Error; err != nil {
		return nil, 0, err
	}

	return configs, total, nil
}

func (r *taxConfigRepository) ListCandidates(ctx context.Context, at time.Time) ([]model.TaxConfiguration, error) {
	var configs []model.TaxConfiguration
	if err := GetDB(ctx, r.db).
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("is_active = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)", true, at, at).
		Order("effective_from DESC").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *taxConfigRepository) Update(ctx context.Context, config *model.TaxConfiguration) error {
	return GetDB(ctx, r.db).Save(config).Error
}
