package repository

import (
	"context"
	"time"

	"sattva/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	GetByOrderID(ctx context.Context, razorpayOrderID string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Booking, int64, error)
	Update(ctx context.Context, booking *model.Booking) error
	// ListStalePending returns payment_pending bookings older than cutoff,
	// feeding the expiry sweep.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return GetDB(ctx, r.db).Create(booking).Error
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var booking model.Booking
	if err := GetDB(ctx, r.db).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) GetByOrderID(ctx context.Context, razorpayOrderID string) (*model.Booking, error) {
	var booking model.Booking
	if err := GetDB(ctx, r.db).First(&booking, "razorpay_order_id = ?", razorpayOrderID).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Booking, int64, error) {
	var bookings []model.Booking
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Booking{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	return GetDB(ctx, r.db).Save(booking).Error
}

func (r *bookingRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := GetDB(ctx, r.db).
		Where("status = ? AND updated_at < ?", model.BookingStatusPaymentPending, cutoff).
		Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}
