package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sattva/internal/gateway"
	"sattva/internal/model"
	"sattva/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const bookingCurrency = "INR"

// PaymentGateway is the slice of the Razorpay client the booking flow needs.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// TaxQuoter is the slice of the tax engine the booking flow needs.
type TaxQuoter interface {
	QuoteTaxes(ctx context.Context, bookingType string, baseAmount decimal.Decimal, region string, bookingDate time.Time) (TaxResult, *model.TaxConfiguration, error)
}

// StatusPublisher pushes booking payment-status events to connected clients.
type StatusPublisher interface {
	PublishPaymentStatus(bookingID uuid.UUID, orderID, status string)
}

// --- DTOs ---

type ReviewRequest struct {
	BookingType   string   `form:"booking_type" json:"booking_type" binding:"required,oneof=pilgrim_experience wellness_class"`
	EntityID      string   `form:"entity_id" json:"entity_id" binding:"required,uuid"`
	Attendees     int      `form:"attendees" json:"attendees" binding:"required,min=1"`
	Sessions      int      `form:"sessions" json:"sessions" binding:"omitempty,min=1"`
	SelectedDates []string `form:"selected_dates" json:"selected_dates"`
	Region        string   `form:"region" json:"region"`
}

type ReviewResponse struct {
	BookingType   string          `json:"booking_type"`
	EntityID      uuid.UUID       `json:"entity_id"`
	EntityName    string          `json:"entity_name"`
	EntityRegion  string          `json:"entity_region"`
	EntityImages  []string        `json:"entity_images"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TaxBreakdown  []model.TaxLine `json:"tax_breakdown"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TaxConfigCode string          `json:"tax_config_code,omitempty"`
}

type CreateBookingRequest struct {
	ReviewRequest
	UserConsent bool `json:"user_consent"`
}

type CreateBookingResponse struct {
	BookingID uuid.UUID       `json:"booking_id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

type VerifyPaymentResponse struct {
	Success   bool      `json:"success"`
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
}

type PaymentFailureRequest struct {
	RazorpayOrderID  string `json:"razorpay_order_id" binding:"required"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type BookingStatusResponse struct {
	BookingID     uuid.UUID `json:"booking_id"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
}

// --- Interface ---

type BookingService interface {
	// Review prices a prospective booking without persisting anything.
	Review(ctx context.Context, req ReviewRequest) (*ReviewResponse, error)
	// Create freezes the server-computed pricing, creates the booking and a
	// gateway order, and moves the booking to payment_pending.
	Create(ctx context.Context, req CreateBookingRequest, userID string) (*CreateBookingResponse, error)
	// VerifyPayment is the gateway success callback. Idempotent per
	// (orderID, paymentID): replaying a processed pair returns the stored
	// outcome without another transition.
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyPaymentResponse, error)
	// ReportFailure is the best-effort gateway failure callback. Late or
	// duplicate reports on a terminal booking are acknowledged unchanged.
	ReportFailure(ctx context.Context, req PaymentFailureRequest) error
	Status(ctx context.Context, razorpayOrderID string) (*BookingStatusResponse, error)
	Cancel(ctx context.Context, bookingID string, userID string) error
	ListByUser(ctx context.Context, userID string, page, limit int) ([]model.Booking, int64, error)
	// ExpireStale sweeps payment_pending bookings that never saw a
	// redirect within maxAge.
	ExpireStale(ctx context.Context, maxAge time.Duration) (int, error)
}

type bookingService struct {
	bookings  repository.BookingRepository
	entities  repository.EntityRepository
	audits    repository.AuditRepository
	taxes     TaxQuoter
	gateway   PaymentGateway
	publisher StatusPublisher
	txm       repository.TransactionManager
}

func NewBookingService(
	bookings repository.BookingRepository,
	entities repository.EntityRepository,
	audits repository.AuditRepository,
	taxes TaxQuoter,
	gw PaymentGateway,
	publisher StatusPublisher,
	txm repository.TransactionManager,
) BookingService {
	return &bookingService{
		bookings:  bookings,
		entities:  entities,
		audits:    audits,
		taxes:     taxes,
		gateway:   gw,
		publisher: publisher,
		txm:       txm,
	}
}

// --- Implementation ---

func (s *bookingService) Review(ctx context.Context, req ReviewRequest) (*ReviewResponse, error) {
	entity, baseAmount, err := s.priceEntity(ctx, req)
	if err != nil {
		return nil, err
	}

	region := req.Region
	if region == "" {
		region = entity.Region()
	}

	taxes, config, err := s.taxes.QuoteTaxes(ctx, req.BookingType, baseAmount, region, time.Now())
	if err != nil {
		return nil, err
	}

	// No discount scheme is live yet; the field is carried so the pricing
	// snapshot shape stays stable.
	totalDiscount := decimal.Zero

	resp := &ReviewResponse{
		BookingType:   req.BookingType,
		EntityID:      entity.ID(),
		EntityName:    entity.DisplayName(),
		EntityRegion:  entity.Region(),
		EntityImages:  entity.ImageURLs(),
		BaseAmount:    baseAmount,
		TotalDiscount: totalDiscount,
		TotalTax:      taxes.TotalTax,
		TaxBreakdown:  taxes.Breakdown,
		TotalAmount:   baseAmount.Sub(totalDiscount).Add(taxes.TotalTax),
	}
	if config != nil {
		resp.TaxConfigCode = config.ConfigCode
	}
	return resp, nil
}

func (s *bookingService) Create(ctx context.Context, req CreateBookingRequest, userID string) (*CreateBookingResponse, error) {
	if !req.UserConsent {
		return nil, model.ErrConsentRequired
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	// Never trust a client-side quote: price again on the server.
	review, err := s.Review(ctx, req.ReviewRequest)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		BookingType:   req.BookingType,
		UserID:        uid,
		EntityID:      review.EntityID,
		Status:        model.BookingStatusDraft,
		BaseAmount:    review.BaseAmount,
		TotalDiscount: review.TotalDiscount,
		TotalTax:      review.TotalTax,
		TaxBreakdown:  review.TaxBreakdown,
		TotalAmount:   review.TotalAmount,
		PaymentStatus: model.PaymentStatusPending,
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.bookings.Create(txCtx, booking); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		order, err := s.gateway.CreateOrder(txCtx, booking.TotalAmount, bookingCurrency, booking.ID.String())
		if err != nil {
			return fmt.Errorf("failed to create payment order: %w", err)
		}

		booking.RazorpayOrderID = order.ID
		if err := booking.TransitionTo(model.BookingStatusPaymentPending); err != nil {
			return err
		}
		return s.bookings.Update(txCtx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.writeAuditLog(ctx, userID, model.ActionCreateBooking, booking.ID.String(), review.EntityName, req)

	return &CreateBookingResponse{
		BookingID: booking.ID,
		OrderID:   booking.RazorpayOrderID,
		Amount:    booking.TotalAmount,
		Currency:  bookingCurrency,
		Status:    booking.Status,
	}, nil
}

func (s *bookingService) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	booking, err := s.bookings.GetByOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no booking found for order %s", req.RazorpayOrderID)
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}

	// Replay of an already-processed pair: return the stored outcome.
	if booking.Status == model.BookingStatusConfirmed && booking.RazorpayPaymentID == req.RazorpayPaymentID {
		return &VerifyPaymentResponse{Success: true, BookingID: booking.ID, Status: booking.Status}, nil
	}
	if booking.IsTerminal() {
		return &VerifyPaymentResponse{
			Success:   false,
			BookingID: booking.ID,
			Status:    booking.Status,
			Message:   "booking is no longer payable",
		}, nil
	}

	if !s.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		booking.FailureCode = "SIGNATURE_MISMATCH"
		booking.FailureDescription = model.ErrSignatureMismatch.Error()
		s.markFailed(ctx, booking)
		return &VerifyPaymentResponse{
			Success:   false,
			BookingID: booking.ID,
			Status:    booking.Status,
			Message:   model.ErrSignatureMismatch.Error(),
		}, nil
	}

	now := time.Now()
	booking.RazorpayPaymentID = req.RazorpayPaymentID
	booking.RazorpaySignature = req.RazorpaySignature
	booking.PaymentStatus = model.PaymentStatusPaid
	booking.PaidAt = &now
	if err := booking.TransitionTo(model.BookingStatusConfirmed); err != nil {
		return nil, err
	}
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}

	s.writeAuditLog(ctx, "", model.ActionPaymentVerified, booking.ID.String(), booking.RazorpayOrderID, req)
	s.publish(booking)

	return &VerifyPaymentResponse{Success: true, BookingID: booking.ID, Status: booking.Status}, nil
}

func (s *bookingService) ReportFailure(ctx context.Context, req PaymentFailureRequest) error {
	booking, err := s.bookings.GetByOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Advisory callback for an unknown order: log and acknowledge.
			log.Printf("payment failure reported for unknown order %s (%s)", req.RazorpayOrderID, req.ErrorCode)
			return nil
		}
		return fmt.Errorf("failed to fetch booking: %w", err)
	}

	if booking.IsTerminal() || booking.Status == model.BookingStatusConfirmed {
		return nil
	}

	booking.FailureCode = req.ErrorCode
	booking.FailureDescription = req.ErrorDescription
	s.markFailed(ctx, booking)

	s.writeAuditLog(ctx, "", model.ActionPaymentFailed, booking.ID.String(), booking.RazorpayOrderID, req)

	return nil
}

func (s *bookingService) Status(ctx context.Context, razorpayOrderID string) (*BookingStatusResponse, error) {
	booking, err := s.bookings.GetByOrderID(ctx, razorpayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no booking found for order %s", razorpayOrderID)
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}

	return &BookingStatusResponse{
		BookingID:     booking.ID,
		OrderID:       booking.RazorpayOrderID,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
	}, nil
}

func (s *bookingService) Cancel(ctx context.Context, bookingID string, userID string) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking id: %w", err)
	}

	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("booking not found")
		}
		return fmt.Errorf("failed to fetch booking: %w", err)
	}

	if booking.UserID.String() != userID {
		return fmt.Errorf("booking does not belong to this user")
	}

	if err := booking.TransitionTo(model.BookingStatusCancelled); err != nil {
		return err
	}
	if err := s.bookings.Update(ctx, booking); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionCancelBooking, booking.ID.String(), booking.RazorpayOrderID, nil)
	s.publish(booking)

	return nil
}

func (s *bookingService) ListByUser(ctx context.Context, userID string, page, limit int) ([]model.Booking, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid user id: %w", err)
	}
	return s.bookings.ListByUser(ctx, uid, page, limit)
}

func (s *bookingService) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.bookings.ListStalePending(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale bookings: %w", err)
	}

	expired := 0
	for i := range stale {
		booking := &stale[i]
		if err := booking.TransitionTo(model.BookingStatusExpired); err != nil {
			continue
		}
		if err := s.bookings.Update(ctx, booking); err != nil {
			log.Printf("failed to expire booking %s: %v", booking.ID, err)
			continue
		}
		s.writeAuditLog(ctx, "", model.ActionExpireBooking, booking.ID.String(), booking.RazorpayOrderID, nil)
		s.publish(booking)
		expired++
	}

	return expired, nil
}

// --- Helpers ---

func (s *bookingService) priceEntity(ctx context.Context, req ReviewRequest) (model.Entity, decimal.Decimal, error) {
	entityID, err := uuid.Parse(req.EntityID)
	if err != nil {
		return model.Entity{}, decimal.Zero, fmt.Errorf("invalid entity id: %w", err)
	}

	entity, err := s.entities.Resolve(ctx, req.BookingType, entityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Entity{}, decimal.Zero, fmt.Errorf("bookable entity not found")
		}
		return model.Entity{}, decimal.Zero, fmt.Errorf("failed to resolve entity: %w", err)
	}

	// Units: persons for an experience, sessions for a class.
	units := req.Attendees
	if entity.Kind == model.BookingTypeWellnessClass {
		units = req.Sessions
		if units == 0 {
			units = 1
		}
	} else if entity.Experience != nil && units > entity.Experience.MaxOccupancy {
		return model.Entity{}, decimal.Zero, fmt.Errorf("attendees exceed maximum occupancy of %d", entity.Experience.MaxOccupancy)
	}

	baseAmount := entity.UnitPrice().Mul(decimal.NewFromInt(int64(units))).Round(2)
	return entity, baseAmount, nil
}

func (s *bookingService) markFailed(ctx context.Context, booking *model.Booking) {
	booking.PaymentStatus = model.PaymentStatusFailed
	if err := booking.TransitionTo(model.BookingStatusPaymentFailed); err != nil {
		log.Printf("cannot mark booking %s failed from %s: %v", booking.ID, booking.Status, err)
		return
	}
	if err := s.bookings.Update(ctx, booking); err != nil {
		log.Printf("failed to persist failed booking %s: %v", booking.ID, err)
		return
	}
	s.publish(booking)
}

func (s *bookingService) publish(booking *model.Booking) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishPaymentStatus(booking.ID, booking.RazorpayOrderID, booking.Status)
}

func (s *bookingService) writeAuditLog(ctx context.Context, userID, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := &model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}
	entry.UserID = parseUUIDOrNil(userID)

	_ = s.audits.Log(ctx, entry)
}
