package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingType discriminates the two bookable product lines.
const (
	BookingTypePilgrimExperience = "pilgrim_experience"
	BookingTypeWellnessClass     = "wellness_class"
)

// BookingStatus enum constants — single source of truth for API and clients
const (
	BookingStatusDraft          = "draft"
	BookingStatusPaymentPending = "payment_pending"
	BookingStatusConfirmed      = "confirmed"
	BookingStatusPaymentFailed  = "payment_failed"
	BookingStatusCancelled      = "cancelled"
	BookingStatusCompleted      = "completed"
	BookingStatusInProgress     = "in_progress"
	BookingStatusRefunded       = "refunded"
	BookingStatusExpired        = "expired"
)

// PaymentStatus enum constants for the payment sub-record
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// TaxLine is one computed tax line item in a booking's breakdown.
type TaxLine struct {
	TaxType           string          `json:"tax_type"`
	Rate              decimal.Decimal `json:"rate"`
	CalculationMethod string          `json:"calculation_method"`
	ApplicableAmount  decimal.Decimal `json:"applicable_amount"`
	CalculatedAmount  decimal.Decimal `json:"calculated_amount"`
	Description       string          `json:"description,omitempty"`
}

// Booking persists one booking attempt with its pricing snapshot and
// payment credentials returned by the gateway.
type Booking struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BookingType string    `gorm:"type:varchar(30);not null;index" json:"booking_type"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"-"`
	EntityID    uuid.UUID `gorm:"type:uuid;not null;index" json:"entity_id"`
	Status      string    `gorm:"type:varchar(20);not null;index;default:draft" json:"status"`

	// Pricing snapshot, frozen at creation time
	BaseAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_amount"`
	TotalDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_discount"`
	TotalTax      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_tax"`
	TaxBreakdown  []TaxLine       `gorm:"type:jsonb;serializer:json" json:"tax_breakdown"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`

	// Payment sub-record (Razorpay credentials arrive via redirect/callback)
	PaymentStatus     string     `gorm:"type:varchar(20);not null;default:pending" json:"payment_status"`
	RazorpayOrderID   string     `gorm:"type:varchar(64);index" json:"razorpay_order_id"`
	RazorpayPaymentID string     `gorm:"type:varchar(64)" json:"razorpay_payment_id,omitempty"`
	RazorpaySignature string     `gorm:"type:varchar(128)" json:"-"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`

	FailureCode        string `gorm:"type:varchar(64)" json:"failure_code,omitempty"`
	FailureDescription string `gorm:"type:text" json:"failure_description,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// allowedTransitions guards every status write. Terminal statuses have no
// outgoing edges; a fresh attempt means a fresh booking row.
var allowedTransitions = map[string][]string{
	BookingStatusDraft:          {BookingStatusPaymentPending, BookingStatusCancelled},
	BookingStatusPaymentPending: {BookingStatusConfirmed, BookingStatusPaymentFailed, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusConfirmed:      {BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled, BookingStatusRefunded},
	BookingStatusInProgress:     {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCancelled:      {BookingStatusRefunded},
}

// CanTransition reports whether a booking may move from its current status to next.
func CanTransition(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// TransitionTo mutates Status after checking the guard map.
func (b *Booking) TransitionTo(next string) error {
	if !CanTransition(b.Status, next) {
		return ErrInvalidTransition
	}
	b.Status = next
	return nil
}

// IsTerminal reports whether the booking can no longer change status.
func (b *Booking) IsTerminal() bool {
	return len(allowedTransitions[b.Status]) == 0
}

func ValidBookingType(t string) bool {
	return t == BookingTypePilgrimExperience || t == BookingTypeWellnessClass
}
