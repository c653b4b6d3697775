package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxType enum constants
const (
	TaxTypeGST         = "GST"
	TaxTypeServiceTax  = "Service_Tax"
	TaxTypePlatformFee = "Platform_Fee"
	TaxTypeTourismLevy = "Tourism_Levy"
)

// Calculation methods for a tax rule
const (
	CalcMethodPercentage  = "percentage"
	CalcMethodFixedAmount = "fixed_amount"
	// Declared for forward compatibility; no tier schedule exists yet and the
	// engine refuses to compute it rather than guessing.
	CalcMethodTiered = "tiered"
)

// TaxRule is one line-item tax computation within a configuration.
// Position preserves declaration order for the breakdown.
type TaxRule struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConfigID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	TaxType           string          `gorm:"type:varchar(30);not null" json:"tax_type"`
	Rate              decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"`
	CalculationMethod string          `gorm:"type:varchar(20);not null" json:"calculation_method"`
	ApplicableOn      string          `gorm:"type:varchar(30);not null;default:base_amount" json:"applicable_on"`
	IsActive          bool            `gorm:"not null;default:true" json:"is_active"`
	Description       string          `gorm:"type:text" json:"description"`
	Position          int             `gorm:"not null;default:0" json:"position"`
}

// TaxConfiguration is a versioned, time-and-amount-scoped bundle of tax
// rules. Configurations are never hard-deleted: they are deactivated or
// superseded by a new version linked through PreviousConfigID.
type TaxConfiguration struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConfigCode string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"config_code"`
	ConfigName string    `gorm:"type:varchar(255);not null" json:"config_name"`
	Version    int       `gorm:"not null;default:1" json:"version"`
	IsActive   bool      `gorm:"not null;default:true;index" json:"is_active"`
	IsDefault  bool      `gorm:"not null;default:false" json:"is_default"`

	Rules []TaxRule `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE" json:"tax_rules"`

	ApplicableBookingTypes []string         `gorm:"type:jsonb;serializer:json" json:"applicable_booking_types"`
	ApplicableRegions      []string         `gorm:"type:jsonb;serializer:json" json:"applicable_regions"`
	MinAmount              decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"min_amount"`
	MaxAmount              *decimal.Decimal `gorm:"type:decimal(12,2)" json:"max_amount"` // nullable = no upper bound

	EffectiveFrom time.Time  `gorm:"not null;index" json:"effective_from"`
	EffectiveTo   *time.Time `gorm:"index" json:"effective_to"` // nullable = open-ended

	CreatedBy        *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	ApprovedBy       *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	PreviousConfigID *uuid.UUID `gorm:"type:uuid" json:"previous_config_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate enforces the write-time invariants. A violating configuration is
// rejected, never coerced.
func (c *TaxConfiguration) Validate() error {
	if len(c.Rules) == 0 {
		return errors.New("tax configuration must contain at least one tax rule")
	}
	if c.EffectiveTo != nil && !c.EffectiveFrom.Before(*c.EffectiveTo) {
		return errors.New("effective_from must be before effective_to")
	}
	if c.MaxAmount != nil && !c.MinAmount.LessThan(*c.MaxAmount) {
		return errors.New("min_amount must be less than max_amount")
	}
	if c.MinAmount.IsNegative() {
		return errors.New("min_amount cannot be negative")
	}
	for _, r := range c.Rules {
		switch r.CalculationMethod {
		case CalcMethodPercentage, CalcMethodFixedAmount, CalcMethodTiered:
		default:
			return errors.New("unknown calculation method: " + r.CalculationMethod)
		}
	}
	return nil
}

// IsValidForBooking is the applicability predicate. All clauses must hold:
// active, booking type listed, amount within [MinAmount, MaxAmount], date
// within [EffectiveFrom, EffectiveTo], region listed (when regions are set).
// Range bounds are inclusive on both ends.
func (c *TaxConfiguration) IsValidForBooking(bookingType string, amount decimal.Decimal, region string, at time.Time) bool {
	if !c.IsActive {
		return false
	}
	if !containsString(c.ApplicableBookingTypes, bookingType) {
		return false
	}
	if amount.LessThan(c.MinAmount) {
		return false
	}
	if c.MaxAmount != nil && amount.GreaterThan(*c.MaxAmount) {
		return false
	}
	if at.Before(c.EffectiveFrom) {
		return false
	}
	if c.EffectiveTo != nil && at.After(*c.EffectiveTo) {
		return false
	}
	if len(c.ApplicableRegions) > 0 && region != "" && !containsString(c.ApplicableRegions, region) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
