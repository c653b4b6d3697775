package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Experience is a multi-day pilgrim retreat listed in the catalog.
type Experience struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	Region         string          `gorm:"type:varchar(100);not null;index" json:"region"`
	Images         []string        `gorm:"type:jsonb;serializer:json" json:"images"`
	DurationDays   int             `gorm:"not null" json:"duration_days"`
	PricePerPerson decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_per_person"`
	MaxOccupancy   int             `gorm:"not null;default:1" json:"max_occupancy"`
	IsActive       bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WellnessClass is a scheduled single-session class listed in the catalog.
type WellnessClass struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title           string          `gorm:"type:varchar(255);not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Region          string          `gorm:"type:varchar(100);not null;index" json:"region"`
	Photos          []string        `gorm:"type:jsonb;serializer:json" json:"photos"`
	DurationMinutes int             `gorm:"not null" json:"duration_minutes"`
	PricePerSession decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_per_session"`
	GuideID         *uuid.UUID      `gorm:"type:uuid;index" json:"guide_id"`
	IsActive        bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Entity is the tagged variant over the two bookable shapes. It is resolved
// once at the repository boundary so nothing downstream has to sniff for
// images-vs-photos or name-vs-title.
type Entity struct {
	Kind       string // BookingTypePilgrimExperience or BookingTypeWellnessClass
	Experience *Experience
	Class      *WellnessClass
}

func (e Entity) ID() uuid.UUID {
	if e.Experience != nil {
		return e.Experience.ID
	}
	if e.Class != nil {
		return e.Class.ID
	}
	return uuid.Nil
}

func (e Entity) DisplayName() string {
	if e.Experience != nil {
		return e.Experience.Name
	}
	if e.Class != nil {
		return e.Class.Title
	}
	return ""
}

func (e Entity) Region() string {
	if e.Experience != nil {
		return e.Experience.Region
	}
	if e.Class != nil {
		return e.Class.Region
	}
	return ""
}

// UnitPrice is per person for experiences, per session for classes.
func (e Entity) UnitPrice() decimal.Decimal {
	if e.Experience != nil {
		return e.Experience.PricePerPerson
	}
	if e.Class != nil {
		return e.Class.PricePerSession
	}
	return decimal.Zero
}

func (e Entity) ImageURLs() []string {
	if e.Experience != nil {
		return e.Experience.Images
	}
	if e.Class != nil {
		return e.Class.Photos
	}
	return nil
}
