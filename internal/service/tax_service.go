package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sattva/internal/model"
	"sattva/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type TaxRuleInput struct {
	TaxType           string `json:"tax_type" binding:"required"`
	Rate              string `json:"rate" binding:"required"` // Decimal string, e.g. "18" for 18%
	CalculationMethod string `json:"calculation_method" binding:"required,oneof=percentage fixed_amount tiered"`
	ApplicableOn      string `json:"applicable_on"`
	IsActive          *bool  `json:"is_active"`
	Description       string `json:"description"`
}

type CreateTaxConfigRequest struct {
	ConfigCode             string         `json:"config_code" binding:"required"`
	ConfigName             string         `json:"config_name" binding:"required"`
	IsDefault              bool           `json:"is_default"`
	ApplicableBookingTypes []string       `json:"applicable_booking_types" binding:"required,min=1,dive,oneof=pilgrim_experience wellness_class"`
	ApplicableRegions      []string       `json:"applicable_regions"`
	MinAmount              string         `json:"min_amount"`                        // Decimal string, defaults to 0
	MaxAmount              string         `json:"max_amount"`                        // Decimal string, empty = unbounded
	EffectiveFrom          string         `json:"effective_from" binding:"required"` // YYYY-MM-DD
	EffectiveTo            string         `json:"effective_to"`                      // YYYY-MM-DD, empty = open-ended
	Rules                  []TaxRuleInput `json:"tax_rules" binding:"required,min=1,dive"`
}

// --- Interface ---

type TaxService interface {
	ListConfigs(ctx context.Context, page, limit int) ([]model.TaxConfiguration, int64, error)
	GetConfig(ctx context.Context, id string) (*model.TaxConfiguration, error)
	CreateConfig(ctx context.Context, req CreateTaxConfigRequest, userID string) (*model.TaxConfiguration, error)
	// SupersedeConfig creates version N+1 linked to the prior config and
	// deactivates it in one transaction. The old row is kept forever.
	SupersedeConfig(ctx context.Context, id string, req CreateTaxConfigRequest, userID string) (*model.TaxConfiguration, error)
	DeactivateConfig(ctx context.Context, id string, userID string) error
	ApproveConfig(ctx context.Context, id string, approverID string) (*model.TaxConfiguration, error)

	SelectApplicableConfigurations(ctx context.Context, bookingType string, amount decimal.Decimal, region string, bookingDate time.Time) ([]model.TaxConfiguration, error)
	// QuoteTaxes picks the highest-precedence applicable configuration and
	// computes the breakdown. A nil config in the result means no tax
	// applies to this booking.
	QuoteTaxes(ctx context.Context, bookingType string, baseAmount decimal.Decimal, region string, bookingDate time.Time) (TaxResult, *model.TaxConfiguration, error)
}

type taxService struct {
	configs repository.TaxConfigRepository
	audits  repository.AuditRepository
	txm     repository.TransactionManager
}

func NewTaxService(configs repository.TaxConfigRepository, audits repository.AuditRepository, txm repository.TransactionManager) TaxService {
	return &taxService{configs: configs, audits: audits, txm: txm}
}

// --- Implementation ---

func (s *taxService) ListConfigs(ctx context.Context, page, limit int) ([]model.TaxConfiguration, int64, error) {
	return s.configs.List(ctx, page, limit)
}

func (s *taxService) GetConfig(ctx context.Context, id string) (*model.TaxConfiguration, error) {
	configID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid tax config id: %w", err)
	}
	config, err := s.configs.GetByID(ctx, configID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tax configuration not found")
		}
		return nil, fmt.Errorf("failed to fetch tax configuration: %w", err)
	}
	return config, nil
}

func (s *taxService) CreateConfig(ctx context.Context, req CreateTaxConfigRequest, userID string) (*model.TaxConfiguration, error) {
	config, err := buildConfigFromRequest(req)
	if err != nil {
		return nil, err
	}
	config.Version = 1
	config.CreatedBy = parseUUIDOrNil(userID)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tax configuration: %w", err)
	}

	if _, err := s.configs.GetByCode(ctx, req.ConfigCode); err == nil {
		return nil, fmt.Errorf("config code '%s' already exists", req.ConfigCode)
	}

	if err := s.configs.Create(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to create tax configuration: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionCreateTaxConfig, config.ID.String(), config.ConfigCode, req)

	return config, nil
}

func (s *taxService) SupersedeConfig(ctx context.Context, id string, req CreateTaxConfigRequest, userID string) (*model.TaxConfiguration, error) {
	prevID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid tax config id: %w", err)
	}

	next, err := buildConfigFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tax configuration: %w", err)
	}

	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		prev, err := s.configs.GetByID(txCtx, prevID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("tax configuration not found")
			}
			return fmt.Errorf("failed to fetch tax configuration: %w", err)
		}

		next.Version = prev.Version + 1
		next.PreviousConfigID = &prev.ID
		next.CreatedBy = parseUUIDOrNil(userID)

		prev.IsActive = false
		if err := s.configs.Update(txCtx, prev); err != nil {
			return fmt.Errorf("failed to deactivate prior version: %w", err)
		}

		if err := s.configs.Create(txCtx, next); err != nil {
			return fmt.Errorf("failed to create superseding configuration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.writeAuditLog(ctx, userID, model.ActionSupersedeTaxConfig, next.ID.String(), next.ConfigCode, req)

	return next, nil
}

func (s *taxService) DeactivateConfig(ctx context.Context, id string, userID string) error {
	config, err := s.GetConfig(ctx, id)
	if err != nil {
		return err
	}

	config.IsActive = false
	if err := s.configs.Update(ctx, config); err != nil {
		return fmt.Errorf("failed to deactivate tax configuration: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionDeactivateTaxConfig, config.ID.String(), config.ConfigCode, map[string]string{"deactivated_id": id})

	return nil
}

func (s *taxService) ApproveConfig(ctx context.Context, id string, approverID string) (*model.TaxConfiguration, error) {
	config, err := s.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	approver := parseUUIDOrNil(approverID)
	if approver == nil {
		return nil, fmt.Errorf("invalid approver id")
	}
	if config.CreatedBy != nil && *config.CreatedBy == *approver {
		return nil, fmt.Errorf("a configuration cannot be approved by its creator")
	}

	config.ApprovedBy = approver
	if err := s.configs.Update(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to approve tax configuration: %w", err)
	}

	s.writeAuditLog(ctx, approverID, model.ActionApproveTaxConfig, config.ID.String(), config.ConfigCode, nil)

	return config, nil
}

func (s *taxService) SelectApplicableConfigurations(ctx context.Context, bookingType string, amount decimal.Decimal, region string, bookingDate time.Time) ([]model.TaxConfiguration, error) {
	if amount.IsNegative() {
		return nil, model.ErrInvalidAmount
	}
	if bookingDate.IsZero() {
		bookingDate = time.Now()
	}

	candidates, err := s.configs.ListCandidates(ctx, bookingDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax configurations: %w", err)
	}

	matches := make([]model.TaxConfiguration, 0, len(candidates))
	for _, c := range candidates {
		if c.IsValidForBooking(bookingType, amount, region, bookingDate) {
			matches = append(matches, c)
		}
	}

	SortByPrecedence(matches)
	return matches, nil
}

func (s *taxService) QuoteTaxes(ctx context.Context, bookingType string, baseAmount decimal.Decimal, region string, bookingDate time.Time) (TaxResult, *model.TaxConfiguration, error) {
	matches, err := s.SelectApplicableConfigurations(ctx, bookingType, baseAmount, region, bookingDate)
	if err != nil {
		return TaxResult{}, nil, err
	}
	if len(matches) == 0 {
		return TaxResult{TotalTax: decimal.Zero, Breakdown: []model.TaxLine{}}, nil, nil
	}

	config := matches[0]
	result, err := CalculateTaxes(&config, baseAmount)
	if err != nil {
		return TaxResult{}, nil, err
	}
	return result, &config, nil
}

// --- Helpers ---

func buildConfigFromRequest(req CreateTaxConfigRequest) (*model.TaxConfiguration, error) {
	minAmount := decimal.Zero
	if req.MinAmount != "" {
		v, err := decimal.NewFromString(req.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid min_amount: %w", err)
		}
		minAmount = v
	}

	var maxAmount *decimal.Decimal
	if req.MaxAmount != "" {
		v, err := decimal.NewFromString(req.MaxAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid max_amount: %w", err)
		}
		maxAmount = &v
	}

	effectiveFrom, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid effective_from date format (expected YYYY-MM-DD): %w", err)
	}

	var effectiveTo *time.Time
	if req.EffectiveTo != "" {
		t, err := time.Parse("2006-01-02", req.EffectiveTo)
		if err != nil {
			return nil, fmt.Errorf("invalid effective_to date format (expected YYYY-MM-DD): %w", err)
		}
		effectiveTo = &t
	}

	rules := make([]model.TaxRule, 0, len(req.Rules))
	for i, in := range req.Rules {
		rate, err := decimal.NewFromString(in.Rate)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for rule %d: %w", i, err)
		}

		applicableOn := in.ApplicableOn
		if applicableOn == "" {
			applicableOn = "base_amount"
		}
		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}

		rules = append(rules, model.TaxRule{
			TaxType:           in.TaxType,
			Rate:              rate,
			CalculationMethod: in.CalculationMethod,
			ApplicableOn:      applicableOn,
			IsActive:          active,
			Description:       in.Description,
			Position:          i,
		})
	}

	return &model.TaxConfiguration{
		ConfigCode:             req.ConfigCode,
		ConfigName:             req.ConfigName,
		IsActive:               true,
		IsDefault:              req.IsDefault,
		Rules:                  rules,
		ApplicableBookingTypes: req.ApplicableBookingTypes,
		ApplicableRegions:      req.ApplicableRegions,
		MinAmount:              minAmount,
		MaxAmount:              maxAmount,
		EffectiveFrom:          effectiveFrom,
		EffectiveTo:            effectiveTo,
	}, nil
}

func parseUUIDOrNil(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &parsed
}

func (s *taxService) writeAuditLog(ctx context.Context, userID, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := &model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}
	entry.UserID = parseUUIDOrNil(userID)

	// Best-effort audit log — don't fail the operation if logging fails
	_ = s.audits.Log(ctx, entry)
}
