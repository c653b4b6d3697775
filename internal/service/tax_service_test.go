package service

import (
	"context"
	"testing"
	"time"

	"sattva/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockTaxConfigRepository struct {
	mock.Mock
}

func (m *MockTaxConfigRepository) Create(ctx context.Context, config *model.TaxConfiguration) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockTaxConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TaxConfiguration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TaxConfiguration), args.Error(1)
}

func (m *MockTaxConfigRepository) GetByCode(ctx context.Context, code string) (*model.TaxConfiguration, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TaxConfiguration), args.Error(1)
}

func (m *MockTaxConfigRepository) List(ctx context.Context, page, limit int) ([]model.TaxConfiguration, int64, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]model.TaxConfiguration), args.Get(1).(int64), args.Error(2)
}

func (m *MockTaxConfigRepository) ListCandidates(ctx context.Context, at time.Time) ([]model.TaxConfiguration, error) {
	args := m.Called(ctx, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TaxConfiguration), args.Error(1)
}

func (m *MockTaxConfigRepository) Update(ctx context.Context, config *model.TaxConfiguration) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

type taxFixture struct {
	configs *MockTaxConfigRepository
	audits  *MockAuditRepository
	svc     TaxService
}

func newTaxFixture() *taxFixture {
	f := &taxFixture{
		configs: new(MockTaxConfigRepository),
		audits:  new(MockAuditRepository),
	}
	f.audits.On("Log", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewTaxService(f.configs, f.audits, passthroughTxManager{})
	return f
}

func candidateConfig(code string, bookingType string, from time.Time, opts ...func(*model.TaxConfiguration)) model.TaxConfiguration {
	c := model.TaxConfiguration{
		ID:                     uuid.New(),
		ConfigCode:             code,
		ConfigName:             code,
		Version:                1,
		IsActive:               true,
		ApplicableBookingTypes: []string{bookingType},
		MinAmount:              decimal.Zero,
		EffectiveFrom:          from,
		Rules: []model.TaxRule{{
			TaxType:           model.TaxTypeGST,
			Rate:              decimal.NewFromInt(18),
			CalculationMethod: model.CalcMethodPercentage,
			IsActive:          true,
		}},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func TestSelectApplicableConfigurations_FiltersAndOrders(t *testing.T) {
	f := newTaxFixture()
	at := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	base := at.AddDate(0, -6, 0)

	wrongType := candidateConfig("CLASSES_ONLY", model.BookingTypeWellnessClass, base)
	tooExpensive := candidateConfig("LOW_VALUE", model.BookingTypePilgrimExperience, base, func(c *model.TaxConfiguration) {
		max := decimal.NewFromInt(100)
		c.MaxAmount = &max
	})
	older := candidateConfig("EXPERIENCES_V1", model.BookingTypePilgrimExperience, base)
	newer := candidateConfig("EXPERIENCES_V2", model.BookingTypePilgrimExperience, base.AddDate(0, 3, 0))
	fallback := candidateConfig("DEFAULT", model.BookingTypePilgrimExperience, base, func(c *model.TaxConfiguration) {
		c.IsDefault = true
	})

	f.configs.On("ListCandidates", mock.Anything, at).
		Return([]model.TaxConfiguration{wrongType, tooExpensive, older, newer, fallback}, nil)

	matches, err := f.svc.SelectApplicableConfigurations(
		context.Background(), model.BookingTypePilgrimExperience, decimal.NewFromInt(5000), "", at)

	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "DEFAULT", matches[0].ConfigCode)
	assert.Equal(t, "EXPERIENCES_V2", matches[1].ConfigCode)
	assert.Equal(t, "EXPERIENCES_V1", matches[2].ConfigCode)
}

func TestSelectApplicableConfigurations_NegativeAmount(t *testing.T) {
	f := newTaxFixture()

	_, err := f.svc.SelectApplicableConfigurations(
		context.Background(), model.BookingTypePilgrimExperience, decimal.NewFromInt(-5), "", time.Now())

	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	f.configs.AssertNotCalled(t, "ListCandidates", mock.Anything, mock.Anything)
}

func TestQuoteTaxes_UsesHighestPrecedenceConfig(t *testing.T) {
	f := newTaxFixture()
	at := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	base := at.AddDate(0, -6, 0)

	older := candidateConfig("V1", model.BookingTypePilgrimExperience, base)
	newer := candidateConfig("V2", model.BookingTypePilgrimExperience, base.AddDate(0, 3, 0))

	f.configs.On("ListCandidates", mock.Anything, at).
		Return([]model.TaxConfiguration{older, newer}, nil)

	result, config, err := f.svc.QuoteTaxes(
		context.Background(), model.BookingTypePilgrimExperience, decimal.NewFromInt(1000), "", at)

	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, "V2", config.ConfigCode)
	assert.True(t, result.TotalTax.Equal(decimal.RequireFromString("180.00")))
}

func TestQuoteTaxes_NoMatchMeansZeroTax(t *testing.T) {
	f := newTaxFixture()
	at := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	f.configs.On("ListCandidates", mock.Anything, at).Return([]model.TaxConfiguration{}, nil)

	result, config, err := f.svc.QuoteTaxes(
		context.Background(), model.BookingTypePilgrimExperience, decimal.NewFromInt(1000), "", at)

	require.NoError(t, err)
	assert.Nil(t, config)
	assert.True(t, result.TotalTax.IsZero())
	assert.Empty(t, result.Breakdown)
}

func createConfigRequest(code string) CreateTaxConfigRequest {
	return CreateTaxConfigRequest{
		ConfigCode:             code,
		ConfigName:             "Standard GST",
		ApplicableBookingTypes: []string{model.BookingTypePilgrimExperience},
		EffectiveFrom:          "2026-01-01",
		Rules: []TaxRuleInput{{
			TaxType:           model.TaxTypeGST,
			Rate:              "18",
			CalculationMethod: model.CalcMethodPercentage,
		}},
	}
}

func TestCreateConfig_RejectsDuplicateCode(t *testing.T) {
	f := newTaxFixture()
	existing := candidateConfig("GST_STANDARD", model.BookingTypePilgrimExperience, time.Now())

	f.configs.On("GetByCode", mock.Anything, "GST_STANDARD").Return(&existing, nil)

	_, err := f.svc.CreateConfig(context.Background(), createConfigRequest("GST_STANDARD"), uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	f.configs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateConfig_PersistsRulesInDeclarationOrder(t *testing.T) {
	f := newTaxFixture()

	f.configs.On("GetByCode", mock.Anything, "MULTI").Return(nil, gorm.ErrRecordNotFound)
	f.configs.On("Create", mock.Anything, mock.AnythingOfType("*model.TaxConfiguration")).Return(nil)

	req := createConfigRequest("MULTI")
	req.Rules = append(req.Rules, TaxRuleInput{
		TaxType:           model.TaxTypePlatformFee,
		Rate:              "50",
		CalculationMethod: model.CalcMethodFixedAmount,
	})

	config, err := f.svc.CreateConfig(context.Background(), req, uuid.NewString())

	require.NoError(t, err)
	require.Len(t, config.Rules, 2)
	assert.Equal(t, 0, config.Rules[0].Position)
	assert.Equal(t, 1, config.Rules[1].Position)
	assert.Equal(t, 1, config.Version)
}

func TestSupersedeConfig_LinksAndDeactivatesPrior(t *testing.T) {
	f := newTaxFixture()
	prev := candidateConfig("GST_STANDARD", model.BookingTypePilgrimExperience, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	prev.Version = 3

	f.configs.On("GetByID", mock.Anything, prev.ID).Return(&prev, nil)
	f.configs.On("Update", mock.Anything, &prev).Return(nil)
	f.configs.On("Create", mock.Anything, mock.AnythingOfType("*model.TaxConfiguration")).Return(nil)

	next, err := f.svc.SupersedeConfig(context.Background(), prev.ID.String(), createConfigRequest("GST_STANDARD"), uuid.NewString())

	require.NoError(t, err)
	assert.Equal(t, 4, next.Version)
	require.NotNil(t, next.PreviousConfigID)
	assert.Equal(t, prev.ID, *next.PreviousConfigID)
	assert.False(t, prev.IsActive, "prior version is retired, not deleted")
}

func TestApproveConfig_RejectsSelfApproval(t *testing.T) {
	f := newTaxFixture()
	creator := uuid.New()
	config := candidateConfig("GST_STANDARD", model.BookingTypePilgrimExperience, time.Now())
	config.CreatedBy = &creator

	f.configs.On("GetByID", mock.Anything, config.ID).Return(&config, nil)

	_, err := f.svc.ApproveConfig(context.Background(), config.ID.String(), creator.String())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be approved by its creator")
	f.configs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestApproveConfig_SecondAdminApproves(t *testing.T) {
	f := newTaxFixture()
	creator := uuid.New()
	approver := uuid.New()
	config := candidateConfig("GST_STANDARD", model.BookingTypePilgrimExperience, time.Now())
	config.CreatedBy = &creator

	f.configs.On("GetByID", mock.Anything, config.ID).Return(&config, nil)
	f.configs.On("Update", mock.Anything, &config).Return(nil)

	approved, err := f.svc.ApproveConfig(context.Background(), config.ID.String(), approver.String())

	require.NoError(t, err)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approver, *approved.ApprovedBy)
}
