package service

import (
	"context"
	"testing"
	"time"

	"sattva/internal/gateway"
	"sattva/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- mocks ---

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByOrderID(ctx context.Context, razorpayOrderID string) (*model.Booking, error) {
	args := m.Called(ctx, razorpayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Booking, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	return args.Get(0).([]model.Booking), args.Get(1).(int64), args.Error(2)
}

func (m *MockBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) Resolve(ctx context.Context, bookingType string, id uuid.UUID) (model.Entity, error) {
	args := m.Called(ctx, bookingType, id)
	return args.Get(0).(model.Entity), args.Error(1)
}

func (m *MockEntityRepository) ListExperiences(ctx context.Context, page, limit int) ([]model.Experience, int64, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]model.Experience), args.Get(1).(int64), args.Error(2)
}

func (m *MockEntityRepository) ListClasses(ctx context.Context, page, limit int) ([]model.WellnessClass, int64, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]model.WellnessClass), args.Get(1).(int64), args.Error(2)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]model.AuditLog), args.Get(1).(int64), args.Error(2)
}

type MockTaxQuoter struct {
	mock.Mock
}

func (m *MockTaxQuoter) QuoteTaxes(ctx context.Context, bookingType string, baseAmount decimal.Decimal, region string, bookingDate time.Time) (TaxResult, *model.TaxConfiguration, error) {
	args := m.Called(ctx, bookingType, baseAmount, region, bookingDate)
	var config *model.TaxConfiguration
	if args.Get(1) != nil {
		config = args.Get(1).(*model.TaxConfiguration)
	}
	return args.Get(0).(TaxResult), config, args.Error(2)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*gateway.Order, error) {
	args := m.Called(ctx, amount, currency, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockPaymentGateway) VerifySignature(orderID, paymentID, signature string) bool {
	args := m.Called(orderID, paymentID, signature)
	return args.Bool(0)
}

type MockStatusPublisher struct {
	mock.Mock
}

func (m *MockStatusPublisher) PublishPaymentStatus(bookingID uuid.UUID, orderID, status string) {
	m.Called(bookingID, orderID, status)
}

// passthroughTxManager runs the callback directly; transaction semantics are
// the repository layer's concern, not the service's.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- fixtures ---

type bookingFixture struct {
	bookings  *MockBookingRepository
	entities  *MockEntityRepository
	audits    *MockAuditRepository
	taxes     *MockTaxQuoter
	gateway   *MockPaymentGateway
	publisher *MockStatusPublisher
	svc       BookingService
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		bookings:  new(MockBookingRepository),
		entities:  new(MockEntityRepository),
		audits:    new(MockAuditRepository),
		taxes:     new(MockTaxQuoter),
		gateway:   new(MockPaymentGateway),
		publisher: new(MockStatusPublisher),
	}
	f.audits.On("Log", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewBookingService(f.bookings, f.entities, f.audits, f.taxes, f.gateway, f.publisher, passthroughTxManager{})
	return f
}

func experienceEntity(id uuid.UUID) model.Entity {
	return model.Entity{
		Kind: model.BookingTypePilgrimExperience,
		Experience: &model.Experience{
			ID:             id,
			Name:           "Char Dham Circuit",
			Region:         "IN-UK",
			Images:         []string{"https://cdn.example.com/chardham.jpg"},
			PricePerPerson: decimal.NewFromInt(1000),
			MaxOccupancy:   10,
			IsActive:       true,
		},
	}
}

func classEntity(id uuid.UUID) model.Entity {
	return model.Entity{
		Kind: model.BookingTypeWellnessClass,
		Class: &model.WellnessClass{
			ID:              id,
			Title:           "Sunrise Hatha",
			Region:          "IN-HP",
			PricePerSession: decimal.RequireFromString("499.50"),
			IsActive:        true,
		},
	}
}

func quoteOf(totalTax string, code string) (TaxResult, *model.TaxConfiguration) {
	tax := decimal.RequireFromString(totalTax)
	result := TaxResult{
		TotalTax: tax,
		Breakdown: []model.TaxLine{{
			TaxType:           model.TaxTypeGST,
			CalculationMethod: model.CalcMethodPercentage,
			CalculatedAmount:  tax,
		}},
	}
	return result, &model.TaxConfiguration{ConfigCode: code}
}

// --- Review ---

func TestReview_ExperiencePricing(t *testing.T) {
	f := newBookingFixture()
	entityID := uuid.New()

	f.entities.On("Resolve", mock.Anything, model.BookingTypePilgrimExperience, entityID).
		Return(experienceEntity(entityID), nil)

	result, config := quoteOf("360.00", "GST_STANDARD")
	f.taxes.On("QuoteTaxes", mock.Anything, model.BookingTypePilgrimExperience,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromInt(2000)) }),
		"IN-UK", mock.Anything).
		Return(result, config, nil)

	review, err := f.svc.Review(context.Background(), ReviewRequest{
		BookingType: model.BookingTypePilgrimExperience,
		EntityID:    entityID.String(),
		Attendees:   2,
	})

	require.NoError(t, err)
	assert.Equal(t, "Char Dham Circuit", review.EntityName)
	assert.True(t, review.BaseAmount.Equal(decimal.NewFromInt(2000)), "1000 per person x 2 attendees")
	assert.True(t, review.TotalTax.Equal(decimal.RequireFromString("360.00")))
	assert.True(t, review.TotalAmount.Equal(decimal.RequireFromString("2360.00")))
	assert.Equal(t, "GST_STANDARD", review.TaxConfigCode)
}

func TestReview_ClassDefaultsToOneSession(t *testing.T) {
	f := newBookingFixture()
	entityID := uuid.New()

	f.entities.On("Resolve", mock.Anything, model.BookingTypeWellnessClass, entityID).
		Return(classEntity(entityID), nil)

	result, config := quoteOf("89.91", "GST_CLASSES")
	f.taxes.On("QuoteTaxes", mock.Anything, model.BookingTypeWellnessClass,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.RequireFromString("499.50")) }),
		"IN-HP", mock.Anything).
		Return(result, config, nil)

	review, err := f.svc.Review(context.Background(), ReviewRequest{
		BookingType: model.BookingTypeWellnessClass,
		EntityID:    entityID.String(),
		Attendees:   1,
	})

	require.NoError(t, err)
	assert.True(t, review.BaseAmount.Equal(decimal.RequireFromString("499.50")), "sessions default to 1")
}

func TestReview_RejectsOverOccupancy(t *testing.T) {
	f := newBookingFixture()
	entityID := uuid.New()

	f.entities.On("Resolve", mock.Anything, model.BookingTypePilgrimExperience, entityID).
		Return(experienceEntity(entityID), nil)

	_, err := f.svc.Review(context.Background(), ReviewRequest{
		BookingType: model.BookingTypePilgrimExperience,
		EntityID:    entityID.String(),
		Attendees:   11,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum occupancy")
	f.taxes.AssertNotCalled(t, "QuoteTaxes", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReview_UnknownEntity(t *testing.T) {
	f := newBookingFixture()
	entityID := uuid.New()

	f.entities.On("Resolve", mock.Anything, model.BookingTypePilgrimExperience, entityID).
		Return(model.Entity{}, gorm.ErrRecordNotFound)

	_, err := f.svc.Review(context.Background(), ReviewRequest{
		BookingType: model.BookingTypePilgrimExperience,
		EntityID:    entityID.String(),
		Attendees:   1,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Create ---

func TestCreate_RequiresConsent(t *testing.T) {
	f := newBookingFixture()

	_, err := f.svc.Create(context.Background(), CreateBookingRequest{
		ReviewRequest: ReviewRequest{
			BookingType: model.BookingTypePilgrimExperience,
			EntityID:    uuid.NewString(),
			Attendees:   1,
		},
		UserConsent: false,
	}, uuid.NewString())

	assert.ErrorIs(t, err, model.ErrConsentRequired)
	f.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_FreezesPricingAndOpensOrder(t *testing.T) {
	f := newBookingFixture()
	entityID := uuid.New()
	userID := uuid.New()

	f.entities.On("Resolve", mock.Anything, model.BookingTypePilgrimExperience, entityID).
		Return(experienceEntity(entityID), nil)

	result, config := quoteOf("180.00", "GST_STANDARD")
	f.taxes.On("QuoteTaxes", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(result, config, nil)

	f.bookings.On("Create", mock.Anything, mock.AnythingOfType("*model.Booking")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.Booking).ID = uuid.New()
		}).
		Return(nil)

	f.gateway.On("CreateOrder", mock.Anything,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.RequireFromString("1180.00")) }),
		"INR", mock.AnythingOfType("string")).
		Return(&gateway.Order{ID: "order_live_1", Status: "created"}, nil)

	f.bookings.On("Update", mock.Anything, mock.AnythingOfType("*model.Booking")).Return(nil)

	resp, err := f.svc.Create(context.Background(), CreateBookingRequest{
		ReviewRequest: ReviewRequest{
			BookingType: model.BookingTypePilgrimExperience,
			EntityID:    entityID.String(),
			Attendees:   1,
		},
		UserConsent: true,
	}, userID.String())

	require.NoError(t, err)
	assert.Equal(t, "order_live_1", resp.OrderID)
	assert.Equal(t, model.BookingStatusPaymentPending, resp.Status)
	assert.True(t, resp.Amount.Equal(decimal.RequireFromString("1180.00")))
	f.bookings.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestCreate_GatewayFailureAbortsBooking(t *testing.T) {
	f := newBookingFixture()
	entityID := uuid.New()

	f.entities.On("Resolve", mock.Anything, model.BookingTypePilgrimExperience, entityID).
		Return(experienceEntity(entityID), nil)

	result, config := quoteOf("180.00", "GST_STANDARD")
	f.taxes.On("QuoteTaxes", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(result, config, nil)

	f.bookings.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	_, err := f.svc.Create(context.Background(), CreateBookingRequest{
		ReviewRequest: ReviewRequest{
			BookingType: model.BookingTypePilgrimExperience,
			EntityID:    entityID.String(),
			Attendees:   1,
		},
		UserConsent: true,
	}, uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment order")
	f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// --- VerifyPayment ---

func pendingBooking(orderID string) *model.Booking {
	return &model.Booking{
		ID:              uuid.New(),
		BookingType:     model.BookingTypePilgrimExperience,
		UserID:          uuid.New(),
		Status:          model.BookingStatusPaymentPending,
		PaymentStatus:   model.PaymentStatusPending,
		RazorpayOrderID: orderID,
		TotalAmount:     decimal.RequireFromString("1180.00"),
	}
}

func TestVerifyPayment_ConfirmsBooking(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")

	f.bookings.On("GetByOrderID", mock.Anything, "order_1").Return(booking, nil)
	f.gateway.On("VerifySignature", "order_1", "pay_1", "sig_1").Return(true)
	f.bookings.On("Update", mock.Anything, booking).Return(nil)
	f.publisher.On("PublishPaymentStatus", booking.ID, "order_1", model.BookingStatusConfirmed).Return()

	resp, err := f.svc.VerifyPayment(context.Background(), VerifyPaymentRequest{
		RazorpayOrderID:   "order_1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig_1",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, model.BookingStatusConfirmed, resp.Status)
	assert.Equal(t, model.PaymentStatusPaid, booking.PaymentStatus)
	require.NotNil(t, booking.PaidAt)
	f.publisher.AssertExpectations(t)
}

func TestVerifyPayment_BadSignatureFailsBooking(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")

	f.bookings.On("GetByOrderID", mock.Anything, "order_1").Return(booking, nil)
	f.gateway.On("VerifySignature", "order_1", "pay_1", "forged").Return(false)
	f.bookings.On("Update", mock.Anything, booking).Return(nil)
	f.publisher.On("PublishPaymentStatus", booking.ID, "order_1", model.BookingStatusPaymentFailed).Return()

	resp, err := f.svc.VerifyPayment(context.Background(), VerifyPaymentRequest{
		RazorpayOrderID:   "order_1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "forged",
	})

	require.NoError(t, err)
	assert.False(t, resp.Success, "a forged signature must never confirm")
	assert.Equal(t, model.BookingStatusPaymentFailed, resp.Status)
	assert.Equal(t, "SIGNATURE_MISMATCH", booking.FailureCode)
}

func TestVerifyPayment_ReplayReturnsStoredOutcome(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")
	booking.Status = model.BookingStatusConfirmed
	booking.RazorpayPaymentID = "pay_1"

	f.bookings.On("GetByOrderID", mock.Anything, "order_1").Return(booking, nil)

	resp, err := f.svc.VerifyPayment(context.Background(), VerifyPaymentRequest{
		RazorpayOrderID:   "order_1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig_1",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPayment_TerminalBookingNotPayable(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")
	booking.Status = model.BookingStatusExpired

	f.bookings.On("GetByOrderID", mock.Anything, "order_1").Return(booking, nil)

	resp, err := f.svc.VerifyPayment(context.Background(), VerifyPaymentRequest{
		RazorpayOrderID:   "order_1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig_1",
	})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "no longer payable")
	f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// --- ReportFailure ---

func TestReportFailure_MarksBookingFailed(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")

	f.bookings.On("GetByOrderID", mock.Anything, "order_1").Return(booking, nil)
	f.bookings.On("Update", mock.Anything, booking).Return(nil)
	f.publisher.On("PublishPaymentStatus", booking.ID, "order_1", model.BookingStatusPaymentFailed).Return()

	err := f.svc.ReportFailure(context.Background(), PaymentFailureRequest{
		RazorpayOrderID:  "order_1",
		ErrorCode:        "USER_CANCELLED",
		ErrorDescription: "payment was cancelled by the user",
	})

	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPaymentFailed, booking.Status)
	assert.Equal(t, "USER_CANCELLED", booking.FailureCode)
}

func TestReportFailure_UnknownOrderIsAcknowledged(t *testing.T) {
	f := newBookingFixture()

	f.bookings.On("GetByOrderID", mock.Anything, "order_missing").Return(nil, gorm.ErrRecordNotFound)

	err := f.svc.ReportFailure(context.Background(), PaymentFailureRequest{
		RazorpayOrderID: "order_missing",
		ErrorCode:       "SERVER_ERROR",
	})

	assert.NoError(t, err, "advisory callback never errors on unknown orders")
}

func TestReportFailure_ConfirmedBookingUntouched(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")
	booking.Status = model.BookingStatusConfirmed

	f.bookings.On("GetByOrderID", mock.Anything, "order_1").Return(booking, nil)

	err := f.svc.ReportFailure(context.Background(), PaymentFailureRequest{
		RazorpayOrderID: "order_1",
		ErrorCode:       "SERVER_ERROR",
	})

	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status, "a late failure report cannot undo a confirmed payment")
	f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// --- Cancel / ExpireStale ---

func TestCancel_RejectsForeignBooking(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")
	booking.Status = model.BookingStatusDraft

	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)

	err := f.svc.Cancel(context.Background(), booking.ID.String(), uuid.NewString())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
	f.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCancel_OwnerCancelsPendingBooking(t *testing.T) {
	f := newBookingFixture()
	booking := pendingBooking("order_1")

	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.bookings.On("Update", mock.Anything, booking).Return(nil)
	f.publisher.On("PublishPaymentStatus", booking.ID, "order_1", model.BookingStatusCancelled).Return()

	err := f.svc.Cancel(context.Background(), booking.ID.String(), booking.UserID.String())

	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, booking.Status)
}

func TestExpireStale_SweepsPendingBookings(t *testing.T) {
	f := newBookingFixture()
	first := pendingBooking("order_1")
	second := pendingBooking("order_2")

	f.bookings.On("ListStalePending", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]model.Booking{*first, *second}, nil)
	f.bookings.On("Update", mock.Anything, mock.AnythingOfType("*model.Booking")).Return(nil)
	f.publisher.On("PublishPaymentStatus", mock.Anything, mock.Anything, model.BookingStatusExpired).Return()

	expired, err := f.svc.ExpireStale(context.Background(), time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	f.bookings.AssertNumberOfCalls(t, "Update", 2)
}
