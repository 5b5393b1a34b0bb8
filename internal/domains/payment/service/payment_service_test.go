package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon-backend/internal/domains/payment/model"
)

type paymentServiceFixture struct {
	service     PaymentService
	paymentRepo *fakePaymentRepo
	eventLedger *fakeEventLedger
	auditRepo   *fakeAuditRepo
	cache       *fakeCache
}

func newPaymentServiceFixture() *paymentServiceFixture {
	paymentRepo := newFakePaymentRepo()
	eventLedger := newFakeEventLedger()
	escalations := &fakeEscalationSink{}
	auditRepo := &fakeAuditRepo{}
	cache := newFakeCache()
	sm := NewStateMachine(paymentRepo, auditRepo, &fakeTxManager{}, cache)

	return &paymentServiceFixture{
		service:     NewPaymentService(paymentRepo, eventLedger, escalations, auditRepo, sm, cache, nil),
		paymentRepo: paymentRepo,
		eventLedger: eventLedger,
		auditRepo:   auditRepo,
		cache:       cache,
	}
}

func TestGetPaymentStatus_ReturnsCurrentState(t *testing.T) {
	f := newPaymentServiceFixture()
	payment := pendingPayment("order_300")
	f.paymentRepo.add(payment)

	status, err := f.service.GetPaymentStatus(context.Background(), payment.ID)

	require.NoError(t, err)
	assert.Equal(t, payment.ID, status.PaymentID)
	assert.Equal(t, "order_300", status.GatewayOrderID)
	assert.Equal(t, model.PaymentStatusPending, status.Status)
	assert.True(t, payment.Amount.Equal(status.Amount))

	// The read populated the cache.
	assert.Contains(t, f.cache.entries, statusCacheKey(payment.ID))
}

func TestGetPaymentStatus_UnknownPayment(t *testing.T) {
	f := newPaymentServiceFixture()

	_, err := f.service.GetPaymentStatus(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPaymentNotFound))

	var paymentErr *model.PaymentError
	require.True(t, errors.As(err, &paymentErr))
	assert.Equal(t, model.ErrCodePaymentNotFound, paymentErr.Code)
}

func TestCorrectPayment_ValidationRejectsEmptyReason(t *testing.T) {
	f := newPaymentServiceFixture()
	payment := pendingPayment("order_301")
	payment.Status = model.PaymentStatusFailed
	f.paymentRepo.add(payment)

	err := f.service.CorrectPayment(context.Background(), payment.ID, "ops@example.com", model.CorrectionRequest{})

	require.Error(t, err)
	var paymentErr *model.PaymentError
	require.True(t, errors.As(err, &paymentErr))
	assert.Equal(t, model.ErrCodeInvalidRequest, paymentErr.Code)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
}

func TestCorrectPayment_AppliesToTerminalPayment(t *testing.T) {
	f := newPaymentServiceFixture()
	payment := pendingPayment("order_302")
	payment.Status = model.PaymentStatusFailed
	f.paymentRepo.add(payment)

	err := f.service.CorrectPayment(
		context.Background(), payment.ID, "ops@example.com",
		model.CorrectionRequest{Reason: "settled out of band", Note: "ticket OPS-1423"},
	)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCorrected, payment.Status)
	require.Len(t, f.auditRepo.records, 1)
	assert.Equal(t, "ops@example.com", f.auditRepo.records[0].Actor)
}

func TestCorrectPayment_RejectsLivePayment(t *testing.T) {
	f := newPaymentServiceFixture()
	payment := pendingPayment("order_303")
	f.paymentRepo.add(payment)

	err := f.service.CorrectPayment(
		context.Background(), payment.ID, "ops@example.com",
		model.CorrectionRequest{Reason: "premature correction"},
	)

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCorrectionNotAllowed))
}

func TestGetAuditTrail_ChronologicalHistory(t *testing.T) {
	f := newPaymentServiceFixture()
	payment := pendingPayment("order_304")
	f.paymentRepo.add(payment)

	sm := NewStateMachine(f.paymentRepo, f.auditRepo, &fakeTxManager{}, nil)
	_, err := sm.Transition(context.Background(), payment, model.PaymentStatusAuthorized, model.ActorWebhookDispatcher, nil, strPtr("pay_304"))
	require.NoError(t, err)
	_, err = sm.Transition(context.Background(), payment, model.PaymentStatusSuccess, model.ActorReconcileWorker, nil, nil)
	require.NoError(t, err)

	trail, err := f.service.GetAuditTrail(context.Background(), payment.ID)

	require.NoError(t, err)
	assert.Equal(t, payment.ID, trail.PaymentID)
	require.Len(t, trail.Records, 2)
	assert.Equal(t, model.PaymentStatusPending, trail.Records[0].OldState)
	assert.Equal(t, model.PaymentStatusAuthorized, trail.Records[0].NewState)
	assert.Equal(t, model.PaymentStatusAuthorized, trail.Records[1].OldState)
	assert.Equal(t, model.PaymentStatusSuccess, trail.Records[1].NewState)
}

func TestGetAuditTrail_IncludesLedgerEvents(t *testing.T) {
	f := newPaymentServiceFixture()
	payment := pendingPayment("order_305")
	f.paymentRepo.add(payment)

	event := &model.WebhookEvent{
		ID:               uuid.New(),
		EventID:          "evt_305",
		GatewayPaymentID: strPtr("pay_305"),
		EventType:        model.EventPaymentCaptured,
	}
	isNew, err := f.eventLedger.RecordIfNew(context.Background(), event)
	require.NoError(t, err)
	require.True(t, isNew)
	require.NoError(t, f.eventLedger.AttachPayment(context.Background(), event.ID, payment.ID))

	trail, err := f.service.GetAuditTrail(context.Background(), payment.ID)

	require.NoError(t, err)
	require.Len(t, trail.Events, 1)
	assert.Equal(t, "evt_305", trail.Events[0].EventID)
	assert.Equal(t, model.EventPaymentCaptured, trail.Events[0].EventType)
}

func TestGetAuditTrail_UnknownPayment(t *testing.T) {
	f := newPaymentServiceFixture()

	_, err := f.service.GetAuditTrail(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPaymentNotFound))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, defaultListLimit, clampLimit(-5))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, maxListLimit, clampLimit(10000))
}
