package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon-backend/internal/domains/payment/model"
)

type dispatcherFixture struct {
	dispatcher  WebhookDispatcher
	paymentRepo *fakePaymentRepo
	eventLedger *fakeEventLedger
	escalations *fakeEscalationSink
	auditRepo   *fakeAuditRepo
}

func newDispatcherFixture() *dispatcherFixture {
	paymentRepo := newFakePaymentRepo()
	eventLedger := newFakeEventLedger()
	escalations := &fakeEscalationSink{}
	auditRepo := &fakeAuditRepo{}
	sm := NewStateMachine(paymentRepo, auditRepo, &fakeTxManager{}, newFakeCache())

	return &dispatcherFixture{
		dispatcher:  NewWebhookDispatcher(paymentRepo, eventLedger, escalations, sm),
		paymentRepo: paymentRepo,
		eventLedger: eventLedger,
		escalations: escalations,
		auditRepo:   auditRepo,
	}
}

func capturedPayload(paymentID, orderID string) *model.WebhookPayload {
	payload := &model.WebhookPayload{Event: model.EventPaymentCaptured}
	payload.Payload.Payment.Entity = model.PaymentEntity{
		ID:       paymentID,
		OrderID:  orderID,
		Amount:   149900,
		Currency: "INR",
		Status:   "captured",
	}
	return payload
}

func TestHandle_CapturedEventSettlesPayment(t *testing.T) {
	f := newDispatcherFixture()
	payment := pendingPayment("order_100")
	f.paymentRepo.add(payment)

	ack, err := f.dispatcher.Handle(
		context.Background(), "evt_100",
		capturedPayload("pay_100", "order_100"), nil,
	)

	require.NoError(t, err)
	assert.True(t, ack.Processed)
	assert.Equal(t, model.PaymentStatusSuccess, payment.Status)
	assert.NotNil(t, payment.PaidAt)
	assert.Equal(t, "pay_100", *payment.GatewayPaymentID)
	assert.Equal(t, model.EventStatusProcessed, f.eventLedger.statusOfOnly())

	require.Len(t, f.auditRepo.records, 1)
	assert.Equal(t, model.ActorWebhookDispatcher, f.auditRepo.records[0].Actor)
	assert.Equal(t, "evt_100", f.auditRepo.records[0].Metadata["event_id"])
}

func TestHandle_DuplicateEventIgnored(t *testing.T) {
	f := newDispatcherFixture()
	payment := pendingPayment("order_101")
	f.paymentRepo.add(payment)

	_, err := f.dispatcher.Handle(
		context.Background(), "evt_101",
		capturedPayload("pay_101", "order_101"), nil,
	)
	require.NoError(t, err)

	// Same event id redelivered.
	ack, err := f.dispatcher.Handle(
		context.Background(), "evt_101",
		capturedPayload("pay_101", "order_101"), nil,
	)

	require.NoError(t, err)
	assert.False(t, ack.Processed)
	assert.Equal(t, "duplicate event ignored", ack.Message)
	assert.Len(t, f.auditRepo.records, 1)
}

func TestHandle_RedeliveryUnderFreshEventID(t *testing.T) {
	f := newDispatcherFixture()
	payment := pendingPayment("order_102")
	f.paymentRepo.add(payment)

	_, err := f.dispatcher.Handle(
		context.Background(), "evt_102a",
		capturedPayload("pay_102", "order_102"), nil,
	)
	require.NoError(t, err)

	// Same payment and event type, different gateway event id. The
	// (payment, type) pair dedups it.
	ack, err := f.dispatcher.Handle(
		context.Background(), "evt_102b",
		capturedPayload("pay_102", "order_102"), nil,
	)

	require.NoError(t, err)
	assert.False(t, ack.Processed)
	assert.Len(t, f.auditRepo.records, 1)
}

func TestHandle_UnknownEventTypeAcknowledged(t *testing.T) {
	f := newDispatcherFixture()
	payment := pendingPayment("order_103")
	f.paymentRepo.add(payment)

	payload := capturedPayload("pay_103", "order_103")
	payload.Event = "refund.created"

	ack, err := f.dispatcher.Handle(context.Background(), "evt_103", payload, nil)

	require.NoError(t, err)
	assert.False(t, ack.Processed)
	assert.Equal(t, "unsupported event type ignored", ack.Message)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, model.EventStatusProcessed, f.eventLedger.statusOfOnly())
}

func TestHandle_UnlocatablePaymentMarksEntryFailed(t *testing.T) {
	f := newDispatcherFixture()

	ack, err := f.dispatcher.Handle(
		context.Background(), "evt_104",
		capturedPayload("pay_104", "order_104"), nil,
	)

	require.NoError(t, err)
	assert.False(t, ack.Processed)
	assert.Equal(t, "payment not located", ack.Message)
	assert.Equal(t, model.EventStatusFailed, f.eventLedger.statusOfOnly())
}

func TestHandle_OrderIDFallbackLookup(t *testing.T) {
	f := newDispatcherFixture()
	payment := pendingPayment("order_105")
	f.paymentRepo.add(payment)

	// order.paid carries only the order entity; the payment has no
	// gateway payment id stamped yet.
	payload := &model.WebhookPayload{Event: model.EventOrderPaid}
	payload.Payload.Order.Entity = model.OrderEntity{
		ID:         "order_105",
		AmountPaid: 149900,
		Status:     "paid",
	}

	ack, err := f.dispatcher.Handle(context.Background(), "evt_105", payload, nil)

	require.NoError(t, err)
	assert.True(t, ack.Processed)
	assert.Equal(t, model.PaymentStatusSuccess, payment.Status)
}

func TestHandle_FailedEventEscalates(t *testing.T) {
	f := newDispatcherFixture()
	payment := pendingPayment("order_106")
	f.paymentRepo.add(payment)

	payload := capturedPayload("pay_106", "order_106")
	payload.Event = model.EventPaymentFailed
	payload.Payload.Payment.Entity.Status = "failed"
	payload.Payload.Payment.Entity.ErrorCode = strPtr("BAD_REQUEST_ERROR")
	payload.Payload.Payment.Entity.ErrorDescription = strPtr("card declined")

	ack, err := f.dispatcher.Handle(context.Background(), "evt_106", payload, nil)

	require.NoError(t, err)
	assert.True(t, ack.Processed)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)

	require.Len(t, f.escalations.created, 1)
	escalation := f.escalations.created[0]
	assert.Equal(t, model.EscalationPaymentFailed, escalation.Type)
	assert.Equal(t, payment.ID.String(), escalation.ResourceID)
	assert.Equal(t, "BAD_REQUEST_ERROR", escalation.Metadata["gateway_error_code"])

	// Error detail also lands in the audit trail.
	require.Len(t, f.auditRepo.records, 1)
	assert.Equal(t, "card declined", f.auditRepo.records[0].Metadata["gateway_error_description"])
}

func TestHandle_LateEventAfterTerminalIsAbsorbed(t *testing.T) {
	f := newDispatcherFixture()
	payment := pendingPayment("order_107")
	payment.Status = model.PaymentStatusSuccess
	payment.GatewayPaymentID = strPtr("pay_107")
	f.paymentRepo.add(payment)

	payload := capturedPayload("pay_107", "order_107")
	payload.Event = model.EventPaymentFailed

	ack, err := f.dispatcher.Handle(context.Background(), "evt_107", payload, nil)

	require.NoError(t, err)
	assert.False(t, ack.Processed)
	assert.Equal(t, "event acknowledged, no state change", ack.Message)
	assert.Equal(t, model.PaymentStatusSuccess, payment.Status)
	assert.Empty(t, f.escalations.created)
}

func TestHandle_LedgerWriteFailureReturnsError(t *testing.T) {
	f := newDispatcherFixture()
	f.eventLedger.recordErr = errors.New("connection refused")

	// Nothing was recorded, so the error propagates and the gateway
	// redelivers safely.
	ack, err := f.dispatcher.Handle(
		context.Background(), "evt_108",
		capturedPayload("pay_108", "order_108"), nil,
	)

	require.Error(t, err)
	assert.Nil(t, ack)
}
