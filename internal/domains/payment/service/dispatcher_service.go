package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payrecon-backend/internal/domains/payment/model"
	repo "payrecon-backend/internal/domains/payment/repository"
	"payrecon-backend/pkg/logger"
)

// =====================================================
// WEBHOOK DISPATCHER IMPLEMENTATION
// =====================================================
type webhookDispatcher struct {
	paymentRepo    repo.PaymentRepoInterface
	eventLedger    repo.EventLedgerInterface
	escalationSink repo.EscalationSinkInterface
	stateMachine   *StateMachine
}

func NewWebhookDispatcher(
	paymentRepo repo.PaymentRepoInterface,
	eventLedger repo.EventLedgerInterface,
	escalationSink repo.EscalationSinkInterface,
	stateMachine *StateMachine,
) WebhookDispatcher {
	return &webhookDispatcher{
		paymentRepo:    paymentRepo,
		eventLedger:    eventLedger,
		escalationSink: escalationSink,
		stateMachine:   stateMachine,
	}
}

// eventRoutes maps gateway event types to target payment states.
// Event types absent from this table are acknowledged and skipped,
// so the gateway can add vocabulary without breaking us.
var eventRoutes = map[string]string{
	model.EventPaymentAuthorized: model.PaymentStatusAuthorized,
	model.EventPaymentCaptured:   model.PaymentStatusSuccess,
	model.EventOrderPaid:         model.PaymentStatusSuccess,
	model.EventPaymentFailed:     model.PaymentStatusFailed,
}

// =====================================================
// HANDLE
// =====================================================

// Handle processes one verified webhook delivery
//
// Business Logic Flow:
// 1. Record the event in the ledger (atomic dedup)
// 2. Route the event type to a target payment state
// 3. Locate the payment (payment id first, order id fallback)
// 4. Apply the state transition through the state machine
// 5. Mark the ledger entry processed
//
// Failures after step 1 mark the ledger entry FAILED instead of
// bubbling an error: the entry already exists, so a gateway
// redelivery would dedup against it rather than reprocess. The
// reconcile safety net settles the payment; the failed entry is
// surfaced for operator review.
func (d *webhookDispatcher) Handle(
	ctx context.Context,
	eventID string,
	payload *model.WebhookPayload,
	rawPayload map[string]interface{},
) (*model.WebhookAckResponse, error) {
	event := &model.WebhookEvent{
		ID:               uuid.New(),
		EventID:          eventID,
		GatewayOrderID:   payload.GatewayOrderID(),
		GatewayPaymentID: payload.GatewayPaymentID(),
		EventType:        payload.Event,
		Payload:          rawPayload,
		Status:           model.EventStatusReceived,
		ReceivedAt:       time.Now(),
	}

	// Step 1: Record with atomic dedup. An error here means nothing
	// was recorded, so a gateway redelivery is safe and welcome.
	isNew, err := d.eventLedger.RecordIfNew(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to record event: %w", err)
	}
	if !isNew {
		logger.Info("Skipping duplicate webhook event", map[string]interface{}{
			"event_id":   eventID,
			"event_type": payload.Event,
		})
		return &model.WebhookAckResponse{
			Processed: false,
			Message:   "duplicate event ignored",
		}, nil
	}

	// Step 2: Route. Unknown types are recorded then skipped.
	targetState, ok := eventRoutes[payload.Event]
	if !ok {
		d.eventLedger.MarkProcessed(ctx, event.ID)
		logger.Info("Ignoring unsupported webhook event type", map[string]interface{}{
			"event_id":   eventID,
			"event_type": payload.Event,
		})
		return &model.WebhookAckResponse{
			Processed: false,
			Message:   "unsupported event type ignored",
		}, nil
	}

	if err := d.eventLedger.MarkProcessing(ctx, event.ID); err != nil {
		logger.Error("Failed to mark event processing", err)
	}

	// Step 3: Locate the payment.
	payment, err := d.locatePayment(ctx, event)
	if err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			d.eventLedger.MarkFailed(ctx, event.ID, "payment not found for event references")
			logger.Info("Webhook event references unknown payment", map[string]interface{}{
				"event_id":           eventID,
				"event_type":         payload.Event,
				"gateway_payment_id": event.GatewayPaymentID,
				"gateway_order_id":   event.GatewayOrderID,
			})
			return &model.WebhookAckResponse{
				Processed: false,
				Message:   "payment not located",
			}, nil
		}
		d.eventLedger.MarkFailed(ctx, event.ID, err.Error())
		return &model.WebhookAckResponse{
			Processed: false,
			Message:   "internal error locating payment",
		}, nil
	}

	if err := d.eventLedger.AttachPayment(ctx, event.ID, payment.ID); err != nil {
		logger.Error("Failed to attach payment to event", err)
	}

	// Step 4: Apply the transition.
	metadata := transitionMetadata(eventID, payload)

	applied, err := d.stateMachine.Transition(
		ctx,
		payment,
		targetState,
		model.ActorWebhookDispatcher,
		metadata,
		payload.GatewayPaymentID(),
	)
	if err != nil {
		d.eventLedger.MarkFailed(ctx, event.ID, err.Error())
		logger.Error("Failed to apply webhook transition", err)
		return &model.WebhookAckResponse{
			Processed: false,
			Message:   "failed to apply state transition",
		}, nil
	}

	// A confirmed gateway failure is an ops concern even though the
	// state machine handled it cleanly.
	if applied && targetState == model.PaymentStatusFailed {
		d.escalateFailedPayment(ctx, payment, payload)
	}

	// Step 5: Done.
	if err := d.eventLedger.MarkProcessed(ctx, event.ID); err != nil {
		logger.Error("Failed to mark event processed", err)
	}

	message := "event processed"
	if !applied {
		message = "event acknowledged, no state change"
	}
	return &model.WebhookAckResponse{
		Processed: applied,
		Message:   message,
	}, nil
}

// =====================================================
// PAYMENT LOOKUP
// =====================================================

// locatePayment resolves the payment an event refers to.
//
// Payment id is the primary key into our table once stamped. Early
// events can precede the stamping, so the gateway order id works as
// fallback; the transition then stamps the payment id for later
// deliveries.
func (d *webhookDispatcher) locatePayment(
	ctx context.Context,
	event *model.WebhookEvent,
) (*model.Payment, error) {
	if event.GatewayPaymentID != nil {
		payment, err := d.paymentRepo.GetByGatewayPaymentID(ctx, *event.GatewayPaymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, model.ErrPaymentNotFound) {
			return nil, err
		}
	}

	if event.GatewayOrderID != nil {
		return d.paymentRepo.GetByGatewayOrderID(ctx, *event.GatewayOrderID)
	}

	return nil, model.ErrPaymentNotFound
}

// =====================================================
// HELPERS
// =====================================================

func transitionMetadata(eventID string, payload *model.WebhookPayload) map[string]interface{} {
	metadata := map[string]interface{}{
		"event_id":   eventID,
		"event_type": payload.Event,
	}
	entity := payload.Payload.Payment.Entity
	if entity.ErrorCode != nil {
		metadata["gateway_error_code"] = *entity.ErrorCode
	}
	if entity.ErrorDescription != nil {
		metadata["gateway_error_description"] = *entity.ErrorDescription
	}
	return metadata
}

// escalateFailedPayment emits one ops escalation for a payment the
// gateway confirmed as failed. Best effort: an escalation write
// failure must not fail the already applied transition.
func (d *webhookDispatcher) escalateFailedPayment(
	ctx context.Context,
	payment *model.Payment,
	payload *model.WebhookPayload,
) {
	metadata := map[string]interface{}{
		"gateway_order_id": payment.GatewayOrderID,
		"amount":           payment.Amount.String(),
		"currency":         payment.Currency,
	}
	entity := payload.Payload.Payment.Entity
	if entity.ErrorCode != nil {
		metadata["gateway_error_code"] = *entity.ErrorCode
	}
	if entity.ErrorDescription != nil {
		metadata["gateway_error_description"] = *entity.ErrorDescription
	}

	escalation := &model.OpsEscalation{
		ID:           uuid.New(),
		Type:         model.EscalationPaymentFailed,
		ResourceID:   payment.ID.String(),
		ResourceType: model.EscalationResourcePayment,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}

	if err := d.escalationSink.Create(ctx, escalation); err != nil {
		logger.Error("Failed to create payment failure escalation", err)
	}
}
