package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"payrecon-backend/internal/domains/payment/gateway"
	"payrecon-backend/internal/domains/payment/model"
	repo "payrecon-backend/internal/domains/payment/repository"
	"payrecon-backend/internal/shared"
	"payrecon-backend/pkg/logger"
)

// =====================================================
// RECONCILE SERVICE IMPLEMENTATION
// =====================================================
// Safety net for lost webhooks. Polls the gateway for the
// authoritative payment status and drives the same state machine the
// webhook path drives, so both paths converge on identical audit
// trails.
type reconcileService struct {
	paymentRepo    repo.PaymentRepoInterface
	escalationSink repo.EscalationSinkInterface
	stateMachine   *StateMachine
	gateway        gateway.Gateway
	asynqClient    *asynq.Client
}

func NewReconcileService(
	paymentRepo repo.PaymentRepoInterface,
	escalationSink repo.EscalationSinkInterface,
	stateMachine *StateMachine,
	gw gateway.Gateway,
	asynqClient *asynq.Client,
) ReconcileService {
	return &reconcileService{
		paymentRepo:    paymentRepo,
		escalationSink: escalationSink,
		stateMachine:   stateMachine,
		gateway:        gw,
		asynqClient:    asynqClient,
	}
}

// =====================================================
// RECONCILE ATTEMPT
// =====================================================

// Reconcile performs one reconciliation attempt
//
// Outcome mapping:
// - payment already terminal            -> Resolved (webhook won the race)
// - gateway says captured               -> transition SUCCESS, Resolved
// - gateway says failed                 -> transition FAILED + escalate, Resolved
// - gateway says created/authorized     -> still in flight, Retryable
// - gateway unreachable or erroring     -> Retryable
// - gateway does not know the payment   -> Exhausted (retry cannot help)
//
// The returned error carries the retry cause for Retryable and
// Exhausted outcomes; it is nil when the outcome is Resolved.
func (s *reconcileService) Reconcile(
	ctx context.Context,
	paymentID uuid.UUID,
	attempt int,
) (ReconcileOutcome, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			// Row gone (e.g. environment reset). Nothing to reconcile.
			logger.Warn("Reconcile target payment no longer exists", map[string]interface{}{
				"payment_id": paymentID,
			})
			return OutcomeResolved, nil
		}
		return OutcomeRetryable, fmt.Errorf("failed to load payment: %w", err)
	}

	if payment.IsTerminal() {
		logger.Info("Payment already settled, skipping reconcile", map[string]interface{}{
			"payment_id": paymentID,
			"status":     payment.Status,
		})
		return OutcomeResolved, nil
	}

	// Without a gateway payment id there is nothing to query yet. The
	// id arrives with the first authorization webhook; keep waiting.
	if payment.GatewayPaymentID == nil {
		return OutcomeRetryable, model.ErrGatewayPaymentUnset
	}

	status, err := s.gateway.FetchPaymentStatus(ctx, *payment.GatewayPaymentID)
	if err != nil {
		if errors.Is(err, gateway.ErrPaymentUnknown) {
			return OutcomeExhausted, err
		}
		return OutcomeRetryable, model.NewGatewayUnavailableError(err)
	}

	return s.applyGatewayStatus(ctx, payment, status, attempt)
}

// applyGatewayStatus maps the gateway's answer onto our state machine.
func (s *reconcileService) applyGatewayStatus(
	ctx context.Context,
	payment *model.Payment,
	status *gateway.PaymentStatus,
	attempt int,
) (ReconcileOutcome, error) {
	metadata := map[string]interface{}{
		"source":         "gateway_status_query",
		"gateway_status": status.Status,
		"attempt":        attempt,
	}
	if status.ErrorCode != nil {
		metadata["gateway_error_code"] = *status.ErrorCode
	}
	if status.ErrorDescription != nil {
		metadata["gateway_error_description"] = *status.ErrorDescription
	}

	switch status.Status {
	case gateway.StatusCaptured:
		if !status.Amount.IsZero() && !status.Amount.Equal(payment.Amount) {
			logger.Warn("Gateway amount differs from recorded amount", map[string]interface{}{
				"payment_id":      payment.ID,
				"recorded_amount": payment.Amount.String(),
				"gateway_amount":  status.Amount.String(),
			})
			metadata["gateway_amount"] = status.Amount.String()
		}
		if _, err := s.stateMachine.Transition(ctx, payment, model.PaymentStatusSuccess, model.ActorReconcileWorker, metadata, nil); err != nil {
			return OutcomeRetryable, err
		}
		return OutcomeResolved, nil

	case gateway.StatusFailed:
		applied, err := s.stateMachine.Transition(ctx, payment, model.PaymentStatusFailed, model.ActorReconcileWorker, metadata, nil)
		if err != nil {
			return OutcomeRetryable, err
		}
		if applied {
			s.escalate(ctx, payment, model.EscalationPaymentFailed, metadata)
		}
		return OutcomeResolved, nil

	case gateway.StatusAuthorized:
		// Record the authorization; capture or failure is still ahead.
		if _, err := s.stateMachine.Transition(ctx, payment, model.PaymentStatusAuthorized, model.ActorReconcileWorker, metadata, nil); err != nil {
			return OutcomeRetryable, err
		}
		return OutcomeRetryable, fmt.Errorf("payment authorized but not yet captured")

	case gateway.StatusCreated:
		return OutcomeRetryable, fmt.Errorf("payment still awaiting customer action")

	default:
		logger.Warn("Gateway returned unrecognized payment status", map[string]interface{}{
			"payment_id":     payment.ID,
			"gateway_status": status.Status,
		})
		return OutcomeRetryable, fmt.Errorf("unrecognized gateway status %q", status.Status)
	}
}

// =====================================================
// EXHAUSTION
// =====================================================

// Exhaust finalizes a payment after the last failed reconcile attempt
//
// Two effects, in order:
// 1. Transition the payment to FAILED so it stops looking live
// 2. Emit exactly one reconcile_exhausted escalation for ops
//
// Called once, by the queue handler, on the final attempt only. A
// payment that settled between the last attempt and this call is left
// alone.
func (s *reconcileService) Exhaust(
	ctx context.Context,
	paymentID uuid.UUID,
	retries int,
	reason string,
) error {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("failed to load payment for exhaustion: %w", err)
	}

	if payment.IsTerminal() {
		logger.Info("Payment settled before exhaustion, skipping", map[string]interface{}{
			"payment_id": paymentID,
			"status":     payment.Status,
		})
		return nil
	}

	metadata := map[string]interface{}{
		"source":  "reconcile_exhausted",
		"retries": retries,
		"reason":  reason,
	}

	if _, err := s.stateMachine.Transition(ctx, payment, model.PaymentStatusFailed, model.ActorReconcileWorker, metadata, nil); err != nil {
		return fmt.Errorf("failed to fail exhausted payment: %w", err)
	}

	s.escalate(ctx, payment, model.EscalationReconcileExhausted, metadata)

	logger.Warn("Reconciliation exhausted, escalated to ops", map[string]interface{}{
		"payment_id": paymentID,
		"retries":    retries,
		"reason":     reason,
	})

	return nil
}

// =====================================================
// STALE PAYMENT SWEEP
// =====================================================

// SweepStalePending re-enqueues reconciliation for pending payments
// older than the stale age
//
// Covers the double-loss case: the webhook never arrived AND the
// reconcile task scheduled at intent creation was lost. Task id
// dedup makes re-enqueueing a payment whose task still exists a
// harmless no-op.
func (s *reconcileService) SweepStalePending(ctx context.Context) (int, error) {
	stale, err := s.paymentRepo.ListStalePending(ctx, model.StalePaymentAge, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale payments: %w", err)
	}

	enqueued := 0
	for _, payment := range stale {
		err := EnqueueReconcileTask(s.asynqClient, payment, 0)
		if err != nil {
			if errors.Is(err, model.ErrDuplicateJob) {
				continue
			}
			logger.Error("Failed to enqueue reconcile task during sweep", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		logger.Info("Stale payment sweep enqueued reconcile tasks", map[string]interface{}{
			"stale_count": len(stale),
			"enqueued":    enqueued,
		})
	}

	return enqueued, nil
}

// =====================================================
// TASK ENQUEUE
// =====================================================

// EnqueueReconcileTask schedules a reconcile task for a payment.
//
// The task id is derived from the gateway order id, so intent
// creation and the sweep cannot double-enqueue the same payment while
// a task is still pending. Returns ErrDuplicateJob on conflict.
func EnqueueReconcileTask(client *asynq.Client, payment *model.Payment, delay time.Duration) error {
	payload, err := json.Marshal(shared.ReconcilePaymentPayload{
		PaymentID:      payment.ID.String(),
		GatewayOrderID: payment.GatewayOrderID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reconcile payload: %w", err)
	}

	task := asynq.NewTask(shared.TypeReconcilePayment, payload)

	opts := []asynq.Option{
		asynq.Queue(shared.QueueReconcile),
		asynq.TaskID("reconcile:" + payment.GatewayOrderID),
		asynq.MaxRetry(model.MaxReconcileAttempts),
		asynq.Timeout(model.ReconcileAttemptTimeout),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	if _, err := client.Enqueue(task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return model.ErrDuplicateJob
		}
		return fmt.Errorf("failed to enqueue reconcile task: %w", err)
	}

	return nil
}

// escalate emits one ops escalation for a payment. Best effort.
func (s *reconcileService) escalate(
	ctx context.Context,
	payment *model.Payment,
	escalationType string,
	metadata map[string]interface{},
) {
	merged := map[string]interface{}{
		"gateway_order_id": payment.GatewayOrderID,
		"amount":           payment.Amount.String(),
		"currency":         payment.Currency,
	}
	for k, v := range metadata {
		merged[k] = v
	}

	escalation := &model.OpsEscalation{
		ID:           uuid.New(),
		Type:         escalationType,
		ResourceID:   payment.ID.String(),
		ResourceType: model.EscalationResourcePayment,
		Metadata:     merged,
		CreatedAt:    time.Now(),
	}

	if err := s.escalationSink.Create(ctx, escalation); err != nil {
		logger.Error("Failed to create ops escalation", err)
	}
}
