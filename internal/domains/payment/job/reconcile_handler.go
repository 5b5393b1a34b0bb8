package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"payrecon-backend/internal/domains/payment/model"
	"payrecon-backend/internal/domains/payment/service"
	"payrecon-backend/internal/shared"
	"payrecon-backend/internal/shared/utils"
	"payrecon-backend/pkg/logger"
)

// =====================================================
// RECONCILE TASK HANDLER
// =====================================================
// Bridges asynq retry mechanics onto reconcile outcomes. The service
// decides WHAT happened; this handler decides whether asynq retries.
type ReconcileHandler struct {
	reconcileService service.ReconcileService
}

func NewReconcileHandler(reconcileService service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{reconcileService: reconcileService}
}

// ProcessTask runs one reconcile attempt
//
// Outcome to asynq mapping:
// - Resolved  -> return nil, task completes
// - Retryable -> return the error so asynq retries with backoff,
//   UNLESS this was the final attempt, in which case exhaust now and
//   return nil (exhaustion must run our escalation, not asynq's
//   silent archive)
// - Exhausted -> exhaust immediately and return nil
func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.ReconcilePaymentPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	paymentID := utils.ParseStringToUUID(payload.PaymentID)
	if paymentID == uuid.Nil {
		return fmt.Errorf("invalid payment id %q: %w", payload.PaymentID, asynq.SkipRetry)
	}

	retryCount, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	attempt := retryCount + 1

	logger.Info("Processing reconcile task", map[string]interface{}{
		"payment_id":       payload.PaymentID,
		"gateway_order_id": payload.GatewayOrderID,
		"attempt":          attempt,
		"max_attempts":     maxRetry + 1,
	})

	outcome, err := h.reconcileService.Reconcile(ctx, paymentID, retryCount)

	switch outcome {
	case service.OutcomeResolved:
		return nil

	case service.OutcomeExhausted:
		return h.exhaust(ctx, paymentID, retryCount, err)

	case service.OutcomeRetryable:
		if retryCount >= maxRetry {
			// Final attempt. asynq would archive the task silently;
			// exhaust here instead so the escalation fires.
			return h.exhaust(ctx, paymentID, retryCount, err)
		}
		if err == nil {
			err = fmt.Errorf("payment state still unresolved")
		}
		return err

	default:
		return fmt.Errorf("unexpected reconcile outcome %v: %w", outcome, asynq.SkipRetry)
	}
}

// exhaust finalizes the payment. retries is the number of retries the
// task has consumed, which on the final attempt equals the configured
// retry cap.
func (h *ReconcileHandler) exhaust(ctx context.Context, paymentID uuid.UUID, retries int, cause error) error {
	reason := "reconcile attempts exhausted"
	if cause != nil {
		reason = cause.Error()
	}

	if err := h.reconcileService.Exhaust(ctx, paymentID, retries, reason); err != nil {
		logger.Error("Failed to exhaust payment reconciliation", err)
		// Returning the error would re-run the attempt, not the
		// exhaustion, so swallow it after logging.
	}
	return nil
}

// =====================================================
// RETRY BACKOFF
// =====================================================

// RetryDelay computes the delay before retry n of a failed task.
// Reconcile tasks back off exponentially from the base delay
// (2s, 4s, 8s); everything else keeps asynq's default curve.
func RetryDelay(n int, e error, t *asynq.Task) time.Duration {
	if t.Type() == shared.TypeReconcilePayment {
		return model.ReconcileBaseBackoff << n
	}
	return asynq.DefaultRetryDelayFunc(n, e, t)
}
