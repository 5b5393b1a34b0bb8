package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"payrecon-backend/internal/domains/payment/service"
	"payrecon-backend/pkg/logger"
)

// =====================================================
// STALE PAYMENT SWEEP HANDLER
// =====================================================
// Periodic task. Finds pending payments old enough that their webhook
// is presumed lost and re-enqueues reconciliation for them.
type SweepHandler struct {
	reconcileService service.ReconcileService
}

func NewSweepHandler(reconcileService service.ReconcileService) *SweepHandler {
	return &SweepHandler{reconcileService: reconcileService}
}

func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	enqueued, err := h.reconcileService.SweepStalePending(ctx)
	if err != nil {
		return fmt.Errorf("sweep stale payments: %w", err)
	}

	if enqueued > 0 {
		logger.Info("Stale payment sweep completed", map[string]interface{}{
			"enqueued": enqueued,
		})
	}

	return nil
}
