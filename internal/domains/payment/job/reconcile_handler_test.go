package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon-backend/internal/domains/payment/service"
	"payrecon-backend/internal/shared"
)

// fakeReconcileService scripts one outcome and records calls.
type fakeReconcileService struct {
	outcome service.ReconcileOutcome
	err     error

	reconcileCalls int
	exhaustCalls   int
	exhaustRetries int
	exhaustReason  string
	sweepCount     int
}

func (f *fakeReconcileService) Reconcile(ctx context.Context, paymentID uuid.UUID, attempt int) (service.ReconcileOutcome, error) {
	f.reconcileCalls++
	return f.outcome, f.err
}

func (f *fakeReconcileService) Exhaust(ctx context.Context, paymentID uuid.UUID, retries int, reason string) error {
	f.exhaustCalls++
	f.exhaustRetries = retries
	f.exhaustReason = reason
	return nil
}

func (f *fakeReconcileService) SweepStalePending(ctx context.Context) (int, error) {
	return f.sweepCount, nil
}

func reconcileTask(t *testing.T, paymentID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(shared.ReconcilePaymentPayload{
		PaymentID:      paymentID,
		GatewayOrderID: "order_xyz",
	})
	require.NoError(t, err)
	return asynq.NewTask(shared.TypeReconcilePayment, payload)
}

func TestProcessTask_MalformedPayloadSkipsRetry(t *testing.T) {
	h := NewReconcileHandler(&fakeReconcileService{})

	task := asynq.NewTask(shared.TypeReconcilePayment, []byte("not json"))
	err := h.ProcessTask(context.Background(), task)

	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessTask_InvalidPaymentIDSkipsRetry(t *testing.T) {
	h := NewReconcileHandler(&fakeReconcileService{})

	err := h.ProcessTask(context.Background(), reconcileTask(t, "not-a-uuid"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessTask_ResolvedCompletesTask(t *testing.T) {
	svc := &fakeReconcileService{outcome: service.OutcomeResolved}
	h := NewReconcileHandler(svc)

	err := h.ProcessTask(context.Background(), reconcileTask(t, uuid.NewString()))

	require.NoError(t, err)
	assert.Equal(t, 1, svc.reconcileCalls)
	assert.Zero(t, svc.exhaustCalls)
}

func TestProcessTask_ExhaustedEscalatesImmediately(t *testing.T) {
	svc := &fakeReconcileService{
		outcome: service.OutcomeExhausted,
		err:     errors.New("gateway does not recognize payment id"),
	}
	h := NewReconcileHandler(svc)

	err := h.ProcessTask(context.Background(), reconcileTask(t, uuid.NewString()))

	// nil so asynq does not re-run an attempt that cannot succeed.
	require.NoError(t, err)
	assert.Equal(t, 1, svc.exhaustCalls)
	assert.Equal(t, "gateway does not recognize payment id", svc.exhaustReason)
}

func TestProcessTask_RetryableOnFinalAttemptExhausts(t *testing.T) {
	// Outside an asynq server the context carries no retry metadata, so
	// the handler sees retry count == max retry: the final attempt.
	svc := &fakeReconcileService{
		outcome: service.OutcomeRetryable,
		err:     errors.New("payment still awaiting customer action"),
	}
	h := NewReconcileHandler(svc)

	err := h.ProcessTask(context.Background(), reconcileTask(t, uuid.NewString()))

	require.NoError(t, err)
	assert.Equal(t, 1, svc.exhaustCalls)
	assert.Equal(t, "payment still awaiting customer action", svc.exhaustReason)
	// Exhaustion reports the retries consumed, not a one-based attempt
	// number; with no retry metadata on the context that is zero.
	assert.Zero(t, svc.exhaustRetries)
}

func TestRetryDelay_ExponentialForReconcileTasks(t *testing.T) {
	task := asynq.NewTask(shared.TypeReconcilePayment, nil)
	cause := errors.New("retry")

	assert.Equal(t, 2*time.Second, RetryDelay(0, cause, task))
	assert.Equal(t, 4*time.Second, RetryDelay(1, cause, task))
	assert.Equal(t, 8*time.Second, RetryDelay(2, cause, task))
}

func TestRetryDelay_OtherTasksUseDefaultCurve(t *testing.T) {
	task := asynq.NewTask(shared.TypeSweepStalePayments, nil)

	delay := RetryDelay(1, errors.New("retry"), task)
	assert.Greater(t, delay, time.Duration(0))
}
