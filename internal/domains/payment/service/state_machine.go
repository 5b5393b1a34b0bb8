package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payrecon-backend/internal/domains/payment/model"
	repo "payrecon-backend/internal/domains/payment/repository"
	"payrecon-backend/pkg/cache"
	"payrecon-backend/pkg/logger"
)

// =====================================================
// PAYMENT STATE MACHINE
// =====================================================
// Single writer for payment status. Every status change flows through
// Transition or RecordCorrection; nothing else updates the payments
// table. Each accepted change writes the payment row and its audit
// record in one transaction.

// allowedTransitions lists the forward edges of the lifecycle.
// Terminal states (success, failed, corrected) have no outgoing edges
// here; the only way out of a terminal state is a correction.
var allowedTransitions = map[string][]string{
	model.PaymentStatusPending: {
		model.PaymentStatusAuthorized,
		model.PaymentStatusSuccess,
		model.PaymentStatusFailed,
	},
	model.PaymentStatusAuthorized: {
		model.PaymentStatusSuccess,
		model.PaymentStatusFailed,
	},
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type StateMachine struct {
	paymentRepo repo.PaymentRepoInterface
	auditRepo   repo.AuditRepoInterface
	txManager   repo.TransactionManager
	cache       cache.Cache
}

func NewStateMachine(
	paymentRepo repo.PaymentRepoInterface,
	auditRepo repo.AuditRepoInterface,
	txManager repo.TransactionManager,
	cache cache.Cache,
) *StateMachine {
	return &StateMachine{
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		cache:       cache,
	}
}

func statusCacheKey(paymentID uuid.UUID) string {
	return "payment:status:" + paymentID.String()
}

// =====================================================
// TRANSITION
// =====================================================

// Transition moves a payment to newState on behalf of actor.
//
// Returns (true, nil) when the transition was applied, (false, nil)
// when it was absorbed as an idempotent no-op, and an error only for
// a genuinely invalid transition or a storage failure.
//
// No-op cases, by design of the event sources:
// - newState equals the current state (duplicate delivery)
// - the payment is already terminal (late or out-of-order event;
//   terminal states are monotonic and never regress)
// Neither writes an audit record. One accepted transition, one record.
//
// The guards run against the caller's snapshot, and the write itself
// is conditional on that snapshot still matching the row. When another
// writer committed in between, the snapshot is refreshed and the
// guards re-run, so a payment that went terminal under our feet
// absorbs the transition instead of regressing. Every lost race means
// another writer advanced the row, so the loop terminates within the
// depth of the lifecycle.
func (sm *StateMachine) Transition(
	ctx context.Context,
	payment *model.Payment,
	newState string,
	actor string,
	metadata map[string]interface{},
	gatewayPaymentID *string,
) (bool, error) {
	for {
		if newState == payment.Status {
			logger.Info("Skipping no-op payment transition", map[string]interface{}{
				"payment_id": payment.ID,
				"state":      payment.Status,
				"actor":      actor,
			})
			return false, nil
		}

		if payment.IsTerminal() {
			logger.Info("Ignoring transition out of terminal state", map[string]interface{}{
				"payment_id": payment.ID,
				"current":    payment.Status,
				"requested":  newState,
				"actor":      actor,
			})
			return false, nil
		}

		if !transitionAllowed(payment.Status, newState) {
			return false, model.NewInvalidTransitionError(payment.Status, newState)
		}

		// paid_at is stamped exactly when the payment settles successfully.
		var paidAt *time.Time
		if newState == model.PaymentStatusSuccess {
			now := time.Now()
			paidAt = &now
		}

		record := &model.StateChangeRecord{
			ID:        uuid.New(),
			PaymentID: payment.ID,
			OldState:  payment.Status,
			NewState:  newState,
			Actor:     actor,
			Metadata:  metadata,
			CreatedAt: time.Now(),
		}

		err := sm.apply(ctx, payment.ID, payment.Status, newState, paidAt, gatewayPaymentID, record)
		if errors.Is(err, model.ErrStalePaymentState) {
			if err := sm.refreshSnapshot(ctx, payment); err != nil {
				return false, err
			}
			continue
		}
		if err != nil {
			return false, err
		}

		// Keep the in-memory copy consistent for callers that read it after.
		payment.Status = newState
		if paidAt != nil && payment.PaidAt == nil {
			payment.PaidAt = paidAt
		}
		if gatewayPaymentID != nil && payment.GatewayPaymentID == nil {
			payment.GatewayPaymentID = gatewayPaymentID
		}

		sm.invalidateStatusCache(ctx, payment.ID)

		logger.Info("Payment state transition applied", map[string]interface{}{
			"payment_id": payment.ID,
			"old_state":  record.OldState,
			"new_state":  record.NewState,
			"actor":      actor,
		})

		return true, nil
	}
}

// =====================================================
// CORRECTION
// =====================================================

// RecordCorrection annotates a terminal payment with a manual
// correction by an operator.
//
// Corrections never rewrite history: the prior terminal state stays
// in the audit trail, and the correction itself is one more record.
// Only terminal payments can be corrected; a live payment is still
// owned by the automated flow.
func (sm *StateMachine) RecordCorrection(
	ctx context.Context,
	payment *model.Payment,
	operator string,
	reason string,
	note string,
) error {
	for {
		if !payment.IsTerminal() {
			return model.NewCorrectionNotAllowedError(payment.Status)
		}

		metadata := map[string]interface{}{
			"reason": reason,
		}
		if note != "" {
			metadata["note"] = note
		}

		record := &model.StateChangeRecord{
			ID:        uuid.New(),
			PaymentID: payment.ID,
			OldState:  payment.Status,
			NewState:  model.PaymentStatusCorrected,
			Actor:     operator,
			Metadata:  metadata,
			CreatedAt: time.Now(),
		}

		err := sm.apply(ctx, payment.ID, payment.Status, model.PaymentStatusCorrected, nil, nil, record)
		if errors.Is(err, model.ErrStalePaymentState) {
			if err := sm.refreshSnapshot(ctx, payment); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		payment.Status = model.PaymentStatusCorrected

		sm.invalidateStatusCache(ctx, payment.ID)

		logger.Info("Payment correction recorded", map[string]interface{}{
			"payment_id": payment.ID,
			"old_state":  record.OldState,
			"operator":   operator,
		})

		return nil
	}
}

// =====================================================
// INTERNALS
// =====================================================

// apply writes the status change and its audit record atomically. The
// row update is conditional on oldState still matching, so a stale
// snapshot surfaces as ErrStalePaymentState instead of a lost update.
func (sm *StateMachine) apply(
	ctx context.Context,
	paymentID uuid.UUID,
	oldState string,
	newState string,
	paidAt *time.Time,
	gatewayPaymentID *string,
	record *model.StateChangeRecord,
) error {
	tx, err := sm.txManager.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer sm.txManager.RollbackTx(ctx, tx)

	if err := sm.paymentRepo.UpdateStatusWithTx(ctx, tx, paymentID, oldState, newState, paidAt, gatewayPaymentID); err != nil {
		return fmt.Errorf("failed to update payment state: %w", err)
	}

	if err := sm.auditRepo.AppendWithTx(ctx, tx, record); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	if err := sm.txManager.CommitTx(ctx, tx); err != nil {
		return err
	}

	return nil
}

// refreshSnapshot replaces the in-memory payment with the current row
// after a lost write race.
func (sm *StateMachine) refreshSnapshot(ctx context.Context, payment *model.Payment) error {
	fresh, err := sm.paymentRepo.GetByID(ctx, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to reload payment after concurrent update: %w", err)
	}
	*payment = *fresh
	return nil
}

// invalidateStatusCache drops the cached status view. Cache failures
// only get logged; the database already holds the truth.
func (sm *StateMachine) invalidateStatusCache(ctx context.Context, paymentID uuid.UUID) {
	if sm.cache == nil {
		return
	}
	if err := sm.cache.Delete(ctx, statusCacheKey(paymentID)); err != nil {
		logger.Error("Failed to invalidate payment status cache", err)
	}
}
