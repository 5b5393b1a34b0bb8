package service

import (
	"context"

	"github.com/google/uuid"

	"payrecon-backend/internal/domains/payment/model"
)

// =====================================================
// WEBHOOK DISPATCHER
// =====================================================

// WebhookDispatcher processes verified gateway webhook deliveries.
// Callers verify the signature BEFORE invoking Handle; the dispatcher
// trusts its input is authentic.
type WebhookDispatcher interface {
	// Handle records the event in the idempotency ledger and, when the
	// event is new, applies the corresponding payment state transition.
	//
	// Handle never returns an error for conditions the gateway should
	// not retry (duplicates, unknown event types, unresolvable
	// payments); those come back as an acknowledgment with
	// processed=false where relevant. An error means a transient
	// internal failure worth a gateway redelivery.
	Handle(ctx context.Context, eventID string, payload *model.WebhookPayload, rawPayload map[string]interface{}) (*model.WebhookAckResponse, error)
}

// =====================================================
// RECONCILE SERVICE
// =====================================================

// ReconcileOutcome tells the queue layer what to do after an attempt.
type ReconcileOutcome int

const (
	// OutcomeResolved: payment reached a settled state, stop retrying.
	OutcomeResolved ReconcileOutcome = iota

	// OutcomeRetryable: state still unknown, retry with backoff.
	OutcomeRetryable

	// OutcomeExhausted: no further attempt can help, escalate now.
	OutcomeExhausted
)

func (o ReconcileOutcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ReconcileService settles payments whose webhook never arrived by
// querying the gateway directly.
type ReconcileService interface {
	// Reconcile performs one reconciliation attempt for a payment.
	// attempt is zero-based and recorded in the audit metadata.
	Reconcile(ctx context.Context, paymentID uuid.UUID, attempt int) (ReconcileOutcome, error)

	// Exhaust finalizes a payment after the last failed attempt:
	// transition to FAILED plus exactly one ops escalation carrying
	// the number of retries consumed.
	Exhaust(ctx context.Context, paymentID uuid.UUID, retries int, reason string) error

	// SweepStalePending re-enqueues reconciliation for pending payments
	// older than the stale age. Returns the number enqueued.
	SweepStalePending(ctx context.Context) (int, error)
}

// =====================================================
// PAYMENT SERVICE
// =====================================================

// PaymentService is the API-facing surface: intent creation, status
// reads, manual corrections, and operator listings.
type PaymentService interface {
	// CreatePaymentIntent opens a payment row for a gateway order and
	// schedules the reconcile safety net.
	CreatePaymentIntent(ctx context.Context, req model.CreatePaymentIntentRequest) (*model.CreatePaymentIntentResponse, error)

	// GetPaymentStatus returns the current state of a payment.
	GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*model.PaymentStatusResponse, error)

	// CorrectPayment annotates a terminal payment with a manual
	// correction. The prior terminal state stays in the audit trail.
	CorrectPayment(ctx context.Context, paymentID uuid.UUID, operator string, req model.CorrectionRequest) error

	// GetAuditTrail returns the full state change history of a payment.
	GetAuditTrail(ctx context.Context, paymentID uuid.UUID) (*model.AuditTrailResponse, error)

	// ListEscalations lists recent ops escalations, newest first.
	ListEscalations(ctx context.Context, limit int) ([]*model.OpsEscalation, error)

	// ListFailedEvents lists webhook ledger entries that failed
	// processing, for operator review.
	ListFailedEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}
