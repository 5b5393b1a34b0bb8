package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"payrecon-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT REPOSITORY INTERFACE
// =====================================================
type PaymentRepoInterface interface {
	// ============================================
	// TRANSACTION-AWARE METHODS
	// ============================================

	// UpdateStatusWithTx updates payment status within the provided
	// transaction, conditional on the row still holding fromStatus.
	// Returns ErrStalePaymentState when another writer moved the row
	// since it was read; callers re-read and re-run their guards.
	// paidAt is set only when transitioning into SUCCESS;
	// gatewayPaymentID is stamped when non-nil and the row has none yet.
	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, fromStatus, toStatus string, paidAt *time.Time, gatewayPaymentID *string) error

	// ============================================
	// STANDALONE METHODS
	// ============================================

	// Create creates a payment row (status pending)
	Create(ctx context.Context, payment *model.Payment) error

	// GetByID gets payment by internal id
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)

	// GetByGatewayPaymentID gets payment by gateway payment id
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*model.Payment, error)

	// GetByGatewayOrderID gets payment by gateway order id. Fallback
	// lookup for early events that precede payment id assignment.
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error)

	// ListStalePending lists pending payments older than the given age
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Payment, error)
}

// =====================================================
// WEBHOOK EVENT LEDGER INTERFACE
// =====================================================
type EventLedgerInterface interface {
	// RecordIfNew inserts the ledger entry if neither its event id nor
	// its (gateway_payment_id, event_type) pair has been seen before.
	// Atomic under concurrent duplicate delivery: exactly one caller
	// observes isNew=true for a given event.
	RecordIfNew(ctx context.Context, event *model.WebhookEvent) (bool, error)

	// AttachPayment links a ledger entry to the payment it resolved to
	AttachPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error

	// MarkProcessing moves the entry RECEIVED -> PROCESSING
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkProcessed moves the entry to PROCESSED
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed moves the entry to FAILED with the error message.
	// Failed entries are surfaced for manual inspection; the ledger
	// itself never retries them.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error

	// ListFailed lists failed entries for operator review
	ListFailed(ctx context.Context, limit int) ([]*model.WebhookEvent, error)

	// ListByPaymentID lists ledger entries for a payment
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*model.WebhookEvent, error)
}

// =====================================================
// AUDIT TRAIL INTERFACE
// =====================================================
// Append and read only. No update or delete exists for state change
// records by design.
type AuditRepoInterface interface {
	// AppendWithTx appends one state change record within the provided
	// transaction, so the record commits or rolls back together with
	// the payment row update.
	AppendWithTx(ctx context.Context, tx pgx.Tx, record *model.StateChangeRecord) error

	// ListByPaymentID lists records for a payment in chronological order
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*model.StateChangeRecord, error)
}

// =====================================================
// OPS ESCALATION SINK
// =====================================================
type EscalationSinkInterface interface {
	// Create emits one escalation work item for human review
	Create(ctx context.Context, escalation *model.OpsEscalation) error

	// List lists recent escalations, newest first
	List(ctx context.Context, limit int) ([]*model.OpsEscalation, error)
}

// =====================================================
// TRANSACTION MANAGER
// =====================================================
type TransactionManager interface {
	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CommitTx commits transaction
	CommitTx(ctx context.Context, tx pgx.Tx) error

	// RollbackTx rolls back transaction
	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
