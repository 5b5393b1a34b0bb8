package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payrecon-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT REPOSITORY IMPLEMENTATION
// =====================================================
type paymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepoInterface {
	return &paymentRepository{pool: pool}
}

const paymentColumns = `
	id, gateway_order_id, gateway_payment_id, amount, currency,
	status, paid_at, customer_id, service_request_id,
	created_at, updated_at
`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	payment := &model.Payment{}
	err := row.Scan(
		&payment.ID,
		&payment.GatewayOrderID,
		&payment.GatewayPaymentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.PaidAt,
		&payment.CustomerID,
		&payment.ServiceRequestID,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// =====================================================
// CREATE
// =====================================================

// Create creates a payment row
// Called when a payment intent is opened, before any gateway event
func (r *paymentRepository) Create(
	ctx context.Context,
	payment *model.Payment,
) error {
	query := `
		INSERT INTO payments (
			id, gateway_order_id, gateway_payment_id, amount, currency,
			status, customer_id, service_request_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.pool.Exec(ctx, query,
		payment.ID,
		payment.GatewayOrderID,
		payment.GatewayPaymentID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.CustomerID,
		payment.ServiceRequestID,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// =====================================================
// LOOKUP METHODS
// =====================================================

// GetByID gets payment by internal id
func (r *paymentRepository) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE id = $1
	`

	payment, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// GetByGatewayPaymentID gets payment by the gateway's payment id
// Primary lookup path for webhook events
func (r *paymentRepository) GetByGatewayPaymentID(
	ctx context.Context,
	gatewayPaymentID string,
) (*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE gateway_payment_id = $1
	`

	payment, err := scanPayment(r.pool.QueryRow(ctx, query, gatewayPaymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by gateway payment id: %w", err)
	}

	return payment, nil
}

// GetByGatewayOrderID gets payment by the gateway's order id
//
// Fallback for events that arrive before the payment id is known on
// our side. The gateway assigns the payment id at authorization time,
// so an early event can reference a payment we only know by order id.
func (r *paymentRepository) GetByGatewayOrderID(
	ctx context.Context,
	gatewayOrderID string,
) (*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE gateway_order_id = $1
	`

	payment, err := scanPayment(r.pool.QueryRow(ctx, query, gatewayOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by gateway order id: %w", err)
	}

	return payment, nil
}

// =====================================================
// STATUS UPDATE (TRANSACTIONAL)
// =====================================================

// UpdateStatusWithTx updates payment status inside the caller's
// transaction so the status change commits together with its audit
// record.
//
// The update is a compare-and-set on fromStatus. Writers race on the
// same row (webhook dispatcher vs reconcile worker), and each one
// evaluated its guards against a snapshot read before this
// transaction; zero rows affected means another writer committed in
// between and the snapshot is stale. ErrStalePaymentState tells the
// caller to re-read, never to blindly overwrite.
//
// COALESCE keeps an already stamped gateway_payment_id: the value is
// written once when the first payment-id-bearing event resolves the
// row, and never overwritten afterwards. paid_at follows the same
// rule so a late duplicate cannot shift the recorded capture time.
func (r *paymentRepository) UpdateStatusWithTx(
	ctx context.Context,
	tx pgx.Tx,
	paymentID uuid.UUID,
	fromStatus string,
	toStatus string,
	paidAt *time.Time,
	gatewayPaymentID *string,
) error {
	query := `
		UPDATE payments
		SET status = $3,
			paid_at = COALESCE(paid_at, $4),
			gateway_payment_id = COALESCE(gateway_payment_id, $5),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := tx.Exec(ctx, query, paymentID, fromStatus, toStatus, paidAt, gatewayPaymentID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1`, paymentID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check payment status: %w", err)
		}
		return model.ErrStalePaymentState
	}

	return nil
}

// =====================================================
// RECONCILIATION SWEEP
// =====================================================

// ListStalePending lists pending payments older than olderThan
//
// Feeds the sweep job that re-enqueues reconciliation for payments
// whose webhook never arrived. Only rows with a gateway payment id
// are eligible; without one there is nothing to query the gateway
// about yet.
func (r *paymentRepository) ListStalePending(
	ctx context.Context,
	olderThan time.Duration,
	limit int,
) ([]*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1
		AND gateway_payment_id IS NOT NULL
		AND created_at < NOW() - $2::interval
		ORDER BY created_at ASC
		LIMIT $3
	`

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))

	rows, err := r.pool.Query(ctx, query, model.PaymentStatusPending, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending payments: %w", err)
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, nil
}
