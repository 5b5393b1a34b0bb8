package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payrecon-backend/internal/domains/payment/model"
)

// =====================================================
// WEBHOOK EVENT LEDGER IMPLEMENTATION
// =====================================================
type eventLedgerRepository struct {
	pool *pgxpool.Pool
}

func NewEventLedgerRepository(pool *pgxpool.Pool) EventLedgerInterface {
	return &eventLedgerRepository{pool: pool}
}

const eventColumns = `
	id, event_id, payment_id, gateway_order_id, gateway_payment_id,
	event_type, payload, status, processing_error,
	received_at, processed_at
`

func scanEvent(row pgx.Row) (*model.WebhookEvent, error) {
	event := &model.WebhookEvent{}
	var payloadJSON []byte

	err := row.Scan(
		&event.ID,
		&event.EventID,
		&event.PaymentID,
		&event.GatewayOrderID,
		&event.GatewayPaymentID,
		&event.EventType,
		&payloadJSON,
		&event.Status,
		&event.ProcessingError,
		&event.ReceivedAt,
		&event.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	if payloadJSON != nil {
		json.Unmarshal(payloadJSON, &event.Payload)
	}

	return event, nil
}

// =====================================================
// IDEMPOTENT RECORDING
// =====================================================

// RecordIfNew inserts the event if it has not been seen before.
//
// Two unique constraints back this:
// - uq_webhook_events_event_id on the gateway event id
// - uq_webhook_events_payment_event on (gateway_payment_id, event_type),
//   catching redeliveries where the gateway minted a fresh event id
//   for the same underlying fact
//
// ON CONFLICT DO NOTHING makes the insert race-safe: when the same
// event arrives on two connections at once, exactly one insert wins
// and the other observes isNew=false. No read-then-write window.
func (r *eventLedgerRepository) RecordIfNew(
	ctx context.Context,
	event *model.WebhookEvent,
) (bool, error) {
	query := `
		INSERT INTO webhook_events (
			id, event_id, payment_id, gateway_order_id, gateway_payment_id,
			event_type, payload, status, received_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT DO NOTHING
	`

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payload: %w", err)
	}

	result, err := r.pool.Exec(ctx, query,
		event.ID,
		event.EventID,
		event.PaymentID,
		event.GatewayOrderID,
		event.GatewayPaymentID,
		event.EventType,
		payloadJSON,
		event.Status,
		event.ReceivedAt,
	)

	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// AttachPayment links the ledger entry to the payment it resolved to
// Set once the dispatcher has located the payment row
func (r *eventLedgerRepository) AttachPayment(
	ctx context.Context,
	id uuid.UUID,
	paymentID uuid.UUID,
) error {
	query := `
		UPDATE webhook_events
		SET payment_id = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, paymentID)
	if err != nil {
		return fmt.Errorf("failed to attach payment to event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}

	return nil
}

// =====================================================
// STATUS TRANSITIONS
// =====================================================

// MarkProcessing moves the entry RECEIVED -> PROCESSING
func (r *eventLedgerRepository) MarkProcessing(
	ctx context.Context,
	id uuid.UUID,
) error {
	query := `
		UPDATE webhook_events
		SET status = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, model.EventStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark event processing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}

	return nil
}

// MarkProcessed marks the entry fully processed
func (r *eventLedgerRepository) MarkProcessed(
	ctx context.Context,
	id uuid.UUID,
) error {
	query := `
		UPDATE webhook_events
		SET status = $2,
			processed_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, model.EventStatusProcessed)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}

	return nil
}

// MarkFailed marks the entry failed with the processing error
// The entry stays in the ledger for manual inspection
func (r *eventLedgerRepository) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	errorMsg string,
) error {
	query := `
		UPDATE webhook_events
		SET status = $2,
			processing_error = $3
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, model.EventStatusFailed, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}

	return nil
}

// =====================================================
// OPERATOR QUERIES
// =====================================================

// ListFailed lists failed entries, oldest first
func (r *eventLedgerRepository) ListFailed(
	ctx context.Context,
	limit int,
) ([]*model.WebhookEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM webhook_events
		WHERE status = $1
		ORDER BY received_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, model.EventStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed events: %w", err)
	}
	defer rows.Close()

	var events []*model.WebhookEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, nil
}

// ListByPaymentID lists ledger entries for a payment
// Backs the events section of the audit trail view
func (r *eventLedgerRepository) ListByPaymentID(
	ctx context.Context,
	paymentID uuid.UUID,
) ([]*model.WebhookEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM webhook_events
		WHERE payment_id = $1
		ORDER BY received_at ASC
	`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by payment: %w", err)
	}
	defer rows.Close()

	var events []*model.WebhookEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, nil
}
