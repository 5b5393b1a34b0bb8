package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// PAYMENT ENTITY
// =====================================================
// Payment is owned by the reconciliation core. Rows are created by the
// order-creation flow and mutated only through the state machine.
type Payment struct {
	ID uuid.UUID `json:"id" db:"id"`

	// Gateway references. GatewayPaymentID stays nil until the gateway
	// assigns a payment to the order; early webhooks may arrive first.
	GatewayOrderID   string  `json:"gateway_order_id" db:"gateway_order_id"`
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`

	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	Status string     `json:"status" db:"status"`
	PaidAt *time.Time `json:"paid_at,omitempty" db:"paid_at"`

	CustomerID       uuid.UUID `json:"customer_id" db:"customer_id"`
	ServiceRequestID uuid.UUID `json:"service_request_id" db:"service_request_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the payment is in a terminal state.
// Only CORRECTED may follow a terminal state.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess ||
		p.Status == PaymentStatusFailed ||
		p.Status == PaymentStatusCorrected
}

// =====================================================
// WEBHOOK EVENT (IDEMPOTENCY LEDGER ENTRY)
// =====================================================
// One row per inbound delivery that passes dedup; never deleted.
type WebhookEvent struct {
	ID uuid.UUID `json:"id" db:"id"`

	// Unique gateway event id carried in the delivery headers.
	EventID string `json:"event_id" db:"event_id"`

	PaymentID        *uuid.UUID `json:"payment_id,omitempty" db:"payment_id"`
	GatewayOrderID   *string    `json:"gateway_order_id,omitempty" db:"gateway_order_id"`
	GatewayPaymentID *string    `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`

	EventType string `json:"event_type" db:"event_type"`

	// Raw delivery payload retained for operator review.
	Payload map[string]interface{} `json:"payload,omitempty" db:"payload"`

	Status          string  `json:"status" db:"status"`
	ProcessingError *string `json:"processing_error,omitempty" db:"processing_error"`

	ReceivedAt  time.Time  `json:"received_at" db:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// =====================================================
// STATE CHANGE RECORD (AUDIT TRAIL)
// =====================================================
// Append-only; the sole history of a Payment's lifecycle. Exactly one
// record per accepted transition, none for idempotent replays.
type StateChangeRecord struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	PaymentID uuid.UUID              `json:"payment_id" db:"payment_id"`
	OldState  string                 `json:"old_state" db:"old_state"`
	NewState  string                 `json:"new_state" db:"new_state"`
	Actor     string                 `json:"actor" db:"actor"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// =====================================================
// OPS ESCALATION WORK ITEM
// =====================================================
// Created when automated reconciliation cannot resolve payment state.
type OpsEscalation struct {
	ID           uuid.UUID              `json:"id" db:"id"`
	Type         string                 `json:"type" db:"type"`
	ResourceID   string                 `json:"resource_id" db:"resource_id"`
	ResourceType string                 `json:"resource_type" db:"resource_type"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}
