package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// WEBHOOK PAYLOAD (GATEWAY WIRE FORMAT)
// =====================================================
// Parsed AFTER signature verification; the verifier only ever sees the
// raw request bytes.
type WebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity OrderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// PaymentEntity is the gateway's payment object embedded in a webhook.
// Amount is in the currency's minor unit.
type PaymentEntity struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"order_id"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	ErrorCode        *string `json:"error_code,omitempty"`
	ErrorDescription *string `json:"error_description,omitempty"`
}

// OrderEntity is the gateway's order object embedded in order.* webhooks.
type OrderEntity struct {
	ID         string `json:"id"`
	AmountPaid int64  `json:"amount_paid"`
	Status     string `json:"status"`
}

// GatewayPaymentID returns the payment id carried by the event, or nil
// when the event only references an order.
func (w *WebhookPayload) GatewayPaymentID() *string {
	if w.Payload.Payment.Entity.ID == "" {
		return nil
	}
	id := w.Payload.Payment.Entity.ID
	return &id
}

// GatewayOrderID returns the order id carried by the event, from either
// the payment entity or the order entity.
func (w *WebhookPayload) GatewayOrderID() *string {
	if w.Payload.Payment.Entity.OrderID != "" {
		id := w.Payload.Payment.Entity.OrderID
		return &id
	}
	if w.Payload.Order.Entity.ID != "" {
		id := w.Payload.Order.Entity.ID
		return &id
	}
	return nil
}

// =====================================================
// WEBHOOK ACKNOWLEDGMENT
// =====================================================
// Body returned to the gateway. Always paired with a 200-class status
// so the gateway does not retry-storm on internal failures.
type WebhookAckResponse struct {
	Processed bool   `json:"processed"`
	Message   string `json:"message"`
}

// =====================================================
// CREATE PAYMENT INTENT REQUEST/RESPONSE
// =====================================================
type CreatePaymentIntentRequest struct {
	GatewayOrderID   string          `json:"gateway_order_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	ServiceRequestID uuid.UUID       `json:"service_request_id"`
}

// Validate validates CreatePaymentIntentRequest
func (req CreatePaymentIntentRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.GatewayOrderID, validation.Required, validation.Length(1, 64)),
		validation.Field(&req.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&req.CustomerID, validation.By(requireUUID)),
		validation.Field(&req.ServiceRequestID, validation.By(requireUUID)),
	)
}

func requireUUID(value interface{}) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return validation.NewError("validation_required", "must be a non-nil UUID")
	}
	return nil
}

type CreatePaymentIntentResponse struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
}

// =====================================================
// PAYMENT STATUS RESPONSE
// =====================================================
type PaymentStatusResponse struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// =====================================================
// CORRECTION REQUEST
// =====================================================
type CorrectionRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note,omitempty"`
}

// Validate validates CorrectionRequest
func (req CorrectionRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Reason, validation.Required, validation.Length(3, 500)),
		validation.Field(&req.Note, validation.Length(0, 2000)),
	)
}

// =====================================================
// AUDIT TRAIL RESPONSE
// =====================================================
// AuditTrailResponse pairs the state change history with the webhook
// deliveries that drove it, so an operator reviews both in one call.
type AuditTrailResponse struct {
	PaymentID uuid.UUID            `json:"payment_id"`
	Records   []*StateChangeRecord `json:"records"`
	Events    []*WebhookEvent      `json:"events"`
}
