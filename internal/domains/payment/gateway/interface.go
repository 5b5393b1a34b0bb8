package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// =====================================================
// GATEWAY INTERFACE
// =====================================================

// Gateway abstracts the external payment processor: webhook signature
// verification on one side, authoritative status polling on the other.
// The query side is read-only and side-effect-free on the gateway.
type Gateway interface {
	// VerifyWebhookSignature authenticates the literal raw request
	// bytes against the signature header value. Fails closed: any
	// missing, malformed, or mismatched signature is an error, and no
	// parsing of body happens before this check passes.
	VerifyWebhookSignature(body []byte, signature string) error

	// FetchPaymentStatus queries the gateway for the authoritative
	// status of a payment.
	FetchPaymentStatus(ctx context.Context, gatewayPaymentID string) (*PaymentStatus, error)
}

// =====================================================
// COMMON TYPES
// =====================================================

// Gateway-side payment states as reported by the status query.
const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusFailed     = "failed"
)

// PaymentStatus is the gateway's answer to a status query.
type PaymentStatus struct {
	Status           string
	Amount           decimal.Decimal
	ErrorCode        *string
	ErrorDescription *string
}

// ErrPaymentUnknown means the gateway does not know the payment id at
// all. Unrecoverable: retrying the same query cannot succeed.
var ErrPaymentUnknown = errors.New("gateway does not recognize payment id")
