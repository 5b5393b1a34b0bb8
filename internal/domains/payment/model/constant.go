package model

import "time"

// =====================================================
// PAYMENT STATUS
// =====================================================
const (
	PaymentStatusPending    = "pending"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusSuccess    = "success"
	PaymentStatusFailed     = "failed"
	PaymentStatusCorrected  = "corrected"
)

// =====================================================
// WEBHOOK EVENT PROCESSING STATUS
// =====================================================
const (
	EventStatusReceived   = "received"
	EventStatusProcessing = "processing"
	EventStatusProcessed  = "processed"
	EventStatusFailed     = "failed"
)

// =====================================================
// GATEWAY WEBHOOK EVENT TYPES
// =====================================================
// Event names follow the gateway's dotted vocabulary. Unrecognized
// types are acknowledged and skipped for forward compatibility.
const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventPaymentAuthorized = "payment.authorized"
	EventOrderPaid         = "order.paid"
)

// =====================================================
// TRANSITION ACTORS
// =====================================================
// Actor names recorded on state changes driven by system components
// rather than a human operator.
const (
	ActorWebhookDispatcher = "webhook-dispatcher"
	ActorReconcileWorker   = "reconcile-worker"
	ActorStaleSweep        = "stale-payment-sweep"
)

// =====================================================
// OPS ESCALATION TYPES
// =====================================================
const (
	EscalationPaymentFailed      = "payment_failed"
	EscalationReconcileExhausted = "reconcile_exhausted"

	EscalationResourcePayment = "payment"
)

// =====================================================
// INTERNAL ERROR CODES
// =====================================================
const (
	ErrCodePaymentNotFound       = "PAY001"
	ErrCodeInvalidSignature      = "PAY002"
	ErrCodeDuplicateEvent        = "PAY003"
	ErrCodeInvalidTransition     = "PAY004"
	ErrCodeCorrectionNotAllowed  = "PAY005"
	ErrCodeGatewayUnavailable    = "PAY006"
	ErrCodeGatewayPaymentUnknown = "PAY007"
	ErrCodeEventProcessingFailed = "PAY008"
	ErrCodeInvalidRequest        = "PAY009"
	ErrCodeInternalError         = "PAY010"
)

// =====================================================
// RECONCILIATION CONFIGURATION
// =====================================================
const (
	// Retry cap per reconcile task. Exhaustion escalations record the
	// retries consumed, which on the final attempt equals this cap.
	MaxReconcileAttempts = 3

	// Base delay for exponential backoff between attempts (2s, 4s, 8s).
	ReconcileBaseBackoff = 2 * time.Second

	// Per-attempt ceiling for gateway verification calls.
	ReconcileAttemptTimeout = 5 * time.Minute

	// Delay before the first reconcile poll after intent creation,
	// giving the webhook path time to settle the payment first.
	ReconcileInitialDelay = 5 * time.Minute

	// A pending payment older than this is swept back onto the
	// reconcile queue in case both the webhook and the original
	// enqueue were lost.
	StalePaymentAge = 15 * time.Minute

	DefaultCurrency = "INR"
)
