package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrDuplicateEvent       = errors.New("webhook event already recorded")
	ErrInvalidTransition    = errors.New("invalid payment state transition")
	ErrCorrectionNotAllowed = errors.New("correction requires a terminal payment state")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrGatewayPaymentUnset  = errors.New("gateway payment id not yet assigned")
	ErrEventNotFound        = errors.New("webhook event not found")
	ErrDuplicateJob         = errors.New("reconcile job already enqueued for order")
	ErrStalePaymentState    = errors.New("payment state changed since it was read")
)

// =====================================================
// CUSTOM PAYMENT ERROR
// =====================================================

type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// =====================================================
// ERROR CONSTRUCTORS
// =====================================================

func NewPaymentNotFoundError(ref string) *PaymentError {
	return NewPaymentError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment not found: %s", ref),
		ErrPaymentNotFound,
	)
}

func NewInvalidSignatureError() *PaymentError {
	return NewPaymentError(
		ErrCodeInvalidSignature,
		"Webhook signature verification failed",
		ErrInvalidSignature,
	)
}

func NewInvalidTransitionError(from, to string) *PaymentError {
	return NewPaymentError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot transition payment from %s to %s", from, to),
		ErrInvalidTransition,
	)
}

func NewCorrectionNotAllowedError(status string) *PaymentError {
	return NewPaymentError(
		ErrCodeCorrectionNotAllowed,
		fmt.Sprintf("Payment in state %s cannot be corrected", status),
		ErrCorrectionNotAllowed,
	)
}

func NewGatewayUnavailableError(err error) *PaymentError {
	return NewPaymentError(
		ErrCodeGatewayUnavailable,
		"Gateway status query failed",
		err,
	)
}
