package mock

import (
	"context"
	"sync"

	"payrecon-backend/internal/domains/payment/gateway"
)

// =====================================================
// MOCK GATEWAY FOR TESTING
// =====================================================

type MockGateway struct {
	mu sync.Mutex

	// Scripted responses keyed by gateway payment id.
	statuses map[string]*gateway.PaymentStatus
	errs     map[string]error

	// Verification behavior.
	verifyErr error

	FetchCalls []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		statuses: make(map[string]*gateway.PaymentStatus),
		errs:     make(map[string]error),
	}
}

func (m *MockGateway) VerifyWebhookSignature(body []byte, signature string) error {
	return m.verifyErr
}

func (m *MockGateway) FetchPaymentStatus(
	ctx context.Context,
	gatewayPaymentID string,
) (*gateway.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCalls = append(m.FetchCalls, gatewayPaymentID)

	if err, ok := m.errs[gatewayPaymentID]; ok {
		return nil, err
	}
	if status, ok := m.statuses[gatewayPaymentID]; ok {
		return status, nil
	}
	return nil, gateway.ErrPaymentUnknown
}

// SetStatus scripts the status returned for a payment id
func (m *MockGateway) SetStatus(gatewayPaymentID string, status *gateway.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[gatewayPaymentID] = status
}

// SetError scripts an error returned for a payment id
func (m *MockGateway) SetError(gatewayPaymentID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[gatewayPaymentID] = err
}

// SetVerifyError makes signature verification fail with err
func (m *MockGateway) SetVerifyError(err error) {
	m.verifyErr = err
}
