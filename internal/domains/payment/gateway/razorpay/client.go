package razorpay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"payrecon-backend/internal/domains/payment/gateway"
)

// =====================================================
// RAZORPAY CLIENT IMPLEMENTATION
// =====================================================

type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates new Razorpay client
func NewClient(config *Config) (gateway.Gateway, error) {
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("razorpay webhook secret is required")
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// VerifyWebhookSignature verifies a webhook delivery against the
// configured shared secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	return VerifyWebhookSignature(body, signature, c.config.WebhookSecret)
}

// =====================================================
// FETCH PAYMENT STATUS
// =====================================================

// paymentResponse is the subset of the gateway payment object we need.
// Amount is in the currency's minor unit.
type paymentResponse struct {
	ID               string  `json:"id"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	ErrorCode        *string `json:"error_code"`
	ErrorDescription *string `json:"error_description"`
}

// FetchPaymentStatus queries the gateway for the authoritative status
// of a payment. Read-only and idempotent; callers bound the call with a
// context deadline.
func (c *Client) FetchPaymentStatus(
	ctx context.Context,
	gatewayPaymentID string,
) (*gateway.PaymentStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.GetPaymentURL(gatewayPaymentID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.SetBasicAuth(c.config.KeyID, c.config.KeySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call gateway API: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, gateway.ErrPaymentUnknown
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("gateway rejected credentials: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway API error: %s", resp.Status)
	}

	var payment paymentResponse
	if err := json.Unmarshal(bodyBytes, &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &gateway.PaymentStatus{
		Status:           payment.Status,
		Amount:           decimal.New(payment.Amount, -2),
		ErrorCode:        payment.ErrorCode,
		ErrorDescription: payment.ErrorDescription,
	}, nil
}
