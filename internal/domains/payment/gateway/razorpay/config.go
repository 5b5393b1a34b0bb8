package razorpay

import "time"

// =====================================================
// RAZORPAY CONFIGURATION
// =====================================================

type Config struct {
	KeyID         string        // API key id (basic auth user)
	KeySecret     string        // API key secret (basic auth password)
	WebhookSecret string        // Shared secret for webhook HMAC-SHA256
	APIUrl        string        // API base URL
	Timeout       time.Duration // Per-request HTTP timeout
}

// NewConfig creates Razorpay configuration
func NewConfig(keyID, keySecret, webhookSecret, apiURL string, timeout time.Duration) *Config {
	if apiURL == "" {
		apiURL = "https://api.razorpay.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{
		KeyID:         keyID,
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		APIUrl:        apiURL,
		Timeout:       timeout,
	}
}

// GetPaymentURL returns the payment fetch endpoint for a payment id
func (c *Config) GetPaymentURL(paymentID string) string {
	return c.APIUrl + "/v1/payments/" + paymentID
}
