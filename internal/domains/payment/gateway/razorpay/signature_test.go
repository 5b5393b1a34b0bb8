package razorpay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon-backend/internal/domains/payment/model"
)

const testSecret = "whsec_test_1234567890"

func TestVerifyWebhookSignature_ValidSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_abc"}}}}`)
	signature := SignPayload(body, testSecret)

	err := VerifyWebhookSignature(body, signature, testSecret)
	assert.NoError(t, err)
}

func TestVerifyWebhookSignature_TamperedBody(t *testing.T) {
	body := []byte(`{"event":"payment.captured","amount":149900}`)
	signature := SignPayload(body, testSecret)

	tampered := []byte(`{"event":"payment.captured","amount":999900}`)

	err := VerifyWebhookSignature(tampered, signature, testSecret)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidSignature))
}

func TestVerifyWebhookSignature_WrongSecret(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	signature := SignPayload(body, "whsec_other")

	err := VerifyWebhookSignature(body, signature, testSecret)
	assert.Error(t, err)
}

func TestVerifyWebhookSignature_MissingSignature(t *testing.T) {
	err := VerifyWebhookSignature([]byte(`{}`), "", testSecret)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidSignature))
}

func TestVerifyWebhookSignature_MalformedHex(t *testing.T) {
	err := VerifyWebhookSignature([]byte(`{}`), "not-hex-at-all", testSecret)
	assert.Error(t, err)
}

func TestVerifyWebhookSignature_TruncatedSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	signature := SignPayload(body, testSecret)

	err := VerifyWebhookSignature(body, signature[:16], testSecret)
	assert.Error(t, err)
}

// The digest must be computed over the literal wire bytes, so two
// bodies that parse identically but differ in whitespace verify
// independently.
func TestVerifyWebhookSignature_ByteLevelSensitivity(t *testing.T) {
	compact := []byte(`{"event":"payment.captured"}`)
	spaced := []byte(`{"event": "payment.captured"}`)

	signature := SignPayload(compact, testSecret)

	assert.NoError(t, VerifyWebhookSignature(compact, signature, testSecret))
	assert.Error(t, VerifyWebhookSignature(spaced, signature, testSecret))
}
