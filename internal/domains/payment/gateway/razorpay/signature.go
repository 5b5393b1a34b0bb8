package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"payrecon-backend/internal/domains/payment/model"
)

// =====================================================
// RAZORPAY WEBHOOK SIGNATURE VERIFICATION
// =====================================================

// VerifyWebhookSignature verifies the HMAC-SHA256 signature the gateway
// computes over the webhook body.
//
// Algorithm:
// 1. HMAC-SHA256(rawBody, webhookSecret)
// 2. Hex-decode the received signature header
// 3. Constant-time compare of the two digests
//
// The digest MUST be computed over the literal wire bytes. Parsing and
// re-serializing the payload first changes the byte sequence the
// gateway signed and breaks verification.
//
// Fails closed: missing header, malformed hex, length mismatch, and
// digest mismatch all reject.
func VerifyWebhookSignature(rawBody []byte, receivedSignature, secret string) error {
	if receivedSignature == "" {
		return model.NewInvalidSignatureError()
	}

	received, err := hex.DecodeString(receivedSignature)
	if err != nil {
		return model.NewInvalidSignatureError()
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	// hmac.Equal is constant-time and rejects length mismatches.
	if !hmac.Equal(received, expected) {
		return model.NewInvalidSignatureError()
	}

	return nil
}

// SignPayload computes the hex-encoded HMAC-SHA256 digest of a payload.
// Used by tests and by tooling that replays recorded webhooks.
func SignPayload(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
