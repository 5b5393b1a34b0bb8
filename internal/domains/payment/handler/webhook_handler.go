package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"payrecon-backend/internal/domains/payment/gateway"
	"payrecon-backend/internal/domains/payment/model"
	"payrecon-backend/internal/domains/payment/service"
	"payrecon-backend/pkg/logger"
)

// Razorpay webhook delivery headers.
const (
	headerEventID   = "X-Razorpay-Event-Id"
	headerSignature = "X-Razorpay-Signature"
)

// =====================================================
// WEBHOOK HANDLER
// =====================================================
type WebhookHandler struct {
	gateway    gateway.Gateway
	dispatcher service.WebhookDispatcher
}

func NewWebhookHandler(gw gateway.Gateway, dispatcher service.WebhookDispatcher) *WebhookHandler {
	return &WebhookHandler{
		gateway:    gw,
		dispatcher: dispatcher,
	}
}

// HandleRazorpayWebhook handles gateway webhook deliveries
// POST /api/v1/webhooks/razorpay
//
// Response contract with the gateway:
// - 401 when signature verification fails (do not leak why)
// - 200 with {processed, message} for everything else, including
//   internal failures, so the gateway never retry-storms us; lost
//   settlements are covered by the reconcile worker
//
// The signature check runs on the literal request bytes BEFORE any
// JSON parsing. Nothing in the body is trusted until then.
func (h *WebhookHandler) HandleRazorpayWebhook(c *gin.Context) {
	// Step 1: Read raw body bytes.
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, model.WebhookAckResponse{
			Processed: false,
			Message:   "failed to read request body",
		})
		return
	}

	// Step 2: Authenticate the delivery.
	if err := h.gateway.VerifyWebhookSignature(body, c.GetHeader(headerSignature)); err != nil {
		logger.Warn("Rejected webhook with invalid signature", map[string]interface{}{
			"remote_addr": c.ClientIP(),
		})
		c.JSON(http.StatusUnauthorized, model.WebhookAckResponse{
			Processed: false,
			Message:   "signature verification failed",
		})
		return
	}

	// Step 3: Extract the dedup key.
	eventID := c.GetHeader(headerEventID)
	if eventID == "" {
		c.JSON(http.StatusOK, model.WebhookAckResponse{
			Processed: false,
			Message:   "missing event id header",
		})
		return
	}

	// Step 4: Parse the (now authenticated) payload.
	var payload model.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusOK, model.WebhookAckResponse{
			Processed: false,
			Message:   "malformed payload",
		})
		return
	}

	var rawPayload map[string]interface{}
	json.Unmarshal(body, &rawPayload)

	// Step 5: Dispatch.
	ack, err := h.dispatcher.Handle(c.Request.Context(), eventID, &payload, rawPayload)
	if err != nil {
		logger.Error("Webhook dispatch failed", err)
		c.JSON(http.StatusOK, model.WebhookAckResponse{
			Processed: false,
			Message:   "internal error, safe to redeliver",
		})
		return
	}

	c.JSON(http.StatusOK, ack)
}
