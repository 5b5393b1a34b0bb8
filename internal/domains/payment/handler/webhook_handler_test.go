package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon-backend/internal/domains/payment/gateway/mock"
	"payrecon-backend/internal/domains/payment/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeDispatcher records the delivery it was handed and returns a
// scripted ack.
type fakeDispatcher struct {
	ack *model.WebhookAckResponse
	err error

	gotEventID string
	gotPayload *model.WebhookPayload
	calls      int
}

func (f *fakeDispatcher) Handle(
	ctx context.Context,
	eventID string,
	payload *model.WebhookPayload,
	rawPayload map[string]interface{},
) (*model.WebhookAckResponse, error) {
	f.calls++
	f.gotEventID = eventID
	f.gotPayload = payload
	return f.ack, f.err
}

func webhookRouter(gw *mock.MockGateway, dispatcher *fakeDispatcher) *gin.Engine {
	router := gin.New()
	h := NewWebhookHandler(gw, dispatcher)
	router.POST("/api/v1/webhooks/razorpay", h.HandleRazorpayWebhook)
	return router
}

func postWebhook(router *gin.Engine, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeAck(t *testing.T, w *httptest.ResponseRecorder) model.WebhookAckResponse {
	t.Helper()
	var ack model.WebhookAckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	return ack
}

func validBody(t *testing.T) []byte {
	t.Helper()
	payload := model.WebhookPayload{Event: model.EventPaymentCaptured}
	payload.Payload.Payment.Entity = model.PaymentEntity{
		ID:      "pay_web_1",
		OrderID: "order_web_1",
		Amount:  149900,
		Status:  "captured",
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestWebhook_InvalidSignatureRejectedWith401(t *testing.T) {
	gw := mock.NewMockGateway()
	gw.SetVerifyError(model.NewInvalidSignatureError())
	dispatcher := &fakeDispatcher{}
	router := webhookRouter(gw, dispatcher)

	w := postWebhook(router, validBody(t), map[string]string{
		headerSignature: "deadbeef",
		headerEventID:   "evt_web_1",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, dispatcher.calls)
}

func TestWebhook_MissingEventIDAcknowledged(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	router := webhookRouter(mock.NewMockGateway(), dispatcher)

	w := postWebhook(router, validBody(t), map[string]string{
		headerSignature: "deadbeef",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	ack := decodeAck(t, w)
	assert.False(t, ack.Processed)
	assert.Equal(t, "missing event id header", ack.Message)
	assert.Zero(t, dispatcher.calls)
}

func TestWebhook_MalformedPayloadAcknowledged(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	router := webhookRouter(mock.NewMockGateway(), dispatcher)

	w := postWebhook(router, []byte("{not json"), map[string]string{
		headerSignature: "deadbeef",
		headerEventID:   "evt_web_2",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	ack := decodeAck(t, w)
	assert.False(t, ack.Processed)
	assert.Equal(t, "malformed payload", ack.Message)
	assert.Zero(t, dispatcher.calls)
}

func TestWebhook_DispatcherErrorStaysHTTP200(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("ledger write failed")}
	router := webhookRouter(mock.NewMockGateway(), dispatcher)

	w := postWebhook(router, validBody(t), map[string]string{
		headerSignature: "deadbeef",
		headerEventID:   "evt_web_3",
	})

	// 200 so the gateway redelivers per its own schedule instead of
	// retry-storming a 5xx.
	assert.Equal(t, http.StatusOK, w.Code)
	ack := decodeAck(t, w)
	assert.False(t, ack.Processed)
	assert.Equal(t, "internal error, safe to redeliver", ack.Message)
}

func TestWebhook_ValidDeliveryDispatched(t *testing.T) {
	dispatcher := &fakeDispatcher{
		ack: &model.WebhookAckResponse{Processed: true, Message: "event processed"},
	}
	router := webhookRouter(mock.NewMockGateway(), dispatcher)

	w := postWebhook(router, validBody(t), map[string]string{
		headerSignature: "deadbeef",
		headerEventID:   "evt_web_4",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	ack := decodeAck(t, w)
	assert.True(t, ack.Processed)

	assert.Equal(t, "evt_web_4", dispatcher.gotEventID)
	require.NotNil(t, dispatcher.gotPayload)
	assert.Equal(t, model.EventPaymentCaptured, dispatcher.gotPayload.Event)
	assert.Equal(t, "pay_web_1", dispatcher.gotPayload.Payload.Payment.Entity.ID)
}
