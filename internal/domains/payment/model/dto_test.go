package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPayload_PaymentEventReferences(t *testing.T) {
	raw := `{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_abc",
					"order_id": "order_abc",
					"amount": 149900,
					"currency": "INR",
					"status": "captured"
				}
			}
		}
	}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	require.NotNil(t, payload.GatewayPaymentID())
	assert.Equal(t, "pay_abc", *payload.GatewayPaymentID())
	require.NotNil(t, payload.GatewayOrderID())
	assert.Equal(t, "order_abc", *payload.GatewayOrderID())
}

func TestWebhookPayload_OrderEventFallsBackToOrderEntity(t *testing.T) {
	raw := `{
		"event": "order.paid",
		"payload": {
			"order": {
				"entity": {
					"id": "order_xyz",
					"amount_paid": 149900,
					"status": "paid"
				}
			}
		}
	}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Nil(t, payload.GatewayPaymentID())
	require.NotNil(t, payload.GatewayOrderID())
	assert.Equal(t, "order_xyz", *payload.GatewayOrderID())
}

func TestWebhookPayload_EmptyReferences(t *testing.T) {
	var payload WebhookPayload
	assert.Nil(t, payload.GatewayPaymentID())
	assert.Nil(t, payload.GatewayOrderID())
}

func TestCreatePaymentIntentRequest_Validate(t *testing.T) {
	valid := CreatePaymentIntentRequest{
		GatewayOrderID:   "order_abc",
		Amount:           decimal.New(149900, -2),
		Currency:         "INR",
		CustomerID:       uuid.New(),
		ServiceRequestID: uuid.New(),
	}
	assert.NoError(t, valid.Validate())

	missingOrder := valid
	missingOrder.GatewayOrderID = ""
	assert.Error(t, missingOrder.Validate())

	badCurrency := valid
	badCurrency.Currency = "RUPEES"
	assert.Error(t, badCurrency.Validate())

	nilCustomer := valid
	nilCustomer.CustomerID = uuid.Nil
	assert.Error(t, nilCustomer.Validate())
}

func TestCorrectionRequest_Validate(t *testing.T) {
	assert.NoError(t, CorrectionRequest{Reason: "gateway settled out of band"}.Validate())
	assert.Error(t, CorrectionRequest{}.Validate())
	assert.Error(t, CorrectionRequest{Reason: "ok"}.Validate()) // below minimum length
}

func TestPayment_IsTerminal(t *testing.T) {
	cases := map[string]bool{
		PaymentStatusPending:    false,
		PaymentStatusAuthorized: false,
		PaymentStatusSuccess:    true,
		PaymentStatusFailed:     true,
		PaymentStatusCorrected:  true,
	}
	for status, want := range cases {
		p := &Payment{Status: status}
		assert.Equal(t, want, p.IsTerminal(), "status %s", status)
	}
}
