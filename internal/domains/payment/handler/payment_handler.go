package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payrecon-backend/internal/domains/payment/model"
	"payrecon-backend/internal/domains/payment/service"
	res "payrecon-backend/internal/shared/response"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates new payment handler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// =====================================================
// PAYMENT ENDPOINTS
// =====================================================

// CreatePaymentIntent opens a payment for a gateway order
// POST /api/v1/payments
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	// Step 1: Bind request body
	var req model.CreatePaymentIntentRequest
	if err := bindJSON(c, &req); err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Step 2: Validate request
	if err := req.Validate(); err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	// Step 3: Call service
	response, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), req)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	// Step 4: Return response
	res.Success(c, http.StatusCreated, response)
}

// GetPaymentStatus gets payment status
// GET /api/v1/payments/:payment_id
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	paymentID, err := paymentIDParam(c)
	if err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_PAYMENT_ID", "Invalid payment ID")
		return
	}

	response, err := h.paymentService.GetPaymentStatus(c.Request.Context(), paymentID)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, response)
}

// GetAuditTrail gets the state change history of a payment
// GET /api/v1/payments/:payment_id/audit
func (h *PaymentHandler) GetAuditTrail(c *gin.Context) {
	paymentID, err := paymentIDParam(c)
	if err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_PAYMENT_ID", "Invalid payment ID")
		return
	}

	response, err := h.paymentService.GetAuditTrail(c.Request.Context(), paymentID)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, response)
}

// CorrectPayment records a manual correction on a terminal payment
// POST /api/v1/payments/:payment_id/corrections
func (h *PaymentHandler) CorrectPayment(c *gin.Context) {
	// Step 1: Identify the operator
	operator, err := getOperatorID(c)
	if err != nil {
		res.ErrorResponse(c, http.StatusUnauthorized, "AUTH_ERROR", "Unauthorized")
		return
	}

	// Step 2: Get payment ID from URL
	paymentID, err := paymentIDParam(c)
	if err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_PAYMENT_ID", "Invalid payment ID")
		return
	}

	// Step 3: Bind request body
	var req model.CorrectionRequest
	if err := bindJSON(c, &req); err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Step 4: Validate request
	if err := req.Validate(); err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	// Step 5: Call service
	if err := h.paymentService.CorrectPayment(c.Request.Context(), paymentID, operator, req); err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, gin.H{"corrected": true})
}

// =====================================================
// OPS ENDPOINTS
// =====================================================

// ListEscalations lists recent ops escalations
// GET /api/v1/ops/escalations
func (h *PaymentHandler) ListEscalations(c *gin.Context) {
	escalations, err := h.paymentService.ListEscalations(c.Request.Context(), limitQuery(c))
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, escalations)
}

// ListFailedEvents lists webhook ledger entries that failed processing
// GET /api/v1/ops/failed-events
func (h *PaymentHandler) ListFailedEvents(c *gin.Context) {
	events, err := h.paymentService.ListFailedEvents(c.Request.Context(), limitQuery(c))
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	res.Success(c, http.StatusOK, events)
}

// =====================================================
// ERROR MAPPING
// =====================================================

func mapPaymentError(err error) (statusCode int, errorCode string) {
	// Default
	statusCode = http.StatusInternalServerError
	errorCode = "INTERNAL_ERROR"

	if paymentErr, ok := err.(*model.PaymentError); ok {
		errorCode = paymentErr.Code

		switch paymentErr.Code {
		case model.ErrCodePaymentNotFound:
			statusCode = http.StatusNotFound
		case model.ErrCodeInvalidRequest:
			statusCode = http.StatusBadRequest
		case model.ErrCodeInvalidTransition, model.ErrCodeCorrectionNotAllowed:
			statusCode = http.StatusConflict
		case model.ErrCodeGatewayUnavailable:
			statusCode = http.StatusServiceUnavailable
		default:
			statusCode = http.StatusInternalServerError
		}
	}

	return statusCode, errorCode
}

// =====================================================
// HELPER FUNCTIONS
// =====================================================

func paymentIDParam(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("payment_id"))
}

// getOperatorID extracts the authenticated operator from JWT claims
func getOperatorID(c *gin.Context) (string, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("user_id not found in context")
	}

	userIDStr, ok := userID.(string)
	if !ok {
		return "", fmt.Errorf("invalid user_id type")
	}

	return userIDStr, nil
}

func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		return 50
	}
	return limit
}

// bindJSON binds JSON request body
func bindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
