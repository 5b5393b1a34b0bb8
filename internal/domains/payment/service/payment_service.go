package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"payrecon-backend/internal/domains/payment/model"
	repo "payrecon-backend/internal/domains/payment/repository"
	"payrecon-backend/pkg/cache"
	"payrecon-backend/pkg/logger"
)

// =====================================================
// PAYMENT SERVICE IMPLEMENTATION
// =====================================================
type paymentService struct {
	paymentRepo    repo.PaymentRepoInterface
	eventLedger    repo.EventLedgerInterface
	escalationSink repo.EscalationSinkInterface
	auditRepo      repo.AuditRepoInterface
	stateMachine   *StateMachine
	cache          cache.Cache
	asynqClient    *asynq.Client
}

func NewPaymentService(
	paymentRepo repo.PaymentRepoInterface,
	eventLedger repo.EventLedgerInterface,
	escalationSink repo.EscalationSinkInterface,
	auditRepo repo.AuditRepoInterface,
	stateMachine *StateMachine,
	cache cache.Cache,
	asynqClient *asynq.Client,
) PaymentService {
	return &paymentService{
		paymentRepo:    paymentRepo,
		eventLedger:    eventLedger,
		escalationSink: escalationSink,
		auditRepo:      auditRepo,
		stateMachine:   stateMachine,
		cache:          cache,
		asynqClient:    asynqClient,
	}
}

const (
	statusCacheTTL   = 5 * time.Minute
	defaultListLimit = 50
	maxListLimit     = 200
)

// =====================================================
// CREATE PAYMENT INTENT
// =====================================================

// CreatePaymentIntent opens a payment row for a gateway order
//
// Business Logic Flow:
// 1. Validate request
// 2. Create payment row in PENDING
// 3. Schedule the reconcile safety net task
//
// The reconcile task fires only if no webhook settles the payment
// first; task id dedup keeps one task per order.
func (s *paymentService) CreatePaymentIntent(
	ctx context.Context,
	req model.CreatePaymentIntentRequest,
) (*model.CreatePaymentIntentResponse, error) {
	// Step 1: Validate request
	if err := req.Validate(); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeInvalidRequest, "Invalid request", err)
	}

	// Step 2: Create payment row
	now := time.Now()
	payment := &model.Payment{
		ID:               uuid.New(),
		GatewayOrderID:   req.GatewayOrderID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Status:           model.PaymentStatusPending,
		CustomerID:       req.CustomerID,
		ServiceRequestID: req.ServiceRequestID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	// Step 3: Schedule reconcile safety net. A conflict means a task
	// for this order already exists, which is exactly what we want.
	if err := EnqueueReconcileTask(s.asynqClient, payment, model.ReconcileInitialDelay); err != nil && !errors.Is(err, model.ErrDuplicateJob) {
		// The payment row exists; the stale sweep will cover it.
		logger.Error("Failed to schedule reconcile task for new payment", err)
	}

	logger.Info("Payment intent created", map[string]interface{}{
		"payment_id":       payment.ID,
		"gateway_order_id": payment.GatewayOrderID,
		"amount":           payment.Amount.String(),
		"currency":         payment.Currency,
	})

	return &model.CreatePaymentIntentResponse{
		PaymentID:      payment.ID,
		GatewayOrderID: payment.GatewayOrderID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Status:         payment.Status,
	}, nil
}

// =====================================================
// GET PAYMENT STATUS
// =====================================================

// GetPaymentStatus gets payment status
// Used for polling after checkout redirect; cached briefly, and the
// state machine invalidates the cache on every transition.
func (s *paymentService) GetPaymentStatus(
	ctx context.Context,
	paymentID uuid.UUID,
) (*model.PaymentStatusResponse, error) {
	cacheKey := statusCacheKey(paymentID)

	if s.cache != nil {
		var cached model.PaymentStatusResponse
		if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			return nil, model.NewPaymentNotFoundError(paymentID.String())
		}
		return nil, err
	}

	response := &model.PaymentStatusResponse{
		PaymentID:        payment.ID,
		GatewayOrderID:   payment.GatewayOrderID,
		GatewayPaymentID: payment.GatewayPaymentID,
		Amount:           payment.Amount,
		Currency:         payment.Currency,
		Status:           payment.Status,
		PaidAt:           payment.PaidAt,
		CreatedAt:        payment.CreatedAt,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response, statusCacheTTL); err != nil {
			logger.Error("Failed to cache payment status", err)
		}
	}

	return response, nil
}

// =====================================================
// MANUAL CORRECTION
// =====================================================

// CorrectPayment records an operator correction on a terminal payment
func (s *paymentService) CorrectPayment(
	ctx context.Context,
	paymentID uuid.UUID,
	operator string,
	req model.CorrectionRequest,
) error {
	if err := req.Validate(); err != nil {
		return model.NewPaymentError(model.ErrCodeInvalidRequest, "Invalid correction request", err)
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			return model.NewPaymentNotFoundError(paymentID.String())
		}
		return err
	}

	return s.stateMachine.RecordCorrection(ctx, payment, operator, req.Reason, req.Note)
}

// =====================================================
// AUDIT TRAIL
// =====================================================

// GetAuditTrail returns the full state change history of a payment,
// alongside the webhook ledger entries that resolved to it
func (s *paymentService) GetAuditTrail(
	ctx context.Context,
	paymentID uuid.UUID,
) (*model.AuditTrailResponse, error) {
	if _, err := s.paymentRepo.GetByID(ctx, paymentID); err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			return nil, model.NewPaymentNotFoundError(paymentID.String())
		}
		return nil, err
	}

	records, err := s.auditRepo.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	events, err := s.eventLedger.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	return &model.AuditTrailResponse{
		PaymentID: paymentID,
		Records:   records,
		Events:    events,
	}, nil
}

// =====================================================
// OPERATOR LISTINGS
// =====================================================

// ListEscalations lists recent ops escalations, newest first
func (s *paymentService) ListEscalations(
	ctx context.Context,
	limit int,
) ([]*model.OpsEscalation, error) {
	return s.escalationSink.List(ctx, clampLimit(limit))
}

// ListFailedEvents lists webhook ledger entries that failed processing
func (s *paymentService) ListFailedEvents(
	ctx context.Context,
	limit int,
) ([]*model.WebhookEvent, error) {
	return s.eventLedger.ListFailed(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
