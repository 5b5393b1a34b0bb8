package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"payrecon-backend/internal/domains/payment/model"
)

// In-memory fakes for the repository interfaces. BeginTx hands out a
// nil pgx.Tx; the fakes never touch it.

// =====================================================
// PAYMENT REPO FAKE
// =====================================================

type fakePaymentRepo struct {
	payments map[uuid.UUID]*model.Payment

	updateErr error
	getErr    error

	updateCalls int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
}

func (f *fakePaymentRepo) add(p *model.Payment) {
	f.payments[p.ID] = p
}

func (f *fakePaymentRepo) UpdateStatusWithTx(
	ctx context.Context,
	tx pgx.Tx,
	paymentID uuid.UUID,
	fromStatus string,
	toStatus string,
	paidAt *time.Time,
	gatewayPaymentID *string,
) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	p, ok := f.payments[paymentID]
	if !ok {
		return model.ErrPaymentNotFound
	}
	if p.Status != fromStatus {
		return model.ErrStalePaymentState
	}
	p.Status = toStatus
	if paidAt != nil && p.PaidAt == nil {
		p.PaidAt = paidAt
	}
	if gatewayPaymentID != nil && p.GatewayPaymentID == nil {
		p.GatewayPaymentID = gatewayPaymentID
	}
	return nil
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	f.payments[payment.ID] = payment
	return nil
}

func (f *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, model.ErrPaymentNotFound
	}
	return p, nil
}

func (f *fakePaymentRepo) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*model.Payment, error) {
	for _, p := range f.payments {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == gatewayPaymentID {
			return p, nil
		}
	}
	return nil, model.ErrPaymentNotFound
}

func (f *fakePaymentRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	for _, p := range f.payments {
		if p.GatewayOrderID == gatewayOrderID {
			return p, nil
		}
	}
	return nil, model.ErrPaymentNotFound
}

func (f *fakePaymentRepo) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Payment, error) {
	cutoff := time.Now().Add(-olderThan)
	var stale []*model.Payment
	for _, p := range f.payments {
		if p.Status == model.PaymentStatusPending && p.GatewayPaymentID != nil && p.CreatedAt.Before(cutoff) {
			stale = append(stale, p)
		}
	}
	return stale, nil
}

// =====================================================
// EVENT LEDGER FAKE
// =====================================================

type fakeEventLedger struct {
	seenEventIDs map[string]bool
	seenPairs    map[string]bool
	events       map[uuid.UUID]*model.WebhookEvent
	statuses     map[uuid.UUID]string
	failReasons  map[uuid.UUID]string
	attached     map[uuid.UUID]uuid.UUID

	recordErr error
}

func newFakeEventLedger() *fakeEventLedger {
	return &fakeEventLedger{
		seenEventIDs: make(map[string]bool),
		seenPairs:    make(map[string]bool),
		events:       make(map[uuid.UUID]*model.WebhookEvent),
		statuses:     make(map[uuid.UUID]string),
		failReasons:  make(map[uuid.UUID]string),
		attached:     make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeEventLedger) RecordIfNew(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	if f.recordErr != nil {
		return false, f.recordErr
	}
	if f.seenEventIDs[event.EventID] {
		return false, nil
	}
	if event.GatewayPaymentID != nil {
		pair := *event.GatewayPaymentID + "|" + event.EventType
		if f.seenPairs[pair] {
			return false, nil
		}
		f.seenPairs[pair] = true
	}
	f.seenEventIDs[event.EventID] = true
	f.events[event.ID] = event
	f.statuses[event.ID] = model.EventStatusReceived
	return true, nil
}

func (f *fakeEventLedger) AttachPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error {
	f.attached[id] = paymentID
	if event, ok := f.events[id]; ok {
		event.PaymentID = &paymentID
	}
	return nil
}

func (f *fakeEventLedger) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	f.statuses[id] = model.EventStatusProcessing
	return nil
}

func (f *fakeEventLedger) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	f.statuses[id] = model.EventStatusProcessed
	return nil
}

func (f *fakeEventLedger) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	f.statuses[id] = model.EventStatusFailed
	f.failReasons[id] = errorMsg
	return nil
}

func (f *fakeEventLedger) ListFailed(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	return nil, nil
}

func (f *fakeEventLedger) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*model.WebhookEvent, error) {
	var out []*model.WebhookEvent
	for _, event := range f.events {
		if event.PaymentID != nil && *event.PaymentID == paymentID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakeEventLedger) statusOfOnly() string {
	for _, s := range f.statuses {
		return s
	}
	return ""
}

// =====================================================
// AUDIT REPO FAKE
// =====================================================

type fakeAuditRepo struct {
	records   []*model.StateChangeRecord
	appendErr error
}

func (f *fakeAuditRepo) AppendWithTx(ctx context.Context, tx pgx.Tx, record *model.StateChangeRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAuditRepo) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*model.StateChangeRecord, error) {
	var out []*model.StateChangeRecord
	for _, r := range f.records {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// =====================================================
// ESCALATION SINK FAKE
// =====================================================

type fakeEscalationSink struct {
	created   []*model.OpsEscalation
	createErr error
}

func (f *fakeEscalationSink) Create(ctx context.Context, escalation *model.OpsEscalation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, escalation)
	return nil
}

func (f *fakeEscalationSink) List(ctx context.Context, limit int) ([]*model.OpsEscalation, error) {
	return f.created, nil
}

// =====================================================
// TRANSACTION MANAGER FAKE
// =====================================================

type fakeTxManager struct {
	commits   int
	rollbacks int
	beginErr  error
	commitErr error
}

func (f *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return nil, nil
}

func (f *fakeTxManager) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	return nil
}

func (f *fakeTxManager) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	f.rollbacks++
	return nil
}

// =====================================================
// CACHE FAKE
// =====================================================

type fakeCache struct {
	entries map[string]interface{}
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]interface{})}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	_, ok := f.entries[key]
	return ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.entries, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func (f *fakeCache) Ping(ctx context.Context) error {
	return nil
}

// =====================================================
// TEST DATA BUILDERS
// =====================================================

func pendingPayment(orderID string) *model.Payment {
	now := time.Now()
	return &model.Payment{
		ID:               uuid.New(),
		GatewayOrderID:   orderID,
		Amount:           decimalFromMinor(149900),
		Currency:         model.DefaultCurrency,
		Status:           model.PaymentStatusPending,
		CustomerID:       uuid.New(),
		ServiceRequestID: uuid.New(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func strPtr(s string) *string {
	return &s
}

// decimalFromMinor converts a minor-unit amount to a decimal, the way
// gateway payloads carry amounts.
func decimalFromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
