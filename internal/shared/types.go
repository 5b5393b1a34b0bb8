package shared

// Task type names shared between enqueuers and the worker registry.
const (
	TypeReconcilePayment   = "payment:reconcile"
	TypeSweepStalePayments = "payment:sweep_stale"
)

// Queue names. Reconcile gets its own queue so a backlog of sweeps
// cannot starve payment settlement.
const (
	QueueReconcile = "reconcile"
	QueueDefault   = "default"
)

// ReconcilePaymentPayload is the task body for payment:reconcile.
type ReconcilePaymentPayload struct {
	PaymentID      string `json:"paymentId"`
	GatewayOrderID string `json:"gatewayOrderId"`
}
