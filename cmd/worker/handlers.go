package main

import (
	"github.com/hibiken/asynq"

	"payrecon-backend/internal/domains/payment/job"
	"payrecon-backend/internal/shared"
	"payrecon-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	reconcile *job.ReconcileHandler
	sweep     *job.SweepHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		reconcile: job.NewReconcileHandler(c.ReconcileService),
		sweep:     job.NewSweepHandler(c.ReconcileService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeReconcilePayment, h.reconcile.ProcessTask)
	mux.HandleFunc(shared.TypeSweepStalePayments, h.sweep.ProcessTask)
}
