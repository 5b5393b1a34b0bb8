package queue

import (
	"time"

	"github.com/hibiken/asynq"

	"payrecon-backend/internal/shared"
	"payrecon-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
}

func NewScheduler(redisAddress string) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{scheduler: scheduler}
}

func (s *Scheduler) RegisterJobs() error {
	return s.registerStalePaymentSweepJob()
}

// ================================================
// JOB: Stale Payment Sweep (Every 10 minutes)
// ================================================
// Re-enqueues reconciliation for pending payments whose webhook is
// presumed lost. Runs often enough that a lost settlement surfaces
// within minutes, and task id dedup keeps repeated runs cheap.
func (s *Scheduler) registerStalePaymentSweepJob() error {
	task := asynq.NewTask(shared.TypeSweepStalePayments, nil)

	_, err := s.scheduler.Register(
		"*/10 * * * *", // Every 10 minutes
		task,
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register StalePaymentSweep job", err)
		return err
	}

	logger.Info("Registered StalePaymentSweep: every 10 minutes", map[string]interface{}{})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
