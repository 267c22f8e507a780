package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadconsole_backend/platform/config"
	"leadconsole_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const triggerCron = "cron"

// Periodic enqueues the export reconcile task on the configured cron spec.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, loc *time.Location, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	spec := cfg.GetExportReconcileCron()
	if spec == "" {
		return nil, fmt.Errorf("export reconcile cron not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	task, err := NewExportReconcileTask(ExportReconcilePayload{Trigger: triggerCron})
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc})
	entryID, err := scheduler.Register(spec, task, asynq.Queue(queueName(cfg)), asynq.Unique(reconcileUniqueFor))
	if err != nil {
		return nil, fmt.Errorf("register export reconcile cron %q: %w", spec, err)
	}
	log.Info("export reconcile scheduled", "cron", spec, "entry_id", entryID)

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run starts the scheduler and blocks until ctx is done.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
