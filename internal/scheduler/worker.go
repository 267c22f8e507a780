package scheduler

import (
	"context"
	"fmt"

	"leadconsole_backend/internal/leads/exports"
	"leadconsole_backend/platform/config"
	"leadconsole_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Reconciler backfills missing export records.
type Reconciler interface {
	Reconcile(ctx context.Context) (exports.ReconcileResult, error)
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	reconciler Reconciler
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, reconciler Reconciler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		reconciler: reconciler,
		log:        log,
	}

	mux.HandleFunc(TaskExportReconcile, w.handleExportReconcile)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleExportReconcile(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseExportReconcilePayload(task)
	if err != nil {
		// Malformed payloads are not retried.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	res, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}

	w.log.Info("export reconcile task finished",
		"trigger", payload.Trigger,
		"created", res.Created,
		"already_present", res.AlreadyPresent,
	)
	return nil
}
