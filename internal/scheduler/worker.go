package scheduler

import (
	"context"
	"fmt"

	"leadtracker_backend/platform/config"
	"leadtracker_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ExportRunner produces the file for one export job.
type ExportRunner interface {
	Run(ctx context.Context, jobID string) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	exports ExportRunner
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, exports ExportRunner, log *logger.Logger) (*Worker, error) {
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
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		exports: exports,
		log:     log,
	}

	mux.HandleFunc(TaskLeadExport, w.handleLeadExport)

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

func (w *Worker) handleLeadExport(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadExportPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.JobID == "" {
		return fmt.Errorf("%w: missing job id", asynq.SkipRetry)
	}

	w.log.Info("lead export started", "jobId", payload.JobID)
	if err := w.exports.Run(ctx, payload.JobID); err != nil {
		w.log.Error("lead export failed", "jobId", payload.JobID, "error", err)
		return err
	}
	w.log.Info("lead export finished", "jobId", payload.JobID)
	return nil
}
