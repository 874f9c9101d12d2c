// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"unipal-workers/internal/common/config"
	"unipal-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// HandlerFunc matches the signature Zeebe expects from a job handler.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// JobWorker owns one open job subscription.
type JobWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job subscription for taskType. A disabled worker
// returns nil.
func StartWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler HandlerFunc,
	log logger.Logger,
) *JobWorker {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"taskType": taskType})
	if !wcfg.Enabled {
		log.Info("worker disabled", nil)
		return nil
	}

	maxJobs := wcfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = 5
	}
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(maxJobs).
		Timeout(timeout).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": maxJobs,
		"timeout":       timeout.String(),
	})
	return &JobWorker{worker: jw, logger: log, taskType: taskType}
}

func (w *JobWorker) TaskType() string {
	return w.taskType
}

// Stop closes the subscription and waits for in-flight jobs until ctx ends.
func (w *JobWorker) Stop(ctx context.Context) {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.worker.Close()

	done := make(chan struct{})
	go func() {
		w.worker.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker did not stop in time", nil)
	}
}
