// internal/workers/application/lookup-visa-info/handler.go
package lookupvisainfo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"
	"unipal-workers/internal/models"
	"unipal-workers/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "lookup-visa-info"
)

type VisaLookup interface {
	Lookup(country string) (*models.VisaInfo, bool)
}

type Handler struct {
	config    *Config
	directory VisaLookup
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, directory VisaLookup, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		directory: directory,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidJobInputError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// execute never fails: an unknown country completes with visaInfo null.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	country := strings.TrimSpace(input.Country)
	if country == "" {
		country = pipeline.VisaCountry(input.StudentProfile, input.Universities)
	}
	if country == "" {
		h.logger.Warn("no country to look up visa information for", nil)
		return &Output{}, nil
	}

	info, ok := h.directory.Lookup(country)
	if !ok {
		h.logger.Warn("visa information not found", map[string]interface{}{"country": country})
		return &Output{VisaCountry: country}, nil
	}

	h.logger.Info("visa information found", map[string]interface{}{
		"country":      info.Country,
		"requirements": len(info.Requirements),
	})
	return &Output{VisaInfo: info, VisaCountry: info.Country, Found: true}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.AsStandard(err).Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
