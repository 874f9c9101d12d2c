// internal/workers/recommendation/build-candidates/handler.go
package buildcandidates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"
	"unipal-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "build-candidates"
)

var (
	ErrNoPreferredCountries = errors.New("NO_PREFERRED_COUNTRIES")
)

type CandidateBuilder interface {
	Build(ctx context.Context, p models.StudentProfile) []models.RawCandidateRecord
}

type Handler struct {
	config  *Config
	builder CandidateBuilder
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, builder CandidateBuilder, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		builder: builder,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	profile := input.StudentProfile
	if len(profile.PreferredCountries) == 0 {
		return nil, apperrors.NewInvalidJobInputError(fmt.Errorf("%w: studentProfile.preferredCountries is empty", ErrNoPreferredCountries))
	}

	candidates := h.builder.Build(ctx, profile)

	// A partial list built before the deadline is discarded so the job is
	// retried from scratch. Page extraction dominates the stage's run time.
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewLLMTimeoutError()
		}
		return nil, err
	}

	if candidates == nil {
		candidates = []models.RawCandidateRecord{}
	}

	h.logger.Info("candidates built", map[string]interface{}{
		"contactInfo": profile.ContactInfo,
		"countries":   profile.PreferredCountries,
		"candidates":  len(candidates),
	})

	return &Output{
		Candidates:     candidates,
		CandidateCount: len(candidates),
		Countries:      profile.PreferredCountries,
	}, nil
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
