// internal/workers/student/validate-student-profile/handler.go
package validatestudentprofile

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/common/metrics"
	"unipal-workers/internal/common/validation"
	"unipal-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-student-profile"
)

type ProfileStore interface {
	Upsert(ctx context.Context, p models.StudentProfile) error
}

type Snapshotter interface {
	Put(p models.StudentProfile, replaceExisting bool) error
}

type Handler struct {
	config   *Config
	store    ProfileStore
	snapshot Snapshotter
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

// NewHandler builds the handler. snapshot may be nil.
func NewHandler(config *Config, store ProfileStore, snapshot Snapshotter, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		store:    store,
		snapshot: snapshot,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
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
	profile := input.StudentProfile.Clone()

	result := validation.ValidateProfile(profile)
	if !result.Valid {
		h.logger.Warn("profile rejected", map[string]interface{}{
			"contactInfo": profile.ContactInfo,
			"errors":      result.GetErrorMessages(),
		})
		return nil, apperrors.NewProfileValidationError(strings.Join(result.GetErrorMessages(), "; ")).
			WithMetadata("validationErrors", result.Errors)
	}

	if err := h.store.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	replace := h.config.ReplaceExisting
	if input.ReplaceExisting != nil {
		replace = *input.ReplaceExisting
	}

	snapshotSaved := false
	if h.snapshot != nil {
		if err := h.snapshot.Put(profile, replace); err != nil {
			h.logger.Warn("snapshot not written", map[string]interface{}{"error": err})
		} else {
			snapshotSaved = true
		}
	}

	h.logger.Info("student profile saved", map[string]interface{}{
		"contactInfo":     profile.ContactInfo,
		"replaceExisting": replace,
	})

	return &Output{
		StudentProfile: profile,
		ProfileValid:   true,
		Saved:          true,
		SnapshotSaved:  snapshotSaved,
		SavedAt:        time.Now().UTC().Format(time.RFC3339),
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
