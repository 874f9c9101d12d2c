// internal/workers/communication/send-shortlist/handler.go
package sendshortlist

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
	TaskType = "send-shortlist"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, textBody, htmlBody string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Handler struct {
	config *Config
	email  EmailSender
	sms    SMSSender
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

// NewHandler builds the handler. A nil sender disables its channel.
func NewHandler(config *Config, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		email:  email,
		sms:    sms,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
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
	state := input.ApplicationState
	if state.StudentInfo == nil || strings.TrimSpace(state.StudentInfo.ContactInfo) == "" {
		h.logger.Warn("shortlist not sent", map[string]interface{}{"reason": ReasonNoContact})
		return &Output{Channel: ChannelNone, Reason: ReasonNoContact}, nil
	}
	if len(state.Universities) == 0 {
		h.logger.Info("shortlist not sent", map[string]interface{}{"reason": ReasonNoResults})
		return &Output{Channel: ChannelNone, Reason: ReasonNoResults}, nil
	}

	contact := strings.TrimSpace(state.StudentInfo.ContactInfo)
	if validation.IsEmailContact(contact) {
		return h.sendEmail(ctx, contact, state)
	}
	return h.sendSMS(ctx, contact, state)
}

func (h *Handler) sendEmail(ctx context.Context, to string, state models.ApplicationState) (*Output, error) {
	if !h.config.EmailEnabled || h.email == nil {
		return &Output{Channel: ChannelEmail, Reason: ReasonDisabled}, nil
	}

	msg := RenderEmail(state)
	id, err := h.email.SendEmail(ctx, to, msg.Subject, msg.Text, msg.HTML)
	if err != nil {
		return nil, apperrors.NewNotificationSendFailedError(ChannelEmail, err)
	}

	h.logger.Info("shortlist emailed", map[string]interface{}{
		"messageId":    id,
		"universities": len(state.Universities),
	})
	return &Output{Sent: true, Channel: ChannelEmail, MessageID: id, SentAt: time.Now().UTC().Format(time.RFC3339)}, nil
}

func (h *Handler) sendSMS(ctx context.Context, phone string, state models.ApplicationState) (*Output, error) {
	if !h.config.SMSEnabled || h.sms == nil {
		return &Output{Channel: ChannelSMS, Reason: ReasonDisabled}, nil
	}

	id, err := h.sms.SendSMS(ctx, phone, RenderSMS(state))
	if err != nil {
		return nil, apperrors.NewNotificationSendFailedError(ChannelSMS, err)
	}

	h.logger.Info("shortlist sent by SMS", map[string]interface{}{
		"messageId":    id,
		"universities": len(state.Universities),
	})
	return &Output{Sent: true, Channel: ChannelSMS, MessageID: id, SentAt: time.Now().UTC().Format(time.RFC3339)}, nil
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
