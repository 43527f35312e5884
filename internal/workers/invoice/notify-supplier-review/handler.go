package notifysupplierreview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invoice-workers/internal/common/camunda"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/metrics"
	"invoice-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "notify-supplier-review"

type Handler struct {
	config       *Config
	logger       logger.Logger
	publisher    Publisher
	mailer       Mailer
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Publisher    Publisher
	Mailer       Mailer
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if workerConfig.SNSEnabled && opts.Publisher == nil {
		return nil, fmt.Errorf("sns publisher is required for %s", TaskType)
	}
	if workerConfig.SESEnabled && opts.Mailer == nil {
		return nil, fmt.Errorf("ses mailer is required for %s", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:       workerConfig,
		logger:       log,
		publisher:    opts.Publisher,
		mailer:       opts.Mailer,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing supplier review notification", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute notifies reviewers when the supplier match needs a person. A
// confident match completes without sending anything.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	output := &Output{Channels: []string{}}

	reason := reviewReason(input, h.config.LowConfidenceThreshold)
	if reason == "" {
		h.logger.Debug("Supplier match accepted, no review needed", map[string]interface{}{
			"fileName":   documentName(input),
			"vendorName": input.VendorName,
		})
		return output, nil
	}
	output.Reason = reason
	subject := h.buildSubject(input, reason)

	if h.config.SNSEnabled {
		message, err := h.buildTopicMessage(input, reason)
		if err != nil {
			return nil, errors.NewNotificationSendFailedError(ChannelSNS, err)
		}
		id, err := h.publisher.PublishMessage(ctx, h.config.TopicARN, subject, message, map[string]string{
			"reason":   reason,
			"fileName": documentName(input),
		})
		if err != nil {
			metrics.ReviewNotifications.WithLabelValues(ChannelSNS, "failed").Inc()
			return nil, errors.NewNotificationSendFailedError(ChannelSNS, err)
		}
		metrics.ReviewNotifications.WithLabelValues(ChannelSNS, "sent").Inc()
		output.SNSMessageID = id
		output.Channels = append(output.Channels, ChannelSNS)
	}

	if h.config.SESEnabled {
		recipients := input.Recipients
		if len(recipients) == 0 {
			recipients = h.config.ReviewerEmails
		}
		if len(recipients) == 0 {
			h.logger.Warn("No reviewer addresses configured, skipping email", map[string]interface{}{
				"fileName": documentName(input),
			})
		} else {
			id, err := h.mailer.SendTextEmail(ctx, h.config.FromEmail, recipients, subject, h.buildEmailBody(input, reason))
			if err != nil {
				metrics.ReviewNotifications.WithLabelValues(ChannelSES, "failed").Inc()
				return nil, errors.NewNotificationSendFailedError(ChannelSES, err)
			}
			metrics.ReviewNotifications.WithLabelValues(ChannelSES, "sent").Inc()
			output.SESMessageID = id
			output.Channels = append(output.Channels, ChannelSES)
		}
	}

	output.Notified = len(output.Channels) > 0
	if !output.Notified {
		h.logger.Warn("Supplier review needed but no notification channel delivered", map[string]interface{}{
			"fileName": documentName(input),
			"reason":   reason,
		})
	}
	return output, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	data, err := json.Marshal(variables)
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	input := &Input{}
	if err := json.Unmarshal(data, input); err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	if input.FileName == "" && input.EnhancedKey == "" {
		return nil, errors.NewValidationFailedError("fileName or enhancedKey is required")
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"reviewNotified":     output.Notified,
		"reviewChannels":     output.Channels,
		"reviewNotifyReason": output.Reason,
		"reviewSnsMessageId": output.SNSMessageID,
		"reviewSesMessageId": output.SESMessageID,
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	h.logger.Info("Supplier review notification handled", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"notified": output.Notified,
		"channels": output.Channels,
		"worker":   TaskType,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) WorkerOptions() camunda.WorkerOptions {
	return camunda.WorkerOptions{MaxJobsActive: h.config.MaxJobsActive, Timeout: h.config.Timeout}
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if workerCfg, exists := appConfig.Workers[TaskType]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
	}

	notifications := appConfig.Notifications
	cfg.SNSEnabled = notifications.SNS.Enabled
	cfg.TopicARN = notifications.SNS.TopicARN
	cfg.SESEnabled = notifications.SES.Enabled
	cfg.FromEmail = notifications.SES.FromEmail
	cfg.ReviewerEmails = notifications.SES.ReviewerEmails
	if appConfig.Matching.AcceptanceThreshold > 0 && cfg.LowConfidenceThreshold < appConfig.Matching.AcceptanceThreshold {
		cfg.LowConfidenceThreshold = appConfig.Matching.AcceptanceThreshold
	}
	return cfg
}
