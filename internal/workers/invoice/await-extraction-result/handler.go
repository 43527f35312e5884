package awaitextractionresult

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"invoice-workers/internal/common/camunda"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/metrics"
	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/polling"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "await-extraction-result"

type Handler struct {
	config       *Config
	logger       logger.Logger
	poller       *polling.Poller
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Lister       polling.ResultLister
	Tracker      *polling.Tracker
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Lister == nil {
		return nil, fmt.Errorf("result lister is required for %s", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:       workerConfig,
		logger:       log,
		poller:       polling.NewPoller(opts.Lister, workerConfig.ResultPrefix, workerConfig.PollInterval, opts.Tracker, log),
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Waiting for extraction result", map[string]interface{}{
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

// Execute waits until the result for the uploaded file shows up or the
// wait budget runs out.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tracker := h.poller.Tracker()
	tracker.PurgeOlderThan(h.config.CleanupWindow)

	maxWait := h.config.MaxWait
	if input.MaxWait > 0 && input.MaxWait < maxWait {
		maxWait = input.MaxWait
	}
	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	defer func() {
		metrics.PendingUploads.Set(float64(tracker.Status().PendingCount))
	}()

	started := time.Now()
	found, err := h.poller.Await(waitCtx, input.FileName, input.UploadTime)
	if err != nil {
		if stderrors.Is(err, polling.ErrResultNotReady) {
			return nil, errors.NewExtractionResultNotReadyError(input.FileName).
				WithMetadata("fileName", input.FileName).
				WithMetadata("waitedMs", time.Since(started).Milliseconds())
		}
		return nil, errors.NewStorageReadFailedError(h.config.ResultPrefix, err)
	}

	return &Output{
		FileName:       input.FileName,
		ResultKey:      found.Key,
		ResultFileName: found.FileName,
		LastModified:   found.LastModified,
		Waited:         time.Since(started).Round(time.Millisecond).String(),
	}, nil
}

// PollingStatus reports the uploads still waiting for a result.
func (h *Handler) PollingStatus() polling.Status {
	return h.poller.Tracker().Status()
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

	input := &Input{FileName: variables["fileName"].(string)}
	if raw, ok := variables["uploadTime"].(string); ok && raw != "" {
		uploadTime, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.NewValidationFailedError(fmt.Sprintf("uploadTime: %v", err))
		}
		input.UploadTime = uploadTime
	}
	if maxWait, ok := variables["maxWait"].(float64); ok {
		input.MaxWait = time.Duration(maxWait) * time.Millisecond
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"resultKey":          output.ResultKey,
		"resultFileName":     output.ResultFileName,
		"resultLastModified": output.LastModified.UTC().Format(time.RFC3339),
		"resultFound":        true,
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

	h.logger.Info("Extraction result ready", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"fileName":  output.FileName,
		"resultKey": output.ResultKey,
		"waited":    output.Waited,
		"worker":    TaskType,
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
	if appConfig.Storage.ResultPrefix != "" {
		cfg.ResultPrefix = appConfig.Storage.ResultPrefix
	}
	if appConfig.Polling.Interval > 0 {
		cfg.PollInterval = config.GetDuration(appConfig.Polling.Interval)
	}
	if appConfig.Polling.MaxWait > 0 {
		cfg.MaxWait = config.GetDuration(appConfig.Polling.MaxWait)
	}
	if appConfig.Polling.CleanupWindow > 0 {
		cfg.CleanupWindow = config.GetDuration(appConfig.Polling.CleanupWindow)
	}
	return cfg
}
