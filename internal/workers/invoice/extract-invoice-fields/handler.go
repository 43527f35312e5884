package extractinvoicefields

import (
	"context"
	"fmt"
	"time"

	"invoice-workers/internal/common/camunda"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/metrics"
	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/extraction"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "extract-invoice-fields"

type Handler struct {
	config       *Config
	logger       logger.Logger
	extractor    *extraction.Extractor
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config: workerConfig,
		logger: log,
		extractor: extraction.New(
			extraction.WithMaxDepth(workerConfig.MaxDepth),
			extraction.WithExtraVendorPatterns(workerConfig.ExtraVendorPatterns...),
		),
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing invoice field extraction", map[string]interface{}{
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

// Execute extracts the flat field view and the vendor guess from a document.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	inference := input.Document.InferenceResult()
	if inference == nil {
		inference = map[string]interface{}(input.Document)
	}

	fields := h.extractor.ExtractAll(inference)
	vendor, found := h.extractor.ExtractVendorName(inference)
	metrics.FieldsExtracted.Observe(float64(fields.Len()))

	output := &Output{
		FileName:      input.FileName,
		Fields:        fields.Map(),
		FieldNames:    fields.Names(),
		FieldCount:    fields.Len(),
		VendorName:    vendor,
		VendorFound:   found,
		DocumentClass: input.Document.DocumentClass(),
		DisplayFields: h.extractor.Flatten(input.Document),
	}
	if name, confidence, ok := input.Document.MatchedBlueprint(); ok {
		output.MatchedBlueprint = name
		output.BlueprintConfidence = confidence
	}
	if output.DisplayFields == nil {
		output.DisplayFields = []extraction.FlatFieldEntry{}
	}

	h.logger.Debug("Extracted invoice fields", map[string]interface{}{
		"fileName":    input.FileName,
		"fieldCount":  output.FieldCount,
		"vendorFound": found,
	})
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

	input := &Input{Document: extraction.Document(variables["document"].(map[string]interface{}))}
	if fileName, ok := variables["fileName"].(string); ok {
		input.FileName = fileName
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"fields":        output.Fields,
		"fieldNames":    output.FieldNames,
		"fieldCount":    output.FieldCount,
		"vendorName":    output.VendorName,
		"vendorFound":   output.VendorFound,
		"displayFields": output.DisplayFields,
	}
	if output.DocumentClass != "" {
		variables["documentClass"] = output.DocumentClass
	}
	if output.MatchedBlueprint != "" {
		variables["matchedBlueprint"] = output.MatchedBlueprint
		variables["blueprintConfidence"] = output.BlueprintConfidence
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

	h.logger.Info("Successfully extracted invoice fields", map[string]interface{}{
		"jobKey":     job.GetKey(),
		"fieldCount": output.FieldCount,
		"vendorName": output.VendorName,
		"worker":     TaskType,
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
	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[TaskType]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = config.GetDuration(workerCfg.Timeout)
			}
		}
		if appConfig.Extraction.MaxDepth > 0 {
			cfg.MaxDepth = appConfig.Extraction.MaxDepth
		}
		cfg.ExtraVendorPatterns = appConfig.Extraction.ExtraVendorPatterns
	}
	return cfg
}
