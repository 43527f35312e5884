package matchsupplier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoice-workers/internal/common/camunda"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/metrics"
	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "match-supplier"

type Handler struct {
	config       *Config
	logger       logger.Logger
	registry     SnapshotProvider
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Registry     SnapshotProvider
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("supplier registry is required for %s", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:       workerConfig,
		logger:       log,
		registry:     opts.Registry,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing supplier match request", map[string]interface{}{
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

// Execute ranks the registry against the vendor name. An empty vendor name
// is not an error; it yields no match and asks for review.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	snap, err := h.registry.Snapshot(ctx)
	if err != nil {
		if registry.IsUnavailable(err) {
			return nil, errors.NewSupplierRegistryNotFoundError(err.Error())
		}
		return nil, errors.NewSupplierRegistryLoadFailedError(err)
	}

	opts := h.config.Matching
	if input.TopN > 0 {
		opts.TopN = input.TopN
	}

	vendor := strings.TrimSpace(input.VendorName)
	result := matching.Match(vendor, snap.Records, &opts)

	output := &Output{
		VendorName:      vendor,
		Matched:         result.BestMatch != nil,
		MatchedSupplier: result.BestMatch,
		TopMatches:      result.TopMatches,
		ReviewRequired:  result.BestMatch == nil,
		RegistryVersion: snap.Version,
		RegistrySize:    snap.Len(),
	}
	recordMatchMetrics(result)
	return output, nil
}

func recordMatchMetrics(result matching.MatchResult) {
	if len(result.TopMatches) > 0 {
		metrics.SupplierMatchScore.Observe(result.TopMatches[0].SimilarityScore)
	}
	matchType := "none"
	if result.BestMatch != nil {
		matchType = string(result.BestMatch.MatchType)
	}
	metrics.SupplierMatches.WithLabelValues(matchType).Inc()
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

	input := &Input{VendorName: variables["vendorName"].(string)}
	if topN, ok := variables["topN"].(float64); ok {
		input.TopN = int(topN)
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"vendorName":      output.VendorName,
		"supplierMatched": output.Matched,
		"matchedSupplier": output.MatchedSupplier,
		"topMatches":      output.TopMatches,
		"reviewRequired":  output.ReviewRequired,
		"registryVersion": output.RegistryVersion,
	}
	if output.MatchedSupplier != nil {
		variables["supplierCode"] = output.MatchedSupplier.SupplierCode
		variables["supplierName"] = output.MatchedSupplier.SupplierName
		variables["similarityScore"] = output.MatchedSupplier.SimilarityScore
		variables["matchType"] = string(output.MatchedSupplier.MatchType)
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

	h.logger.Info("Successfully matched supplier", map[string]interface{}{
		"jobKey":         job.GetKey(),
		"vendorName":     output.VendorName,
		"matched":        output.Matched,
		"reviewRequired": output.ReviewRequired,
		"worker":         TaskType,
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
		cfg.Matching = matching.Options{
			TopN:                appConfig.Matching.TopN,
			FuzzyFloor:          appConfig.Matching.FuzzyFloor,
			AcceptanceThreshold: appConfig.Matching.AcceptanceThreshold,
		}
	}
	return cfg
}
