package enrichextractionresult

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"strings"
	"time"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/camunda"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/metrics"
	"invoice-workers/internal/common/observability"
	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/enrichment"
	"invoice-workers/internal/extraction"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/polling"
	"invoice-workers/internal/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const TaskType = "enrich-extraction-result"

type Handler struct {
	config        *Config
	logger        logger.Logger
	store         ObjectStore
	registry      SnapshotProvider
	indexer       Indexer
	service       *enrichment.Service
	extractor     *extraction.Extractor
	observability *observability.Observability
	errorHandler  *errors.ErrorHandler
	now           func() time.Time
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Store         ObjectStore
	Registry      SnapshotProvider
	Cache         redis.Cmdable
	Indexer       Indexer
	Observability *observability.Observability
	CustomConfig  *Config
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("object store is required for %s", TaskType)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("supplier registry is required for %s", TaskType)
	}
	if workerConfig.SearchEnabled && opts.Indexer == nil {
		return nil, fmt.Errorf("search indexer is required when search is enabled")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	extractor := extraction.New(
		extraction.WithMaxDepth(workerConfig.MaxDepth),
		extraction.WithExtraVendorPatterns(workerConfig.VendorPatterns...),
	)
	service := enrichment.NewService(enrichment.ServiceOptions{
		Enricher: enrichment.NewEnricher(extractor, matching.NewMatcher(workerConfig.Matching)),
		Cache:    opts.Cache,
		TTL:      workerConfig.CacheTTL,
		Logger:   log,
	})

	return &Handler{
		config:        workerConfig,
		logger:        log,
		store:         opts.Store,
		registry:      opts.Registry,
		indexer:       opts.Indexer,
		service:       service,
		extractor:     extractor,
		observability: opts.Observability,
		errorHandler:  errors.NewErrorHandler(log),
		now:           time.Now,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing extraction result enrichment", map[string]interface{}{
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
		h.observability.RecordJob(ctx, TaskType, "failed", time.Since(startTime))
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.observability.RecordJob(ctx, TaskType, "completed", time.Since(startTime))
}

// Execute loads the extraction result, attaches the supplier match, checks
// the output contract and stores the enriched document next to the original.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	doc, err := h.loadDocument(ctx, input)
	if err != nil {
		return nil, err
	}

	snap, err := h.registry.Snapshot(ctx)
	if err != nil {
		if registry.IsUnavailable(err) {
			return nil, errors.NewSupplierRegistryNotFoundError(err.Error())
		}
		return nil, errors.NewSupplierRegistryLoadFailedError(err)
	}

	result := h.service.Enrich(ctx, doc, snap, input.FallbackVendor)

	if check := enrichment.ValidateOutput(result.Document); !check.Valid {
		return nil, errors.NewOutputSchemaInvalidError(strings.Join(check.GetErrorMessages(), "; "))
	}

	enhancedKey := h.enhancedKey(input)
	data, err := enrichment.Marshal(result.Document)
	if err != nil {
		return nil, errors.NewStorageWriteFailedError(enhancedKey, err)
	}
	if err := h.store.Put(ctx, enhancedKey, data, "application/json"); err != nil {
		return nil, errors.NewStorageWriteFailedError(enhancedKey, err)
	}

	output := &Output{
		FileName:        input.FileName,
		ResultKey:       input.ResultKey,
		EnhancedKey:     enhancedKey,
		VendorName:      result.Block.VendorNameExtracted,
		MatchedSupplier: result.Block.MatchedSupplier,
		TopMatches:      result.Block.TopMatches,
		ReviewRequired:  result.Block.ReviewRequired(),
		DocumentClass:   doc.DocumentClass(),
		RegistryVersion: snap.Version,
		Cached:          result.Cached,
	}

	matchType := "none"
	if output.MatchedSupplier != nil {
		matchType = string(output.MatchedSupplier.MatchType)
	}
	metrics.SupplierMatches.WithLabelValues(matchType).Inc()
	if len(output.TopMatches) > 0 {
		metrics.SupplierMatchScore.Observe(output.TopMatches[0].SimilarityScore)
	}
	h.observability.RecordDocumentEnriched(ctx, output.DocumentClass, output.MatchedSupplier != nil)

	if h.config.SearchEnabled {
		record := h.searchRecord(doc, output)
		id := strings.TrimSuffix(path.Base(enhancedKey), ".json")
		if err := h.indexer.IndexDocument(ctx, h.config.SearchIndex, id, record); err != nil {
			return nil, errors.NewSearchIndexingFailedError(h.config.SearchIndex, err)
		}
		output.Indexed = true
	}

	h.logger.Info("Extraction result enriched", map[string]interface{}{
		"enhancedKey":    enhancedKey,
		"vendorName":     output.VendorName,
		"reviewRequired": output.ReviewRequired,
		"cached":         output.Cached,
		"indexed":        output.Indexed,
	})
	return output, nil
}

func (h *Handler) loadDocument(ctx context.Context, input *Input) (extraction.Document, error) {
	if input.Document != nil {
		return input.Document, nil
	}

	obj, err := h.store.Get(ctx, input.ResultKey)
	if err != nil {
		if stderrors.Is(err, aws.ErrObjectNotFound) {
			return nil, errors.NewExtractionResultNotFoundError(input.ResultKey)
		}
		return nil, errors.NewStorageReadFailedError(input.ResultKey, err)
	}

	doc, err := extraction.ParseDocument(obj.Body)
	if err != nil {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("extraction result %s: %v", input.ResultKey, err))
	}
	return doc, nil
}

// enhancedKey mirrors the result key under the enhanced prefix. Inline
// documents are named after the uploaded file.
func (h *Handler) enhancedKey(input *Input) string {
	switch {
	case input.OutputKey != "":
		return input.OutputKey
	case input.ResultKey != "":
		name := strings.TrimPrefix(input.ResultKey, h.config.ResultPrefix)
		if name == input.ResultKey {
			name = path.Base(input.ResultKey)
		}
		return h.config.EnhancedPrefix + name
	default:
		return polling.ResultKeyFor(h.config.EnhancedPrefix, input.FileName)
	}
}

func (h *Handler) searchRecord(doc extraction.Document, output *Output) SearchRecord {
	inference := doc.InferenceResult()
	if inference == nil {
		inference = map[string]interface{}(doc)
	}

	record := SearchRecord{
		FileName:        output.FileName,
		ResultKey:       output.ResultKey,
		EnhancedKey:     output.EnhancedKey,
		DocumentClass:   output.DocumentClass,
		VendorName:      output.VendorName,
		ReviewRequired:  output.ReviewRequired,
		RegistryVersion: output.RegistryVersion,
		Fields:          h.extractor.ExtractAll(inference).Map(),
		ProcessedAt:     h.now().UTC().Format(time.RFC3339),
	}
	if m := output.MatchedSupplier; m != nil {
		record.SupplierCode = m.SupplierCode
		record.SupplierName = m.SupplierName
		record.SimilarityScore = m.SimilarityScore
		record.MatchType = string(m.MatchType)
	}
	return record
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

	input := &Input{}
	if resultKey, ok := variables["resultKey"].(string); ok {
		input.ResultKey = resultKey
	}
	if document, ok := variables["document"].(map[string]interface{}); ok {
		input.Document = extraction.Document(document)
	}
	if fileName, ok := variables["fileName"].(string); ok {
		input.FileName = fileName
	}
	if fallback, ok := variables["fallbackVendor"].(string); ok {
		input.FallbackVendor = fallback
	}
	if outputKey, ok := variables["outputKey"].(string); ok {
		input.OutputKey = outputKey
	}

	switch {
	case input.ResultKey == "" && input.Document == nil:
		return nil, errors.NewValidationFailedError("one of resultKey or document is required")
	case input.ResultKey == "" && input.FileName == "" && input.OutputKey == "":
		return nil, errors.NewValidationFailedError("fileName or outputKey is required for an inline document")
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"enhancedKey":     output.EnhancedKey,
		"vendorName":      output.VendorName,
		"matchedSupplier": output.MatchedSupplier,
		"topMatches":      output.TopMatches,
		"reviewRequired":  output.ReviewRequired,
		"registryVersion": output.RegistryVersion,
		"indexed":         output.Indexed,
	}
	if output.DocumentClass != "" {
		variables["documentClass"] = output.DocumentClass
	}
	if output.MatchedSupplier != nil {
		variables["supplierCode"] = output.MatchedSupplier.SupplierCode
		variables["supplierName"] = output.MatchedSupplier.SupplierName
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
	}
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
	if appConfig.Storage.EnhancedPrefix != "" {
		cfg.EnhancedPrefix = appConfig.Storage.EnhancedPrefix
	}
	cfg.Matching = matching.Options{
		TopN:                appConfig.Matching.TopN,
		FuzzyFloor:          appConfig.Matching.FuzzyFloor,
		AcceptanceThreshold: appConfig.Matching.AcceptanceThreshold,
	}
	if appConfig.Extraction.MaxDepth > 0 {
		cfg.MaxDepth = appConfig.Extraction.MaxDepth
	}
	cfg.VendorPatterns = appConfig.Extraction.ExtraVendorPatterns
	if appConfig.Matching.CacheTTL > 0 {
		cfg.CacheTTL = config.GetDuration(appConfig.Matching.CacheTTL)
	}
	cfg.SearchEnabled = appConfig.Search.Enabled
	if appConfig.Search.Index != "" {
		cfg.SearchIndex = appConfig.Search.Index
	}
	return cfg
}
