package exportresults

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"time"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/camunda"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/metrics"
	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/export"
	"invoice-workers/internal/extraction"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "export-results"

var contentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatJSON: "application/json",
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	store        ObjectStore
	exporter     *export.Exporter
	errorHandler *errors.ErrorHandler
	newID        func() string
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Store        ObjectStore
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("object store is required for %s", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:       workerConfig,
		logger:       log,
		store:        opts.Store,
		exporter:     export.New(extraction.New(extraction.WithMaxDepth(workerConfig.MaxDepth))),
		errorHandler: errors.NewErrorHandler(log),
		newID:        uuid.NewString,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing results export", map[string]interface{}{
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

// Execute renders the referenced results into one file and stores it.
// Results that no longer exist or do not parse are skipped and reported.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Results) > h.config.MaxItems {
		return nil, errors.NewBusinessRuleError("Too many results for one export",
			fmt.Sprintf("requested %d, limit %d", len(input.Results), h.config.MaxItems))
	}

	format := input.Format
	if format == "" {
		format = h.config.DefaultFormat
	}

	items, skipped, err := h.loadItems(ctx, input.Results)
	if err != nil {
		return nil, err
	}

	table := h.exporter.BuildTable(items)
	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		err = export.WriteCSV(&buf, table)
	case FormatXLSX:
		err = export.WriteXLSX(&buf, table)
	case FormatJSON:
		err = export.WriteJSON(&buf, items, input.ProcessedDate)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, errors.NewExportFailedError(format, err)
	}

	exportID := h.newID()
	key := fmt.Sprintf("%s%s-%s.%s", h.config.ExportPrefix, h.config.FileBaseName, exportID, format)
	if err := h.store.Put(ctx, key, buf.Bytes(), contentTypes[format]); err != nil {
		return nil, errors.NewStorageWriteFailedError(key, err)
	}

	return &Output{
		ExportID:    exportID,
		ExportKey:   key,
		Format:      format,
		RowCount:    len(table.Rows),
		ColumnCount: len(table.Headers),
		Skipped:     skipped,
		SizeBytes:   buf.Len(),
	}, nil
}

func (h *Handler) loadItems(ctx context.Context, refs []ResultRef) ([]export.Item, []string, error) {
	items := make([]export.Item, 0, len(refs))
	skipped := []string{}

	for _, ref := range refs {
		obj, err := h.store.Get(ctx, ref.Key)
		if err != nil {
			if stderrors.Is(err, aws.ErrObjectNotFound) {
				h.logger.Warn("Skipping missing result", map[string]interface{}{"key": ref.Key})
				skipped = append(skipped, ref.Key)
				continue
			}
			return nil, nil, errors.NewStorageReadFailedError(ref.Key, err)
		}

		doc, err := extraction.ParseDocument(obj.Body)
		if err != nil {
			h.logger.Warn("Skipping unreadable result", map[string]interface{}{
				"key":   ref.Key,
				"error": err.Error(),
			})
			skipped = append(skipped, ref.Key)
			continue
		}

		fileName := ref.FileName
		if fileName == "" {
			fileName = path.Base(ref.Key)
		}
		items = append(items, export.Item{FileName: fileName, Document: doc})
	}
	return items, skipped, nil
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
	for _, raw := range variables["results"].([]interface{}) {
		entry := raw.(map[string]interface{})
		ref := ResultRef{Key: entry["key"].(string)}
		if fileName, ok := entry["fileName"].(string); ok {
			ref.FileName = fileName
		}
		input.Results = append(input.Results, ref)
	}
	if format, ok := variables["format"].(string); ok {
		input.Format = format
	}
	if processedDate, ok := variables["processedDate"].(string); ok {
		input.ProcessedDate = processedDate
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"exportId":       output.ExportID,
		"exportKey":      output.ExportKey,
		"exportFormat":   output.Format,
		"exportRowCount": output.RowCount,
		"exportSkipped":  output.Skipped,
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

	h.logger.Info("Export stored", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"exportKey": output.ExportKey,
		"rows":      output.RowCount,
		"skipped":   len(output.Skipped),
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
	if appConfig.Storage.ExportPrefix != "" {
		cfg.ExportPrefix = appConfig.Storage.ExportPrefix
	}
	if appConfig.Extraction.MaxDepth > 0 {
		cfg.MaxDepth = appConfig.Extraction.MaxDepth
	}
	return cfg
}
