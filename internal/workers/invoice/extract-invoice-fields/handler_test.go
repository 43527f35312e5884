package extractinvoicefields

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/extraction"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "invoice-processing",
		ElementId:          "Activity_ExtractInvoiceFields",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// ==========================
// Test Helpers
// ==========================

func sampleDocument() map[string]interface{} {
	return map[string]interface{}{
		"inference_result": map[string]interface{}{
			"vendor_name":    map[string]interface{}{"value": "Acme Corp"},
			"invoice_number": "INV-1",
			"total":          1250.5,
		},
		"document_class":    map[string]interface{}{"type": "invoice"},
		"matched_blueprint": map[string]interface{}{"name": "invoice-v1", "confidence": 0.93},
	}
}

func createTestHandler(t *testing.T) *Handler {
	handler, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return handler
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{name: "defaults", opts: HandlerOptions{CustomConfig: DefaultConfig()}},
		{name: "invalid timeout", opts: HandlerOptions{CustomConfig: &Config{MaxJobsActive: 1, MaxDepth: 3}}, wantErr: "timeout must be positive"},
		{name: "invalid max jobs", opts: HandlerOptions{CustomConfig: &Config{Timeout: time.Second, MaxDepth: 3}}, wantErr: "max_jobs_active must be positive"},
		{name: "invalid depth", opts: HandlerOptions{CustomConfig: &Config{Timeout: time.Second, MaxJobsActive: 1}}, wantErr: "max_depth must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, handler)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, handler.GetTaskType())
			assert.True(t, handler.IsEnabled())
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 1500},
		},
		Extraction: config.ExtractionConfig{MaxDepth: 5, ExtraVendorPatterns: []string{"issuer"}},
	}

	cfg := createConfigFromAppConfig(appConfig, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, []string{"issuer"}, cfg.ExtraVendorPatterns)

	custom := &Config{MaxDepth: 9}
	assert.Same(t, custom, createConfigFromAppConfig(appConfig, custom))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	handler := createTestHandler(t)

	t.Run("valid", func(t *testing.T) {
		job := createMockJob(1, map[string]interface{}{"document": sampleDocument(), "fileName": "invoice.pdf"})
		input, err := handler.parseInput(job)
		require.NoError(t, err)
		assert.Equal(t, "invoice.pdf", input.FileName)
		assert.Equal(t, "invoice", input.Document.DocumentClass())
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := handler.parseInput(createMockJob(2, map[string]interface{}{"fileName": "x.pdf"}))
		require.Error(t, err)
		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
	})

	t.Run("document is not an object", func(t *testing.T) {
		_, err := handler.parseInput(createMockJob(3, map[string]interface{}{"document": "text"}))
		require.Error(t, err)
		stdErr, _ := errors.AsStandardError(err)
		assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
	})
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		Document: extraction.Document(sampleDocument()),
		FileName: "invoice.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"invoice_number": "INV-1",
		"total":          "1250.5",
		"vendor_name":    "Acme Corp",
	}, output.Fields)
	assert.ElementsMatch(t, []string{"invoice_number", "total", "vendor_name"}, output.FieldNames)
	assert.Equal(t, 3, output.FieldCount)
	assert.Equal(t, "Acme Corp", output.VendorName)
	assert.True(t, output.VendorFound)
	assert.Equal(t, "invoice", output.DocumentClass)
	assert.Equal(t, "invoice-v1", output.MatchedBlueprint)
	assert.Equal(t, 0.93, output.BlueprintConfidence)
	assert.Contains(t, output.DisplayFields, extraction.FlatFieldEntry{
		Field: "invoice.invoice_number", Value: "INV-1", Source: extraction.SourceExtraction,
	})
}

func TestHandler_Execute_NoVendor(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{Document: extraction.Document{}})
	require.NoError(t, err)
	assert.False(t, output.VendorFound)
	assert.Empty(t, output.VendorName)
	assert.Zero(t, output.FieldCount)
	assert.NotNil(t, output.DisplayFields)
	assert.Empty(t, output.MatchedBlueprint)
}
