package enrichextractionresult

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/enrichment"
	"invoice-workers/internal/extraction"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) (*aws.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	body, ok := m.objects[key]
	if !ok {
		return nil, aws.ErrObjectNotFound
	}
	return &aws.Object{Key: key, Body: body}, nil
}

func (m *memStore) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = body
	return nil
}

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Snapshot(ctx context.Context) (*registry.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.Snapshot), args.Error(1)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	args := m.Called(ctx, index, id, doc)
	return args.Error(0)
}

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
		ElementId:          "Activity_EnrichExtractionResult",
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

const resultKey = "bda-result/job-1/invoice-a-result.json"

func sampleSnapshot() *registry.Snapshot {
	return registry.NewSnapshot([]matching.SupplierRecord{
		{Code: "100", Name: "Acme Corporation"},
		{Code: "200", Name: "Globex Industries", AliasNames: []string{"Globex"}},
		{Code: "300", Name: "Initech LLC"},
	}, "test", time.Now())
}

func sampleDocument() map[string]interface{} {
	return map[string]interface{}{
		"inference_result": map[string]interface{}{
			"vendor_name":    map[string]interface{}{"value": "Acme Corp"},
			"invoice_number": "INV-1",
		},
		"document_class": map[string]interface{}{"type": "invoice"},
	}
}

func storeWithResult(t *testing.T) *memStore {
	store := newMemStore()
	data, err := json.Marshal(sampleDocument())
	require.NoError(t, err)
	store.objects[resultKey] = data
	return store
}

func readyRegistry() *MockRegistry {
	reg := &MockRegistry{}
	reg.On("Snapshot", mock.Anything).Return(sampleSnapshot(), nil)
	return reg
}

func createTestHandler(t *testing.T, opts HandlerOptions) *Handler {
	if opts.CustomConfig == nil {
		opts.CustomConfig = DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewTestLogger(t)
	}
	handler, err := NewHandler(opts)
	require.NoError(t, err)
	handler.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return handler
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Registry: &MockRegistry{}})
	assert.ErrorContains(t, err, "object store is required")

	_, err = NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Store: newMemStore()})
	assert.ErrorContains(t, err, "supplier registry is required")

	cfg := DefaultConfig()
	cfg.SearchEnabled = true
	_, err = NewHandler(HandlerOptions{CustomConfig: cfg, Store: newMemStore(), Registry: &MockRegistry{}})
	assert.ErrorContains(t, err, "search indexer is required")

	cfg = DefaultConfig()
	cfg.EnhancedPrefix = cfg.ResultPrefix
	_, err = NewHandler(HandlerOptions{CustomConfig: cfg, Store: newMemStore(), Registry: &MockRegistry{}})
	assert.ErrorContains(t, err, "enhanced_prefix must differ")
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{
		Storage:  config.StorageConfig{ResultPrefix: "results/", EnhancedPrefix: "enriched/"},
		Matching: config.MatchingConfig{TopN: 3, FuzzyFloor: 65, AcceptanceThreshold: 45, CacheTTL: 60000},
		Search:   config.SearchConfig{Enabled: true, Index: "invoices"},
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, MaxJobsActive: 7, Timeout: 45000},
		},
	}

	cfg := createConfigFromAppConfig(appConfig, nil)
	assert.Equal(t, "results/", cfg.ResultPrefix)
	assert.Equal(t, "enriched/", cfg.EnhancedPrefix)
	assert.Equal(t, matching.Options{TopN: 3, FuzzyFloor: 65, AcceptanceThreshold: 45}, cfg.Matching)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.SearchEnabled)
	assert.Equal(t, "invoices", cfg.SearchIndex)
	assert.Equal(t, 7, cfg.MaxJobsActive)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	handler := createTestHandler(t, HandlerOptions{Store: newMemStore(), Registry: &MockRegistry{}})

	input, err := handler.parseInput(createMockJob(1, map[string]interface{}{
		"resultKey":      resultKey,
		"fallbackVendor": "Acme",
	}))
	require.NoError(t, err)
	assert.Equal(t, resultKey, input.ResultKey)
	assert.Equal(t, "Acme", input.FallbackVendor)
	assert.Nil(t, input.Document)

	input, err = handler.parseInput(createMockJob(2, map[string]interface{}{
		"document": sampleDocument(),
		"fileName": "7_invoice_a.pdf",
	}))
	require.NoError(t, err)
	assert.Equal(t, "invoice", input.Document.DocumentClass())

	_, err = handler.parseInput(createMockJob(3, map[string]interface{}{}))
	requireCode(t, err, errors.ErrCodeValidationFailed)

	_, err = handler.parseInput(createMockJob(4, map[string]interface{}{"document": sampleDocument()}))
	requireCode(t, err, errors.ErrCodeValidationFailed)

	_, err = handler.parseInput(createMockJob(5, map[string]interface{}{"resultKey": ""}))
	requireCode(t, err, errors.ErrCodeValidationFailed)
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_FromStorage(t *testing.T) {
	store := storeWithResult(t)
	reg := readyRegistry()
	handler := createTestHandler(t, HandlerOptions{Store: store, Registry: reg})

	output, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
	require.NoError(t, err)

	assert.Equal(t, "enhanced-result/job-1/invoice-a-result.json", output.EnhancedKey)
	assert.Equal(t, "Acme Corp", output.VendorName)
	require.NotNil(t, output.MatchedSupplier)
	assert.Equal(t, "100", output.MatchedSupplier.SupplierCode)
	assert.False(t, output.ReviewRequired)
	assert.Equal(t, "invoice", output.DocumentClass)
	assert.False(t, output.Cached)
	assert.False(t, output.Indexed)

	stored, ok := store.objects[output.EnhancedKey]
	require.True(t, ok)
	doc, err := extraction.ParseDocument(stored)
	require.NoError(t, err)
	block, ok := enrichment.BlockFromDocument(doc)
	require.True(t, ok)
	assert.Equal(t, "100", block.MatchedSupplier.SupplierCode)
	assert.True(t, enrichment.ValidateOutput(doc).Valid)

	reg.AssertExpectations(t)
}

func TestHandler_Execute_InlineDocument(t *testing.T) {
	store := newMemStore()
	handler := createTestHandler(t, HandlerOptions{Store: store, Registry: readyRegistry()})

	output, err := handler.Execute(context.Background(), &Input{
		Document: extraction.Document{"inference_result": map[string]interface{}{"total": 5}},
		FileName: "7_invoice_a.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "enhanced-result/invoice-a-result.json", output.EnhancedKey)
	assert.True(t, output.ReviewRequired)
	assert.Nil(t, output.MatchedSupplier)
	assert.NotNil(t, output.TopMatches)
	assert.Contains(t, store.objects, output.EnhancedKey)

	output, err = handler.Execute(context.Background(), &Input{
		Document:       extraction.Document{},
		OutputKey:      "custom/out.json",
		FallbackVendor: "Globex",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom/out.json", output.EnhancedKey)
	require.NotNil(t, output.MatchedSupplier)
	assert.Equal(t, "200", output.MatchedSupplier.SupplierCode)
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("result missing", func(t *testing.T) {
		handler := createTestHandler(t, HandlerOptions{Store: newMemStore(), Registry: readyRegistry()})
		_, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
		requireCode(t, err, errors.ErrCodeExtractionResultNotFound)
	})

	t.Run("storage read failure", func(t *testing.T) {
		store := newMemStore()
		store.getErr = stderrors.New("throttled")
		handler := createTestHandler(t, HandlerOptions{Store: store, Registry: readyRegistry()})
		_, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
		requireCode(t, err, errors.ErrCodeStorageReadFailed)
	})

	t.Run("result is not a JSON object", func(t *testing.T) {
		store := newMemStore()
		store.objects[resultKey] = []byte("not json")
		handler := createTestHandler(t, HandlerOptions{Store: store, Registry: readyRegistry()})
		_, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
		requireCode(t, err, errors.ErrCodeValidationFailed)
	})

	t.Run("registry unavailable", func(t *testing.T) {
		reg := &MockRegistry{}
		reg.On("Snapshot", mock.Anything).Return(nil, registry.ErrPlaceholder)
		handler := createTestHandler(t, HandlerOptions{Store: storeWithResult(t), Registry: reg})
		_, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
		requireCode(t, err, errors.ErrCodeSupplierRegistryNotFound)
	})

	t.Run("registry load failure", func(t *testing.T) {
		reg := &MockRegistry{}
		reg.On("Snapshot", mock.Anything).Return(nil, stderrors.New("timeout"))
		handler := createTestHandler(t, HandlerOptions{Store: storeWithResult(t), Registry: reg})
		_, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
		requireCode(t, err, errors.ErrCodeSupplierRegistryLoadFailed)
	})

	t.Run("storage write failure", func(t *testing.T) {
		store := storeWithResult(t)
		store.putErr = stderrors.New("access denied")
		handler := createTestHandler(t, HandlerOptions{Store: store, Registry: readyRegistry()})
		_, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
		requireCode(t, err, errors.ErrCodeStorageWriteFailed)
	})
}

func TestHandler_Execute_IndexesResult(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SearchEnabled = true

	indexer := &MockIndexer{}
	indexer.On("IndexDocument", mock.Anything, "invoice-extractions", "invoice-a-result", mock.MatchedBy(func(doc interface{}) bool {
		record, ok := doc.(SearchRecord)
		return ok &&
			record.SupplierCode == "100" &&
			record.MatchType == "fuzzy" &&
			record.Fields["invoice_number"] == "INV-1" &&
			record.ProcessedAt == "2024-06-01T12:00:00Z"
	})).Return(nil).Once()

	handler := createTestHandler(t, HandlerOptions{
		CustomConfig: cfg,
		Store:        storeWithResult(t),
		Registry:     readyRegistry(),
		Indexer:      indexer,
	})

	output, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
	require.NoError(t, err)
	assert.True(t, output.Indexed)
	indexer.AssertExpectations(t)
}

func TestHandler_Execute_IndexFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SearchEnabled = true

	indexer := &MockIndexer{}
	indexer.On("IndexDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("cluster red"))

	handler := createTestHandler(t, HandlerOptions{
		CustomConfig: cfg,
		Store:        storeWithResult(t),
		Registry:     readyRegistry(),
		Indexer:      indexer,
	})

	_, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
	requireCode(t, err, errors.ErrCodeSearchIndexingFailed)
}

func TestHandler_Execute_UsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	handler := createTestHandler(t, HandlerOptions{Store: storeWithResult(t), Registry: readyRegistry(), Cache: rdb})

	first, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := handler.Execute(context.Background(), &Input{ResultKey: resultKey})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.MatchedSupplier, second.MatchedSupplier)
}
