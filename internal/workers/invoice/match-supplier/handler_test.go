package matchsupplier

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"invoice-workers/internal/common/config"
	"invoice-workers/internal/common/errors"
	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Registry Implementation
// ==========================

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
		ElementId:          "Activity_MatchSupplier",
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

func sampleSnapshot() *registry.Snapshot {
	return registry.NewSnapshot([]matching.SupplierRecord{
		{Code: "100", Name: "Acme Corporation"},
		{Code: "200", Name: "Globex Industries", AliasNames: []string{"Globex"}},
		{Code: "300", Name: "Initech LLC"},
		{Code: "400", Name: "Umbrella Pharmaceuticals"},
		{Code: "500", Name: "Vandelay Imports"},
		{Code: "600", Name: "Acme Widgets"},
		{Code: "700", Name: "Hooli"},
	}, "test", time.Now())
}

func createTestHandler(t *testing.T, reg SnapshotProvider) *Handler {
	handler, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Registry:     reg,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return handler
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supplier registry is required")

	bad := DefaultConfig()
	bad.Matching.FuzzyFloor = 120
	_, err = NewHandler(HandlerOptions{CustomConfig: bad, Registry: &MockRegistry{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fuzzy_floor")

	handler, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Registry: &MockRegistry{}})
	require.NoError(t, err)
	assert.Equal(t, TaskType, handler.GetTaskType())
	assert.Equal(t, 10, handler.WorkerOptions().MaxJobsActive)
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{
		Matching: config.MatchingConfig{TopN: 3, FuzzyFloor: 70, AcceptanceThreshold: 50},
	}
	cfg := createConfigFromAppConfig(appConfig, nil)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, matching.Options{TopN: 3, FuzzyFloor: 70, AcceptanceThreshold: 50}, cfg.Matching)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	handler := createTestHandler(t, &MockRegistry{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		want      *Input
		wantCode  errors.ErrorCode
	}{
		{
			name:      "vendor only",
			variables: map[string]interface{}{"vendorName": "Acme Corp"},
			want:      &Input{VendorName: "Acme Corp"},
		},
		{
			name:      "with topN",
			variables: map[string]interface{}{"vendorName": "Acme Corp", "topN": 2},
			want:      &Input{VendorName: "Acme Corp", TopN: 2},
		},
		{
			name:      "empty vendor is accepted",
			variables: map[string]interface{}{"vendorName": ""},
			want:      &Input{},
		},
		{
			name:      "missing vendor",
			variables: map[string]interface{}{},
			wantCode:  errors.ErrCodeValidationFailed,
		},
		{
			name:      "topN out of range",
			variables: map[string]interface{}{"vendorName": "Acme", "topN": 0},
			wantCode:  errors.ErrCodeValidationFailed,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := handler.parseInput(createMockJob(int64(i+1), tt.variables))
			if tt.wantCode != "" {
				require.Error(t, err)
				stdErr, ok := errors.AsStandardError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, stdErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	reg := &MockRegistry{}
	snap := sampleSnapshot()
	reg.On("Snapshot", mock.Anything).Return(snap, nil)
	handler := createTestHandler(t, reg)

	output, err := handler.Execute(context.Background(), &Input{VendorName: "  Acme Corp "})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", output.VendorName)
	assert.True(t, output.Matched)
	assert.False(t, output.ReviewRequired)
	require.NotNil(t, output.MatchedSupplier)
	assert.Equal(t, "100", output.MatchedSupplier.SupplierCode)
	assert.Equal(t, 72.0, output.MatchedSupplier.SimilarityScore)
	assert.Equal(t, matching.MatchFuzzy, output.MatchedSupplier.MatchType)
	assert.Len(t, output.TopMatches, 5)
	assert.Equal(t, snap.Version, output.RegistryVersion)
	assert.Equal(t, 7, output.RegistrySize)
	reg.AssertExpectations(t)
}

func TestHandler_Execute_TopNOverride(t *testing.T) {
	reg := &MockRegistry{}
	reg.On("Snapshot", mock.Anything).Return(sampleSnapshot(), nil)
	handler := createTestHandler(t, reg)

	output, err := handler.Execute(context.Background(), &Input{VendorName: "Acme Corp", TopN: 2})
	require.NoError(t, err)
	assert.Len(t, output.TopMatches, 2)
}

func TestHandler_Execute_NoMatch(t *testing.T) {
	reg := &MockRegistry{}
	reg.On("Snapshot", mock.Anything).Return(sampleSnapshot(), nil)
	handler := createTestHandler(t, reg)

	output, err := handler.Execute(context.Background(), &Input{VendorName: "Zzzznonexistent"})
	require.NoError(t, err)
	assert.False(t, output.Matched)
	assert.True(t, output.ReviewRequired)
	assert.Nil(t, output.MatchedSupplier)

	output, err = handler.Execute(context.Background(), &Input{VendorName: ""})
	require.NoError(t, err)
	assert.True(t, output.ReviewRequired)
	assert.Empty(t, output.TopMatches)
}

func TestHandler_Execute_RegistryErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode errors.ErrorCode
	}{
		{"missing list", fmt.Errorf("%w: SupplierList.csv", registry.ErrNotFound), errors.ErrCodeSupplierRegistryNotFound},
		{"placeholder list", registry.ErrPlaceholder, errors.ErrCodeSupplierRegistryNotFound},
		{"read failure", fmt.Errorf("access denied"), errors.ErrCodeSupplierRegistryLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &MockRegistry{}
			reg.On("Snapshot", mock.Anything).Return(nil, tt.err)
			handler := createTestHandler(t, reg)

			_, err := handler.Execute(context.Background(), &Input{VendorName: "Acme"})
			require.Error(t, err)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}
