package matchsupplier

import (
	"context"

	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"
)

type Input struct {
	VendorName string `json:"vendorName"`
	TopN       int    `json:"topN,omitempty"`
}

type Output struct {
	VendorName      string                   `json:"vendorName"`
	Matched         bool                     `json:"matched"`
	MatchedSupplier *matching.SupplierMatch  `json:"matchedSupplier"`
	TopMatches      []matching.SupplierMatch `json:"topMatches"`
	ReviewRequired  bool                     `json:"reviewRequired"`
	RegistryVersion string                   `json:"registryVersion"`
	RegistrySize    int                      `json:"registrySize"`
}

// SnapshotProvider serves the current supplier registry.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*registry.Snapshot, error)
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"vendorName"},
		Properties: map[string]validation.Property{
			"vendorName": {
				Type:        "string",
				Description: "Vendor name read from the invoice",
				MaxLength:   validation.IntPtr(500),
			},
			"topN": {
				Type:        "integer",
				Description: "Number of ranked candidates to return",
				Minimum:     validation.FloatPtr(1),
				Maximum:     validation.FloatPtr(50),
			},
		},
		AdditionalProperties: true,
	}
}
