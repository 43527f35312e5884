package enrichextractionresult

import (
	"context"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/extraction"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"
)

type Input struct {
	ResultKey      string              `json:"resultKey,omitempty"`
	Document       extraction.Document `json:"document,omitempty"`
	FileName       string              `json:"fileName,omitempty"`
	FallbackVendor string              `json:"fallbackVendor,omitempty"`
	OutputKey      string              `json:"outputKey,omitempty"`
}

type Output struct {
	FileName        string                   `json:"fileName,omitempty"`
	ResultKey       string                   `json:"resultKey,omitempty"`
	EnhancedKey     string                   `json:"enhancedKey"`
	VendorName      string                   `json:"vendorName"`
	MatchedSupplier *matching.SupplierMatch  `json:"matchedSupplier"`
	TopMatches      []matching.SupplierMatch `json:"topMatches"`
	ReviewRequired  bool                     `json:"reviewRequired"`
	DocumentClass   string                   `json:"documentClass,omitempty"`
	RegistryVersion string                   `json:"registryVersion"`
	Cached          bool                     `json:"cached"`
	Indexed         bool                     `json:"indexed"`
}

// SearchRecord is the summary of an enriched result kept in the search index.
type SearchRecord struct {
	FileName        string            `json:"file_name,omitempty"`
	ResultKey       string            `json:"result_key,omitempty"`
	EnhancedKey     string            `json:"enhanced_key"`
	DocumentClass   string            `json:"document_class,omitempty"`
	VendorName      string            `json:"vendor_name"`
	SupplierCode    string            `json:"supplier_code,omitempty"`
	SupplierName    string            `json:"supplier_name,omitempty"`
	SimilarityScore float64           `json:"similarity_score,omitempty"`
	MatchType       string            `json:"match_type,omitempty"`
	ReviewRequired  bool              `json:"review_required"`
	RegistryVersion string            `json:"registry_version"`
	Fields          map[string]string `json:"fields"`
	ProcessedAt     string            `json:"processed_at"`
}

// ObjectStore reads extraction results and writes enriched ones.
type ObjectStore interface {
	Get(ctx context.Context, key string) (*aws.Object, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// SnapshotProvider serves the current supplier registry.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*registry.Snapshot, error)
}

// Indexer stores a document in a search index.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"resultKey": {
				Type:        "string",
				Description: "Storage key of the extraction result",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(1024),
			},
			"document": {
				Type:        "object",
				Description: "Extraction result passed inline instead of by key",
			},
			"fileName": {
				Type:        "string",
				Description: "Name of the uploaded document",
				MaxLength:   validation.IntPtr(1024),
			},
			"fallbackVendor": {
				Type:        "string",
				Description: "Vendor name used when none can be extracted",
				MaxLength:   validation.IntPtr(500),
			},
			"outputKey": {
				Type:        "string",
				Description: "Storage key for the enriched result",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(1024),
			},
		},
		AdditionalProperties: true,
	}
}
