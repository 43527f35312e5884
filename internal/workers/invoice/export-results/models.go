package exportresults

import (
	"context"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/validation"
)

// ResultRef points at one enriched result to export.
type ResultRef struct {
	Key      string `json:"key"`
	FileName string `json:"fileName,omitempty"`
}

type Input struct {
	Results       []ResultRef `json:"results"`
	Format        string      `json:"format,omitempty"`
	ProcessedDate string      `json:"processedDate,omitempty"`
}

type Output struct {
	ExportID    string   `json:"exportId"`
	ExportKey   string   `json:"exportKey"`
	Format      string   `json:"format"`
	RowCount    int      `json:"rowCount"`
	ColumnCount int      `json:"columnCount"`
	Skipped     []string `json:"skipped"`
	SizeBytes   int      `json:"sizeBytes"`
}

// ObjectStore reads enriched results and writes the export file.
type ObjectStore interface {
	Get(ctx context.Context, key string) (*aws.Object, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

func GetInputSchema() validation.JSONSchema {
	datePattern := `^\d{4}-\d{2}-\d{2}$`
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"results"},
		Properties: map[string]validation.Property{
			"results": {
				Type:        "array",
				Description: "Enriched results to include, in row order",
				MinItems:    validation.IntPtr(1),
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"key"},
					Properties: map[string]validation.Property{
						"key":      {Type: "string", MinLength: validation.IntPtr(1)},
						"fileName": {Type: "string"},
					},
				},
			},
			"format": {
				Type:        "string",
				Description: "Output format",
				Enum:        []string{FormatCSV, FormatXLSX, FormatJSON},
			},
			"processedDate": {
				Type:        "string",
				Description: "Processing date written into JSON exports",
				Pattern:     &datePattern,
			},
		},
		AdditionalProperties: true,
	}
}
