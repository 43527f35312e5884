package extractinvoicefields

import (
	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/extraction"
)

type Input struct {
	Document extraction.Document `json:"document"`
	FileName string              `json:"fileName,omitempty"`
}

type Output struct {
	FileName            string                      `json:"fileName,omitempty"`
	Fields              map[string]string           `json:"fields"`
	FieldNames          []string                    `json:"fieldNames"`
	FieldCount          int                         `json:"fieldCount"`
	VendorName          string                      `json:"vendorName"`
	VendorFound         bool                        `json:"vendorFound"`
	DocumentClass       string                      `json:"documentClass,omitempty"`
	MatchedBlueprint    string                      `json:"matchedBlueprint,omitempty"`
	BlueprintConfidence float64                     `json:"blueprintConfidence,omitempty"`
	DisplayFields       []extraction.FlatFieldEntry `json:"displayFields"`
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"document"},
		Properties: map[string]validation.Property{
			"document": {
				Type:        "object",
				Description: "Extraction result as produced by the document extraction service",
			},
			"fileName": {
				Type:        "string",
				Description: "Name of the uploaded document",
				MaxLength:   validation.IntPtr(1024),
			},
		},
		AdditionalProperties: true,
	}
}
