package awaitextractionresult

import (
	"time"

	"invoice-workers/internal/common/validation"
)

type Input struct {
	FileName   string        `json:"fileName"`
	UploadTime time.Time     `json:"uploadTime,omitempty"`
	MaxWait    time.Duration `json:"maxWait,omitempty"`
}

type Output struct {
	FileName       string    `json:"fileName"`
	ResultKey      string    `json:"resultKey"`
	ResultFileName string    `json:"resultFileName"`
	LastModified   time.Time `json:"lastModified"`
	Waited         string    `json:"waited"`
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"fileName"},
		Properties: map[string]validation.Property{
			"fileName": {
				Type:        "string",
				Description: "Name of the uploaded document",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(1024),
			},
			"uploadTime": {
				Type:        "string",
				Description: "RFC 3339 time the document was uploaded",
				Format:      "date-time",
			},
			"maxWait": {
				Type:        "integer",
				Description: "Longest wait for the result, in milliseconds",
				Minimum:     validation.FloatPtr(1),
			},
		},
		AdditionalProperties: true,
	}
}
