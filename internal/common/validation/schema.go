package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const rootField = "(root)"

// JSONSchema describes the job variables a worker accepts.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties,omitempty"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        string              `json:"type,omitempty"`
	Description string              `json:"description,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	MinItems    *int                `json:"minItems,omitempty"`
	Format      string              `json:"format,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput checks job variables against schema.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	if input == nil {
		input = map[string]interface{}{}
	}
	return validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
}

// ValidateDocument checks an arbitrary decoded JSON value against a raw
// JSON Schema document.
func ValidateDocument(schemaJSON string, doc interface{}) *ValidationResult {
	return validate(gojsonschema.NewStringLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
}

func validate(schema, doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   rootField,
			Message: err.Error(),
			Code:    "SCHEMA_ERROR",
		}}}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				switch {
				case field == rootField:
					field = prop
				case field != prop && !strings.HasSuffix(field, "."+prop):
					field = field + "." + prop
				}
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// GetSchemaFromJSON parses a schema definition.
func GetSchemaFromJSON(schemaJSON string) (JSONSchema, error) {
	var schema JSONSchema
	err := json.Unmarshal([]byte(schemaJSON), &schema)
	return schema, err
}

// GetErrorMessages returns one "field: message" line per error.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors reports whether field, or anything nested under it, failed.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

func IntPtr(i int) *int {
	return &i
}

func FloatPtr(f float64) *float64 {
	return &f
}
