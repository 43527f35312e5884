package enrichment

import (
	"encoding/json"
	"fmt"

	"invoice-workers/internal/common/validation"
	"invoice-workers/internal/extraction"
)

// OutputSchema is the contract downstream consumers rely on for an
// enriched extraction result.
const OutputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["supplier_match"],
  "properties": {
    "inference_result": {"type": ["object", "array", "string", "number", "boolean", "null"]},
    "document_class": {
      "type": "object",
      "properties": {"type": {"type": "string"}}
    },
    "matched_blueprint": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "confidence": {"type": "number"}
      }
    },
    "supplier_match": {
      "type": "object",
      "required": ["vendor_name_extracted", "matched_supplier", "top_matches"],
      "properties": {
        "vendor_name_extracted": {"type": "string"},
        "matched_supplier": {
          "oneOf": [
            {"type": "null"},
            {"$ref": "#/definitions/match"}
          ]
        },
        "top_matches": {
          "type": "array",
          "items": {"$ref": "#/definitions/match"}
        }
      }
    }
  },
  "definitions": {
    "match": {
      "type": "object",
      "required": ["supplier_code", "supplier_name", "similarity_score", "match_type"],
      "properties": {
        "supplier_code": {"type": "string"},
        "supplier_name": {"type": "string"},
        "similarity_score": {"type": "number", "minimum": 0, "maximum": 100},
        "match_type": {"enum": ["exact", "fuzzy", "partial"]},
        "vendor_name_extracted": {"type": "string"}
      }
    }
  }
}`

// ValidateOutput checks an enriched document against OutputSchema.
func ValidateOutput(doc extraction.Document) *validation.ValidationResult {
	return validation.ValidateDocument(OutputSchema, map[string]interface{}(doc))
}

// BlockFromDocument reads the supplier_match block back from a document,
// whether it was attached in process or decoded from JSON.
func BlockFromDocument(doc extraction.Document) (SupplierMatchBlock, bool) {
	switch v := doc[extraction.KeySupplierMatch].(type) {
	case SupplierMatchBlock:
		return v, true
	case *SupplierMatchBlock:
		if v == nil {
			return SupplierMatchBlock{}, false
		}
		return *v, true
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return SupplierMatchBlock{}, false
		}
		var block SupplierMatchBlock
		if err := json.Unmarshal(data, &block); err != nil {
			return SupplierMatchBlock{}, false
		}
		return block, true
	default:
		return SupplierMatchBlock{}, false
	}
}

// Marshal encodes an enriched document.
func Marshal(doc extraction.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode enriched result: %w", err)
	}
	return data, nil
}
