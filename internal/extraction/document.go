package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Well-known keys of a document-extraction result.
const (
	KeyInferenceResult  = "inference_result"
	KeyDocumentClass    = "document_class"
	KeyMatchedBlueprint = "matched_blueprint"
	KeySupplierMatch    = "supplier_match"

	valueKey  = "value"
	fieldsKey = "fields"
)

// Document is one decoded extraction result. Keys other than the well-known
// ones are carried through untouched.
type Document map[string]interface{}

// ParseDocument decodes raw JSON into a Document.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode extraction result: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// InferenceResult returns the schema-free extracted tree, or nil.
func (d Document) InferenceResult() interface{} {
	return d[KeyInferenceResult]
}

// DocumentClass returns document_class.type.
func (d Document) DocumentClass() string {
	return nestedString(d[KeyDocumentClass], "type")
}

// MatchedBlueprint returns matched_blueprint.name and its confidence when present.
func (d Document) MatchedBlueprint() (string, float64, bool) {
	bp, ok := asMap(d[KeyMatchedBlueprint])
	if !ok {
		return "", 0, false
	}
	conf, _ := toFloat(bp["confidence"])
	return Stringify(bp["name"]), conf, true
}

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	out := make(Document, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}

func nestedString(node interface{}, key string) string {
	m, ok := asMap(node)
	if !ok {
		return ""
	}
	return Stringify(m[key])
}

func asMap(node interface{}) (map[string]interface{}, bool) {
	switch m := node.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return map[string]interface{}(m), true
	default:
		return nil, false
	}
}

func asSlice(node interface{}) ([]interface{}, bool) {
	switch s := node.(type) {
	case []interface{}:
		return s, true
	case []map[string]interface{}:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []string:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Stringify renders a leaf as text. null is empty, objects and arrays become
// JSON, and anything unexpected goes through fmt rather than failing.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case map[string]interface{}, Document, []interface{}, []map[string]interface{}, []string:
		return toJSON(t)
	default:
		return fmt.Sprint(t)
	}
}

func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func isScalar(v interface{}) bool {
	if _, ok := asMap(v); ok {
		return false
	}
	if _, ok := asSlice(v); ok {
		return false
	}
	return true
}

func joinScalars(items []interface{}) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, Stringify(it))
	}
	return strings.Join(parts, ", ")
}
