package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	doc := Document{
		"inference_result": map[string]interface{}{
			"Vendor": map[string]interface{}{"value": "Acme", "confidence": 0.9},
			"items":  []interface{}{},
			"lines":  []interface{}{map[string]interface{}{"amt": 1}},
			"tags":   []interface{}{"a", "b"},
		},
		"document_class":    map[string]interface{}{"type": "invoice"},
		"matched_blueprint": map[string]interface{}{"name": "bp-invoice", "confidence": 1},
	}

	got := Flatten(doc)
	assert.Equal(t, []FlatFieldEntry{
		{Field: "invoice.Vendor.value", Value: "Acme", Source: SourceExtraction},
		{Field: "invoice.items", Value: "[]", Source: SourceExtraction},
		{Field: "invoice.lines[0].amt", Value: "1", Source: SourceExtraction},
		{Field: "invoice.tags[0]", Value: "a", Source: SourceExtraction},
		{Field: "invoice.tags[1]", Value: "b", Source: SourceExtraction},
		{Field: "document_class", Value: "invoice", Source: SourceMetadata},
		{Field: "matched_blueprint", Value: "bp-invoice", Source: SourceMetadata},
	}, got)
}

func TestFlatten_MissingParts(t *testing.T) {
	assert.Empty(t, Flatten(Document{}))
	assert.Empty(t, Flatten(Document{"inference_result": "not an object"}))

	got := Flatten(Document{"document_class": map[string]interface{}{}})
	require.Len(t, got, 1)
	assert.Equal(t, FlatFieldEntry{Field: "document_class", Value: "", Source: SourceMetadata}, got[0])
}

func TestFieldNames(t *testing.T) {
	docs := []Document{
		{"inference_result": map[string]interface{}{"Vendor": map[string]interface{}{"value": "A"}, "Total": 1}},
		{"inference_result": map[string]interface{}{"Total": 2, "Date": "2024-01-01"}},
		{"document_class": map[string]interface{}{"type": "invoice"}},
		{"inference_result": nil},
		{},
	}
	assert.Equal(t, []string{"Date", "Total", "Vendor"}, FieldNames(docs))
}

func TestFormatFieldHeader(t *testing.T) {
	tests := map[string]string{
		"vendor_name":          "Vendor Name",
		"invoiceTotal":         "Invoice Total",
		"line_items_0_amount":  "Line Items 0 Amount",
		"  spaced__out  name ": "Spaced Out Name",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatFieldHeader(in), "input %q", in)
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"inference_result":{"Vendor":"A"},"document_class":{"type":"invoice"},"matched_blueprint":{"name":"bp","confidence":0.75}}`))
	require.NoError(t, err)
	assert.Equal(t, "invoice", doc.DocumentClass())

	name, conf, ok := doc.MatchedBlueprint()
	assert.True(t, ok)
	assert.Equal(t, "bp", name)
	assert.Equal(t, 0.75, conf)

	empty, err := ParseDocument([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = ParseDocument([]byte(`{"broken"`))
	assert.Error(t, err)
}

func TestRuleSet_Classify(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, CategoryMetadata, rules.Classify("vendor_confidence"))
	assert.Equal(t, CategoryVendor, rules.Classify("Vendor_Name"))
	assert.Equal(t, CategoryVendor, rules.Classify("BillFrom"))
	assert.Equal(t, CategoryData, rules.Classify("invoice_total"))

	assert.Equal(t, []string{
		"vendor", "vendorname", "vendor_name", "supplier_name", "company_name",
		"from", "bill_from", "seller", "seller_name",
	}, rules.Patterns(CategoryVendor))

	extended := rules.WithVendorPatterns("payee")
	assert.Len(t, extended, len(rules)+1)
	assert.Len(t, rules, 15, "original table must not change")
}
