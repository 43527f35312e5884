package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"
)

const supplierCSV = `Supplier,Name 1,Name 2
100,Acme Corporation,
200,Globex,Industries
300,Initech LLC,
`

func writeTemp(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_ValidateFile(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run("validate", []string{"-file", writeTemp(t, "s.csv", supplierCSV)}, &out))
	assert.Contains(t, out.String(), "Found 3 suppliers")

	err := run("validate", []string{"-file", writeTemp(t, "p.csv", registry.PlaceholderMarker+"\n")}, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrPlaceholder)

	err = run("validate", []string{"-file", writeTemp(t, "e.csv", "Supplier,Name 1\n")}, &out)
	assert.ErrorIs(t, err, registry.ErrEmpty)
}

func TestRun_Match(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run("match", []string{
		"-file", writeTemp(t, "s.csv", supplierCSV),
		"-vendor", "Globex",
		"-top", "2",
	}, &out))

	var result matching.MatchResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.NotNil(t, result.BestMatch)
	assert.Equal(t, "200", result.BestMatch.SupplierCode)
	assert.Equal(t, matching.MatchExact, result.BestMatch.MatchType)
	assert.Len(t, result.TopMatches, 2)

	assert.Error(t, run("match", []string{"-vendor", "Globex"}, &out))
}

func TestRun_Extract(t *testing.T) {
	doc := `{
  "inference_result": {"vendor_name": {"value": "Acme Corp"}, "invoice_number": "INV-1"},
  "document_class": {"type": "invoice"}
}`
	var out bytes.Buffer
	require.NoError(t, run("extract", []string{"-file", writeTemp(t, "r.json", doc)}, &out))

	var report extractReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "Acme Corp", report.Vendor)
	assert.True(t, report.VendorFound)
	assert.NotEmpty(t, report.Fields)

	assert.Error(t, run("extract", []string{"-file", writeTemp(t, "bad.json", "{")}, &out))
}

func TestRun_Unknown(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run("rename", nil, &out))
	assert.Contains(t, out.String(), "Usage: supplier-registry")

	out.Reset()
	require.NoError(t, run("help", nil, &out))
	assert.Contains(t, out.String(), "upload")
}
