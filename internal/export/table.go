// Package export renders batches of enriched extraction results as
// spreadsheets.
package export

import (
	"sort"

	"invoice-workers/internal/enrichment"
	"invoice-workers/internal/extraction"
)

// Supplier columns added when at least one document carries them.
const (
	ColumnMatchedSupplierCode = "matched_supplier_code"
	ColumnMatchedSupplierName = "matched_supplier_name"
	ColumnVendorNameExtracted = "vendor_name_extracted"
)

// Item is one document in an export batch.
type Item struct {
	FileName string
	Document extraction.Document
}

// Table is the rendered batch. Fields and Headers are parallel; every row
// has len(Fields) cells.
type Table struct {
	Fields  []string
	Headers []string
	Rows    [][]string
}

// Exporter builds tables with a configured extractor.
type Exporter struct {
	extractor *extraction.Extractor
}

func New(extractor *extraction.Extractor) *Exporter {
	if extractor == nil {
		extractor = extraction.New()
	}
	return &Exporter{extractor: extractor}
}

// BuildTable discovers the union of field names across items, sorted, and
// renders one row per item. Missing cells are empty strings.
func (e *Exporter) BuildTable(items []Item) Table {
	type row struct {
		fields *extraction.Fields
		block  enrichment.SupplierMatchBlock
	}

	seen := make(map[string]struct{})
	rows := make([]row, 0, len(items))
	for _, item := range items {
		fields := e.extractor.ExtractAll(item.Document.InferenceResult())
		for _, name := range fields.Names() {
			seen[name] = struct{}{}
		}

		block, _ := enrichment.BlockFromDocument(item.Document)
		if block.MatchedSupplier != nil {
			seen[ColumnMatchedSupplierCode] = struct{}{}
			seen[ColumnMatchedSupplierName] = struct{}{}
		}
		if block.VendorNameExtracted != "" {
			seen[ColumnVendorNameExtracted] = struct{}{}
		}
		rows = append(rows, row{fields: fields, block: block})
	}

	table := Table{Fields: make([]string, 0, len(seen))}
	for name := range seen {
		table.Fields = append(table.Fields, name)
	}
	sort.Strings(table.Fields)

	table.Headers = make([]string, len(table.Fields))
	for i, name := range table.Fields {
		table.Headers[i] = extraction.FormatFieldHeader(name)
	}

	table.Rows = make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(table.Fields))
		for j, name := range table.Fields {
			cells[j] = cellValue(name, r.fields, r.block)
		}
		table.Rows[i] = cells
	}
	return table
}

func cellValue(name string, fields *extraction.Fields, block enrichment.SupplierMatchBlock) string {
	switch name {
	case ColumnMatchedSupplierCode:
		if block.MatchedSupplier != nil {
			return block.MatchedSupplier.SupplierCode
		}
		return ""
	case ColumnMatchedSupplierName:
		if block.MatchedSupplier != nil {
			return block.MatchedSupplier.SupplierName
		}
		return ""
	case ColumnVendorNameExtracted:
		return block.VendorNameExtracted
	}
	value, _ := fields.Get(name)
	return value
}

var defaultExporter = New(nil)

// BuildTable uses the default extractor.
func BuildTable(items []Item) Table {
	return defaultExporter.BuildTable(items)
}
