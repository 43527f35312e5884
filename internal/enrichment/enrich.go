// Package enrichment attaches a supplier match to an extraction result.
package enrichment

import (
	"strings"

	"invoice-workers/internal/extraction"
	"invoice-workers/internal/matching"
)

// SupplierMatchBlock is stored under the supplier_match key of an enriched
// document.
type SupplierMatchBlock struct {
	VendorNameExtracted string                   `json:"vendor_name_extracted"`
	MatchedSupplier     *matching.SupplierMatch  `json:"matched_supplier"`
	TopMatches          []matching.SupplierMatch `json:"top_matches"`
}

// ReviewRequired reports whether a person has to pick the supplier.
func (b SupplierMatchBlock) ReviewRequired() bool {
	return b.MatchedSupplier == nil
}

// Enricher combines vendor extraction with supplier matching.
type Enricher struct {
	extractor *extraction.Extractor
	matcher   *matching.Matcher
}

func NewEnricher(extractor *extraction.Extractor, matcher *matching.Matcher) *Enricher {
	if extractor == nil {
		extractor = extraction.New()
	}
	if matcher == nil {
		matcher = matching.NewMatcher(matching.DefaultOptions())
	}
	return &Enricher{extractor: extractor, matcher: matcher}
}

// Enrich extracts the vendor from doc, matches it against records and
// returns a copy of doc carrying the result under supplier_match. doc is
// not modified. fallbackVendor is used when no vendor can be extracted.
func (e *Enricher) Enrich(doc extraction.Document, records []matching.SupplierRecord, fallbackVendor string) (extraction.Document, SupplierMatchBlock) {
	block := e.Match(doc, records, fallbackVendor)

	out := doc.Clone()
	out[extraction.KeySupplierMatch] = block
	return out, block
}

// Match computes the supplier_match block without copying doc.
func (e *Enricher) Match(doc extraction.Document, records []matching.SupplierRecord, fallbackVendor string) SupplierMatchBlock {
	vendor := e.VendorName(doc)
	if vendor == "" {
		vendor = strings.TrimSpace(fallbackVendor)
	}

	block := SupplierMatchBlock{
		VendorNameExtracted: vendor,
		TopMatches:          []matching.SupplierMatch{},
	}
	if vendor == "" {
		return block
	}

	result := e.matcher.Match(vendor, records)
	block.MatchedSupplier = result.BestMatch
	block.TopMatches = result.TopMatches
	return block
}

// VendorName extracts the vendor from inference_result, or from the whole
// document when it has no inference_result.
func (e *Enricher) VendorName(doc extraction.Document) string {
	node := doc.InferenceResult()
	if node == nil {
		node = map[string]interface{}(doc)
	}
	vendor, _ := e.extractor.ExtractVendorName(node)
	return vendor
}

var defaultEnricher = NewEnricher(nil, nil)

// Enrich uses the default extractor and opts, or the default options when
// opts is nil.
func Enrich(doc extraction.Document, records []matching.SupplierRecord, opts *matching.Options, fallbackVendor string) (extraction.Document, SupplierMatchBlock) {
	if opts == nil {
		return defaultEnricher.Enrich(doc, records, fallbackVendor)
	}
	return NewEnricher(nil, matching.NewMatcher(*opts)).Enrich(doc, records, fallbackVendor)
}
