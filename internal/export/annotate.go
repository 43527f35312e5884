package export

import (
	"encoding/json"
	"io"
	"time"

	"invoice-workers/internal/enrichment"
	"invoice-workers/internal/extraction"
)

// Keys added to a document prepared for export.
const (
	KeyFileName      = "fileName"
	KeyProcessedDate = "processedDate"

	keySupplierMatchType       = "supplier_match_type"
	keySupplierMatchSimilarity = "supplier_match_similarity"
)

// AnnotateForExport returns a copy of doc with the file name and processing
// date attached. When a supplier was matched, its code, name, match type and
// score are also copied into inference_result for consumers that only read
// extracted fields. An empty processedDate means today (UTC).
func AnnotateForExport(doc extraction.Document, fileName, processedDate string) extraction.Document {
	out := doc.Clone()
	out[KeyFileName] = fileName
	if processedDate == "" {
		processedDate = time.Now().UTC().Format("2006-01-02")
	}
	out[KeyProcessedDate] = processedDate

	block, ok := enrichment.BlockFromDocument(doc)
	if !ok || block.MatchedSupplier == nil {
		return out
	}
	inference, ok := doc.InferenceResult().(map[string]interface{})
	if !ok {
		return out
	}

	annotated := make(map[string]interface{}, len(inference)+4)
	for k, v := range inference {
		annotated[k] = v
	}
	annotated[ColumnMatchedSupplierCode] = block.MatchedSupplier.SupplierCode
	annotated[ColumnMatchedSupplierName] = block.MatchedSupplier.SupplierName
	annotated[keySupplierMatchType] = string(block.MatchedSupplier.MatchType)
	annotated[keySupplierMatchSimilarity] = block.MatchedSupplier.SimilarityScore
	out[extraction.KeyInferenceResult] = annotated
	return out
}

// WriteJSON writes items as an indented JSON array of annotated documents.
func WriteJSON(w io.Writer, items []Item, processedDate string) error {
	docs := make([]extraction.Document, len(items))
	for i, item := range items {
		docs[i] = AnnotateForExport(item.Document, item.FileName, processedDate)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
