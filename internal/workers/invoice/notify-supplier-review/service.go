package notifysupplierreview

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"invoice-workers/internal/matching"
)

// reviewReason reports why input needs a person to pick the supplier, or ""
// when the accepted match can stand.
func reviewReason(input *Input, lowConfidence float64) string {
	switch {
	case strings.TrimSpace(input.VendorName) == "":
		return ReasonNoVendor
	case input.MatchedSupplier == nil:
		return ReasonUnmatched
	case input.MatchedSupplier.MatchType != matching.MatchExact &&
		input.MatchedSupplier.SimilarityScore < lowConfidence:
		return ReasonLowConfidence
	default:
		return ""
	}
}

func documentName(input *Input) string {
	if input.FileName != "" {
		return input.FileName
	}
	return path.Base(input.EnhancedKey)
}

func (h *Handler) buildSubject(input *Input, reason string) string {
	var what string
	switch reason {
	case ReasonNoVendor:
		what = "no vendor found"
	case ReasonUnmatched:
		what = fmt.Sprintf("no supplier for %q", input.VendorName)
	default:
		what = fmt.Sprintf("low confidence match for %q", input.VendorName)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s in %s", h.config.SubjectPrefix, what, documentName(input)))
}

func (h *Handler) candidates(input *Input) []matching.SupplierMatch {
	if len(input.TopMatches) <= h.config.MaxCandidates {
		return input.TopMatches
	}
	return input.TopMatches[:h.config.MaxCandidates]
}

func (h *Handler) buildEmailBody(input *Input, reason string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Document: %s\n", documentName(input))
	if input.EnhancedKey != "" {
		fmt.Fprintf(&b, "Enriched result: %s\n", input.EnhancedKey)
	}
	if input.VendorName != "" {
		fmt.Fprintf(&b, "Extracted vendor: %s\n", input.VendorName)
	} else {
		b.WriteString("Extracted vendor: (none)\n")
	}
	fmt.Fprintf(&b, "Reason: %s\n", reason)

	if m := input.MatchedSupplier; m != nil {
		fmt.Fprintf(&b, "\nAccepted match: %s %s (%.0f%%, %s)\n", m.SupplierCode, m.SupplierName, m.SimilarityScore, m.MatchType)
	}

	candidates := h.candidates(input)
	if len(candidates) == 0 {
		b.WriteString("\nNo supplier candidates were found.\n")
		return b.String()
	}
	b.WriteString("\nCandidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s %s (%.0f%%, %s)\n", i+1, c.SupplierCode, c.SupplierName, c.SimilarityScore, c.MatchType)
	}
	return b.String()
}

func (h *Handler) buildTopicMessage(input *Input, reason string) (string, error) {
	candidates := h.candidates(input)
	if candidates == nil {
		candidates = []matching.SupplierMatch{}
	}
	data, err := json.Marshal(ReviewMessage{
		Reason:          reason,
		FileName:        documentName(input),
		EnhancedKey:     input.EnhancedKey,
		VendorName:      input.VendorName,
		MatchedSupplier: input.MatchedSupplier,
		Candidates:      candidates,
	})
	if err != nil {
		return "", fmt.Errorf("encode review message: %w", err)
	}
	return string(data), nil
}
