// Package matching ranks supplier registry records against an extracted
// vendor name.
package matching

import "sort"

// MatchType grades a similarity score.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchFuzzy   MatchType = "fuzzy"
	MatchPartial MatchType = "partial"
)

const (
	DefaultTopN                = 5
	DefaultFuzzyFloor          = 60.0
	DefaultAcceptanceThreshold = 40.0
)

// SupplierRecord is one registry row.
type SupplierRecord struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	AliasNames []string `json:"alias_names,omitempty"`
}

// SupplierMatch is one ranked candidate.
type SupplierMatch struct {
	SupplierCode        string    `json:"supplier_code"`
	SupplierName        string    `json:"supplier_name"`
	SimilarityScore     float64   `json:"similarity_score"`
	MatchType           MatchType `json:"match_type"`
	VendorNameExtracted string    `json:"vendor_name_extracted,omitempty"`
}

// MatchResult is the outcome of matching one vendor name. BestMatch, when
// set, equals TopMatches[0]. TopMatches is never nil.
type MatchResult struct {
	Vendor     string          `json:"vendor"`
	BestMatch  *SupplierMatch  `json:"best_match"`
	TopMatches []SupplierMatch `json:"top_matches"`
}

// Options tunes ranking. Scores are on the 0-100 scale.
type Options struct {
	TopN                int     `json:"top_n"`
	FuzzyFloor          float64 `json:"fuzzy_floor"`
	AcceptanceThreshold float64 `json:"acceptance_threshold"`
}

func DefaultOptions() Options {
	return Options{
		TopN:                DefaultTopN,
		FuzzyFloor:          DefaultFuzzyFloor,
		AcceptanceThreshold: DefaultAcceptanceThreshold,
	}
}

func (o Options) classify(score float64) MatchType {
	switch {
	case score >= 100:
		return MatchExact
	case score >= o.FuzzyFloor:
		return MatchFuzzy
	default:
		return MatchPartial
	}
}

// Match ranks every registry record against vendor. A nil opts uses
// DefaultOptions; a non-positive TopN keeps every record.
//
// Each record scores the best Similarity over its name and aliases. Records
// are sorted by score, highest first, with registry order breaking ties.
// BestMatch is set only when the top score reaches the acceptance threshold.
// An empty vendor or registry yields an empty result, never an error.
func Match(vendor string, registry []SupplierRecord, opts *Options) MatchResult {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}

	result := MatchResult{Vendor: vendor, TopMatches: []SupplierMatch{}}

	normalized := Normalize(vendor)
	if normalized == "" || len(registry) == 0 {
		return result
	}

	candidates := make([]SupplierMatch, 0, len(registry))
	for _, rec := range registry {
		score := similarityNormalized(normalized, Normalize(rec.Name))
		for _, alias := range rec.AliasNames {
			if score >= 100 {
				break
			}
			if s := similarityNormalized(normalized, Normalize(alias)); s > score {
				score = s
			}
		}
		candidates = append(candidates, SupplierMatch{
			SupplierCode:        rec.Code,
			SupplierName:        rec.Name,
			SimilarityScore:     score,
			MatchType:           o.classify(score),
			VendorNameExtracted: vendor,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})
	if o.TopN > 0 && len(candidates) > o.TopN {
		candidates = candidates[:o.TopN]
	}
	result.TopMatches = candidates

	if top := candidates[0]; top.SimilarityScore >= o.AcceptanceThreshold {
		result.BestMatch = &top
	}
	return result
}

// Matcher binds Options for repeated use. It holds no mutable state.
type Matcher struct {
	opts Options
}

func NewMatcher(opts Options) *Matcher {
	return &Matcher{opts: opts}
}

func (m *Matcher) Options() Options {
	return m.opts
}

func (m *Matcher) Match(vendor string, registry []SupplierRecord) MatchResult {
	opts := m.opts
	return Match(vendor, registry, &opts)
}
