package extraction

import "strings"

// FieldCategory classifies a flattened field name.
type FieldCategory string

const (
	// CategoryMetadata marks provenance and quality annotations that are not
	// business data. Fields in this category are dropped during extraction.
	CategoryMetadata FieldCategory = "metadata"
	// CategoryVendor marks fields that may hold the invoice issuer's name.
	CategoryVendor FieldCategory = "vendor"
	// CategoryData is every other field.
	CategoryData FieldCategory = "data"
)

// FieldRule matches field names containing Pattern, case-insensitively.
type FieldRule struct {
	Pattern  string
	Category FieldCategory
}

// RuleSet is an ordered rule table. Order matters for vendor rules: earlier
// patterns win when several fields could name the vendor.
type RuleSet []FieldRule

// DefaultRules returns the built-in exclusion and vendor rules.
func DefaultRules() RuleSet {
	return RuleSet{
		{Pattern: "confidence", Category: CategoryMetadata},
		{Pattern: "similarity", Category: CategoryMetadata},
		{Pattern: "score", Category: CategoryMetadata},
		{Pattern: "match_type", Category: CategoryMetadata},
		{Pattern: "alternatives", Category: CategoryMetadata},
		{Pattern: "top_matches", Category: CategoryMetadata},

		{Pattern: "vendor", Category: CategoryVendor},
		{Pattern: "vendorname", Category: CategoryVendor},
		{Pattern: "vendor_name", Category: CategoryVendor},
		{Pattern: "supplier_name", Category: CategoryVendor},
		{Pattern: "company_name", Category: CategoryVendor},
		{Pattern: "from", Category: CategoryVendor},
		{Pattern: "bill_from", Category: CategoryVendor},
		{Pattern: "seller", Category: CategoryVendor},
		{Pattern: "seller_name", Category: CategoryVendor},
	}
}

// WithVendorPatterns returns a copy of r with extra vendor patterns appended
// after the existing ones. Blank and duplicate patterns are ignored.
func (r RuleSet) WithVendorPatterns(patterns ...string) RuleSet {
	out := make(RuleSet, len(r), len(r)+len(patterns))
	copy(out, r)

	seen := make(map[string]bool, len(r))
	for _, rule := range r {
		if rule.Category == CategoryVendor {
			seen[rule.Pattern] = true
		}
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, FieldRule{Pattern: p, Category: CategoryVendor})
	}
	return out
}

// Patterns returns the patterns of category c in table order.
func (r RuleSet) Patterns(c FieldCategory) []string {
	var out []string
	for _, rule := range r {
		if rule.Category == c {
			out = append(out, rule.Pattern)
		}
	}
	return out
}

// Excluded reports whether name matches any metadata rule.
func (r RuleSet) Excluded(name string) bool {
	lower := strings.ToLower(name)
	for _, rule := range r {
		if rule.Category == CategoryMetadata && strings.Contains(lower, rule.Pattern) {
			return true
		}
	}
	return false
}

// Classify returns the category of the first rule matching name, or
// CategoryData when none does. Metadata rules are checked first so a name
// such as "vendor_confidence" is never mistaken for a vendor field.
func (r RuleSet) Classify(name string) FieldCategory {
	if r.Excluded(name) {
		return CategoryMetadata
	}
	lower := strings.ToLower(name)
	for _, rule := range r {
		if rule.Category == CategoryVendor && strings.Contains(lower, rule.Pattern) {
			return CategoryVendor
		}
	}
	return CategoryData
}
