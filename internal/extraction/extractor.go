// Package extraction discovers fields in schema-free document-extraction
// results and picks out the most plausible vendor name.
package extraction

import (
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultMaxDepth is the path length at which a mapping without a value
	// wrapper stops being flattened and is kept as a JSON string instead.
	DefaultMaxDepth = 3

	// PathSeparator joins path segments in ExtractAll field names.
	PathSeparator = "_"

	// rootName names a leaf found at the root of the tree.
	rootName = "value"
)

// Extractor flattens trees according to a rule table. The zero value is not
// usable; construct with New. An Extractor is immutable and safe for
// concurrent use.
type Extractor struct {
	rules    RuleSet
	maxDepth int
}

type Option func(*Extractor)

// WithRules replaces the rule table.
func WithRules(rules RuleSet) Option {
	return func(e *Extractor) {
		e.rules = rules
	}
}

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Extractor) {
		if depth >= 1 {
			e.maxDepth = depth
		}
	}
}

// WithExtraVendorPatterns appends vendor patterns below the built-in ones.
func WithExtraVendorPatterns(patterns ...string) Option {
	return func(e *Extractor) {
		e.rules = e.rules.WithVendorPatterns(patterns...)
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		rules:    DefaultRules(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the extractor's rule table.
func (e *Extractor) Rules() RuleSet {
	return e.rules
}

type frame struct {
	node interface{}
	path []string
	key  string
}

func (f frame) child(node interface{}, segment string, isIndex bool) frame {
	path := make([]string, len(f.path), len(f.path)+1)
	copy(path, f.path)
	key := segment
	if isIndex {
		key = f.key
	}
	return frame{node: node, path: append(path, segment), key: key}
}

// ExtractAll flattens node into leaf fields named by their underscore-joined
// path. Mapping keys are visited in sorted order. A nil node has no fields.
func (e *Extractor) ExtractAll(node interface{}) *Fields {
	out := newFields()
	if node == nil {
		return out
	}
	stack := []frame{{node: node}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		name := strings.Join(f.path, PathSeparator)
		if len(f.path) == 0 {
			name = rootName
		} else if e.rules.Excluded(name) {
			continue
		}

		if m, ok := asMap(f.node); ok {
			if v, wrapped := m[valueKey]; wrapped {
				out.set(name, Stringify(v), f.key)
				continue
			}
			if len(f.path) >= e.maxDepth {
				out.set(name, toJSON(m), f.key)
				continue
			}
			keys := sortedKeys(m)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, f.child(m[keys[i]], keys[i], false))
			}
			continue
		}

		if items, ok := asSlice(f.node); ok {
			var scalars []interface{}
			var nested []int
			for i, it := range items {
				if isScalar(it) {
					scalars = append(scalars, it)
				} else {
					nested = append(nested, i)
				}
			}
			if len(scalars) > 0 || len(nested) == 0 {
				out.set(name, joinScalars(scalars), f.key)
			}
			for j := len(nested) - 1; j >= 0; j-- {
				i := nested[j]
				stack = append(stack, f.child(items[i], strconv.Itoa(i), true))
			}
			continue
		}

		out.set(name, Stringify(f.node), f.key)
	}

	return out
}

// ExtractVendorName returns the most plausible vendor name in node.
//
// Vendor patterns are tried in priority order. For one pattern, a field whose
// own key equals the pattern beats one whose key merely contains it, which in
// turn beats a field that only matches through an ancestor key; remaining
// ties go to traversal order. When no flattened field qualifies, the raw node
// and its immediate children are searched by exact then upper-cased key.
func (e *Extractor) ExtractVendorName(node interface{}) (string, bool) {
	patterns := e.rules.Patterns(CategoryVendor)
	fields := e.ExtractAll(node)

	for _, p := range patterns {
		best, bestRank := "", matchNone
		for _, fld := range fields.list {
			rank := vendorRank(fld, p)
			if rank >= bestRank {
				continue
			}
			v := strings.TrimSpace(fld.Value)
			if v == "" {
				continue
			}
			best, bestRank = v, rank
			if rank == matchExactKey {
				break
			}
		}
		if bestRank != matchNone {
			return best, true
		}
	}

	return lookupVendor(node, patterns)
}

const (
	matchExactKey = iota
	matchInKey
	matchInPath
	matchNone
)

func vendorRank(fld Field, pattern string) int {
	key := strings.ToLower(fld.key)
	switch {
	case key == pattern:
		return matchExactKey
	case strings.Contains(key, pattern):
		return matchInKey
	case strings.Contains(strings.ToLower(fld.Name), pattern):
		return matchInPath
	default:
		return matchNone
	}
}

func lookupVendor(node interface{}, patterns []string) (string, bool) {
	root, ok := asMap(node)
	if !ok {
		return "", false
	}

	candidates := []map[string]interface{}{root}
	if inner, ok := asMap(root[fieldsKey]); ok {
		candidates = append(candidates, inner)
	}
	for _, k := range sortedKeys(root) {
		if k == fieldsKey {
			continue
		}
		if child, ok := asMap(root[k]); ok {
			candidates = append(candidates, child)
		}
	}

	for _, p := range patterns {
		for _, key := range []string{p, strings.ToUpper(p)} {
			for _, m := range candidates {
				if v, ok := directValue(m, key); ok {
					return v, true
				}
			}
		}
	}
	return "", false
}

func directValue(m map[string]interface{}, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	if wrapper, ok := asMap(raw); ok {
		inner, wrapped := wrapper[valueKey]
		if !wrapped || !isScalar(inner) {
			return "", false
		}
		raw = inner
	}
	if items, ok := asSlice(raw); ok {
		raw = joinScalars(items)
	}
	v := strings.TrimSpace(Stringify(raw))
	return v, v != ""
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var defaultExtractor = New()

// ExtractAll flattens node with the default rules.
func ExtractAll(node interface{}) *Fields {
	return defaultExtractor.ExtractAll(node)
}

// ExtractVendorName finds the vendor name in node with the default rules.
func ExtractVendorName(node interface{}) (string, bool) {
	return defaultExtractor.ExtractVendorName(node)
}
