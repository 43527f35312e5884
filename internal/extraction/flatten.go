package extraction

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// SourceExtraction tags inference_result leaves.
	SourceExtraction = "extraction"
	// SourceMetadata tags the document class and blueprint entries.
	SourceMetadata = "metadata"

	flattenRoot      = "invoice"
	flattenSeparator = "."
)

// FlatFieldEntry is one row of the display view of a document.
type FlatFieldEntry struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Flatten produces the tabular display view of doc: every inference_result
// leaf under the "invoice." prefix, followed by the document class and
// blueprint name when present. Unlike ExtractAll this view has no depth bound
// and keeps value wrappers as nested paths.
func (e *Extractor) Flatten(doc Document) []FlatFieldEntry {
	var out []FlatFieldEntry

	if root, ok := asMap(doc.InferenceResult()); ok {
		type item struct {
			node interface{}
			path string
		}
		var stack []item
		push := func(m map[string]interface{}, prefix string) {
			keys := sortedKeys(m)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, item{node: m[keys[i]], path: prefix + flattenSeparator + keys[i]})
			}
		}
		push(root, flattenRoot)

		for len(stack) > 0 {
			it := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if e.rules.Excluded(it.path) {
				continue
			}
			if m, ok := asMap(it.node); ok {
				push(m, it.path)
				continue
			}
			if items, ok := asSlice(it.node); ok {
				if len(items) == 0 {
					out = append(out, FlatFieldEntry{Field: it.path, Value: "[]", Source: SourceExtraction})
					continue
				}
				for i := len(items) - 1; i >= 0; i-- {
					stack = append(stack, item{node: items[i], path: it.path + "[" + strconv.Itoa(i) + "]"})
				}
				continue
			}
			out = append(out, FlatFieldEntry{Field: it.path, Value: Stringify(it.node), Source: SourceExtraction})
		}
	}

	if _, ok := doc[KeyDocumentClass]; ok {
		out = append(out, FlatFieldEntry{Field: KeyDocumentClass, Value: doc.DocumentClass(), Source: SourceMetadata})
	}
	if name, _, ok := doc.MatchedBlueprint(); ok {
		out = append(out, FlatFieldEntry{Field: KeyMatchedBlueprint, Value: name, Source: SourceMetadata})
	}
	return out
}

// FieldNames returns the sorted union of ExtractAll field names over the
// inference results of docs.
func (e *Extractor) FieldNames(docs []Document) []string {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for _, name := range e.ExtractAll(doc.InferenceResult()).Names() {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flatten builds the display view with the default rules.
func Flatten(doc Document) []FlatFieldEntry {
	return defaultExtractor.Flatten(doc)
}

// FieldNames collects field names with the default rules.
func FieldNames(docs []Document) []string {
	return defaultExtractor.FieldNames(docs)
}

// FormatFieldHeader turns a field name into a column header:
// "vendor_name" -> "Vendor Name", "invoiceTotal" -> "Invoice Total".
func FormatFieldHeader(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '_':
			b.WriteRune(' ')
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	words := strings.Fields(b.String())
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
