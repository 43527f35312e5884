// Package registry loads the supplier list that vendor names are matched against.
package registry

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"invoice-workers/internal/matching"
)

// PlaceholderMarker starts the sample file shipped before a real supplier
// list has been uploaded.
const PlaceholderMarker = "# Sample Supplier List Format"

var (
	// ErrNotFound means no supplier list exists at the configured location.
	ErrNotFound = errors.New("supplier registry not found")
	// ErrPlaceholder means the stored list is still the sample placeholder.
	ErrPlaceholder = errors.New("supplier registry is the sample placeholder")
	// ErrEmpty means the list exists but holds no usable supplier rows.
	ErrEmpty = errors.New("supplier registry contains no suppliers")
)

// IsUnavailable reports whether err means there is no usable supplier list,
// as opposed to a failure reading it.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPlaceholder) || errors.Is(err, ErrEmpty)
}

var (
	headerCodes = map[string]bool{"supplier": true, "supplier_code": true, "code": true}
	headerNames = map[string]bool{"name": true, "supplier_name": true, "name 1": true}
)

// ParseCSV reads a supplier list. Row 0 is the header and is ignored.
// Columns are code, name 1 and an optional name 2; anything after that is
// ignored. Rows with fewer than two columns, a blank code or name, or that
// repeat a header are skipped.
//
// A record's name is name 1. When name 2 is present, "name 1 name 2" becomes
// an alias.
func ParseCSV(r io.Reader) ([]matching.SupplierRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read supplier csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(PlaceholderMarker)) {
		return nil, ErrPlaceholder
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse supplier csv: %w", err)
	}

	records := make([]matching.SupplierRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		code := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if code == "" || name == "" {
			continue
		}
		if headerCodes[strings.ToLower(code)] || headerNames[strings.ToLower(name)] {
			continue
		}

		second := ""
		if len(row) > 2 {
			second = row[2]
		}
		records = append(records, newRecord(code, name, second))
	}
	return records, nil
}

// newRecord builds a supplier from its code and name columns. Name 2 is
// usually a continuation such as a legal form, so it is only matched as part
// of the full name.
func newRecord(code, name, second string) matching.SupplierRecord {
	rec := matching.SupplierRecord{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)}
	if second = strings.TrimSpace(second); second != "" {
		rec.AliasNames = []string{rec.Name + " " + second}
	}
	return rec
}
