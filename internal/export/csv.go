package export

import (
	"bufio"
	"io"
	"strings"
)

// EmptyCSV is written for a batch with no documents.
const EmptyCSV = "No data available"

// WriteCSV writes the header row followed by one line per row. Every cell
// is quoted, with embedded quotes doubled, and lines end in "\n".
func WriteCSV(w io.Writer, table Table) error {
	bw := bufio.NewWriter(w)
	if len(table.Rows) == 0 {
		if _, err := bw.WriteString(EmptyCSV); err != nil {
			return err
		}
		return bw.Flush()
	}

	writeLine := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			bw.WriteByte('"')
		}
	}

	writeLine(table.Headers)
	for _, row := range table.Rows {
		bw.WriteByte('\n')
		writeLine(row)
	}
	return bw.Flush()
}
