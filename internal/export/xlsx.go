package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName    = "Invoices"
	maxColWidth  = 60.0
	minColWidth  = 10.0
	widthPadding = 2.0
)

// WriteXLSX writes the table as a single-sheet workbook with a bold,
// frozen header row.
func WriteXLSX(w io.Writer, table Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	widths := make([]float64, len(table.Headers))
	for i, h := range table.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
		widths[i] = float64(utf8.RuneCountInString(h))
	}
	if len(table.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(table.Headers), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, headerStyle)
		_ = f.SetPanes(SheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}

	for r, row := range table.Rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(SheetName, cell, value); err != nil {
				return fmt.Errorf("xlsx row %d: %w", r+1, err)
			}
			if n := float64(utf8.RuneCountInString(value)); c < len(widths) && n > widths[c] {
				widths[c] = n
			}
		}
	}

	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width += widthPadding
		if width > maxColWidth {
			width = maxColWidth
		}
		if width < minColWidth {
			width = minColWidth
		}
		_ = f.SetColWidth(SheetName, col, col, width)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
