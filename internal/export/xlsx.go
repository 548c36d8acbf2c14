// Package export writes extracted financial tables as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/tenkview/internal/finance"
)

const (
	maxSheetName = 31
	emptySheet   = "Tables"
	headerRow    = 3
)

var sheetReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// Workbook builds one sheet per table: statement name, unit, a header row of
// Category plus periods, then the line items. Missing values are blank cells.
func Workbook(tables []finance.Table) (*excelize.File, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)

	if len(tables) == 0 {
		if err := f.SetSheetName(defaultSheet, emptySheet); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(emptySheet, "A1", "No financial tables found"); err != nil {
			return nil, err
		}
		return f, nil
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	used := make(map[string]bool, len(tables))
	for i, t := range tables {
		name := SheetName(t.Statement, used)
		if i == 0 {
			err = f.SetSheetName(defaultSheet, name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if err := writeTable(f, name, t, bold); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteXLSX streams the workbook for tables to w.
func WriteXLSX(w io.Writer, tables []finance.Table) error {
	f, err := Workbook(tables)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, t finance.Table, bold int) error {
	if err := f.SetSheetRow(sheet, "A1", &[]any{t.Statement}); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A2", &[]any{"Unit: " + t.Unit}); err != nil {
		return err
	}

	header := make([]any, 0, len(t.Periods)+1)
	header = append(header, "Category")
	for _, p := range t.Periods {
		header = append(header, p)
	}
	if err := f.SetSheetRow(sheet, cell(1, headerRow), &header); err != nil {
		return err
	}

	for i, r := range t.Rows {
		values := make([]any, 0, len(t.Periods)+1)
		values = append(values, r.Category)
		for _, p := range t.Periods {
			if v, ok := r.Value(p); ok && v != nil {
				values = append(values, *v)
			} else {
				values = append(values, nil)
			}
		}
		if err := f.SetSheetRow(sheet, cell(1, headerRow+1+i), &values); err != nil {
			return err
		}
	}

	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell(1, headerRow), cell(len(header), headerRow), bold); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 48)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// SheetName turns a statement name into a valid, unused worksheet name and
// marks it used. Names are compared case-insensitively, as Excel does.
func SheetName(statement string, used map[string]bool) string {
	base := strings.Join(strings.Fields(sheetReplacer.Replace(statement)), " ")
	base = strings.Trim(base, "'")
	if base == "" {
		base = "Table"
	}
	base = truncateRunes(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
