// Package workbook loads spreadsheet binaries into canonical tables, one per
// sheet.
package workbook

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"tableimport/internal/infer"
	"tableimport/internal/naming"
	"tableimport/internal/table"
)

// oleMagic is the compound-document signature that opens every legacy BIFF
// .xls file; OOXML workbooks are zip archives and start with "PK".
var oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// typeSampleRows bounds type inference the same way the delimited parser
// does; workbook sheets can be large.
const typeSampleRows = 2000

// Sheet pairs a loaded table with the sheet name it came from. The sheet
// name is the suggested table name; final identifiers are assigned at commit
// time by the naming resolver.
type Sheet struct {
	Name  string
	Table *table.Table
}

// Load parses a workbook binary and returns one table per non-empty sheet.
// Both OOXML (.xlsx) and legacy BIFF (.xls) containers are accepted; the
// reader is chosen by container signature, not file extension, so a
// misnamed upload still parses.
//
// Behavior:
//   - The first row of each sheet is the header; header names are
//     normalized and disambiguated.
//   - Rows are aligned to the header width (padded/truncated) like the
//     delimited parser.
//   - Empty sheets, and sheets whose header row is entirely blank, are
//     skipped rather than producing degenerate zero-column tables.
//
// Errors:
//   - *table.ParseError when the bytes are not a readable workbook or no
//     sheet yields a table.
func Load(data []byte) ([]Sheet, error) {
	if bytes.HasPrefix(data, oleMagic) {
		return loadBIFF(data)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &table.ParseError{Format: "xlsx", Reason: "unreadable workbook: " + err.Error()}
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, &table.ParseError{Format: "xlsx", Reason: "sheet " + name + ": " + err.Error()}
		}
		t := sheetTable(rows)
		if t == nil {
			continue
		}
		sheets = append(sheets, Sheet{Name: naming.NormalizeFieldName(name), Table: t})
	}
	if len(sheets) == 0 {
		return nil, &table.ParseError{Format: "xlsx", Reason: "workbook has no non-empty sheets"}
	}
	return sheets, nil
}

// loadBIFF reads a legacy .xls workbook. Cells are taken as their string
// rendering and retyped by the shared inference pass, the same treatment
// OOXML cells get.
func loadBIFF(data []byte) ([]Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &table.ParseError{Format: "xls", Reason: "unreadable workbook: " + err.Error()}
	}

	var sheets []Sheet
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sh, err := wb.GetSheet(i)
		if err != nil {
			return nil, &table.ParseError{Format: "xls", Reason: "sheet " + strconv.Itoa(i) + ": " + err.Error()}
		}
		var grid [][]string
		for r := 0; r <= sh.GetNumberRows(); r++ {
			row, err := sh.GetRow(r)
			if err != nil {
				continue
			}
			var rec []string
			for _, cell := range row.GetCols() {
				rec = append(rec, cell.GetString())
			}
			grid = append(grid, rec)
		}
		t := sheetTable(grid)
		if t == nil {
			continue
		}
		sheets = append(sheets, Sheet{Name: naming.NormalizeFieldName(sh.GetName()), Table: t})
	}
	if len(sheets) == 0 {
		return nil, &table.ParseError{Format: "xls", Reason: "workbook has no non-empty sheets"}
	}
	return sheets, nil
}

// sheetTable builds a table from one sheet's cell grid, or nil when the
// sheet is effectively empty.
func sheetTable(grid [][]string) *table.Table {
	header, body := splitHeader(grid)
	if header == nil {
		return nil
	}
	names := naming.UniqueHeaders(header)

	rows := make([]table.Row, 0, len(body))
	for _, rec := range body {
		if blankRecord(rec) {
			continue
		}
		row := make(table.Row, len(names))
		for i, n := range names {
			if i >= len(rec) {
				row[n] = nil
				continue
			}
			v := strings.TrimSpace(rec[i])
			if v == "" {
				row[n] = nil
			} else {
				row[n] = v
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	t := &table.Table{
		Names:    names,
		Metadata: infer.Columns(names, rows, typeSampleRows),
		Rows:     rows,
	}
	t.NormalizeRows()
	return t
}

// splitHeader returns the first non-blank record as the header and the rest
// as the body, or nil when every record is blank.
func splitHeader(grid [][]string) ([]string, [][]string) {
	for i, rec := range grid {
		if !blankRecord(rec) {
			return rec, grid[i+1:]
		}
	}
	return nil, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
