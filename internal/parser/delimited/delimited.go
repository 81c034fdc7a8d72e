// Package delimited parses CSV/TSV text into the canonical table shape.
//
// The parser is deliberately lenient: pasted data is frequently slightly
// malformed, so ragged rows are padded or truncated to the header width
// rather than rejected, and quoting errors are tolerated via lazy quotes.
package delimited

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tableimport/internal/infer"
	"tableimport/internal/naming"
	"tableimport/internal/table"
)

// typeSampleRows bounds how many rows feed type inference on very large
// pastes. Typing stays cheap without changing results for ordinary inputs.
const typeSampleRows = 2000

// DetectDelimiter inspects the first line and picks tab when it separates
// more fields than comma does, comma otherwise.
func DetectDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, "\t") > strings.Count(line, ",") {
		return '\t'
	}
	return ','
}

// Parse turns raw delimited text into a canonical table.
//
// The first row is the header; header names are normalized and
// disambiguated. Every column's scalar type is inferred over a bounded
// sample. The returned table carries no ID; the orchestrator assigns one at
// commit time.
//
// Errors:
//   - *table.ParseError when the text is empty or contains zero data rows
//     after header removal. The parser never panics across this boundary.
func Parse(text string) (*table.Table, error) {
	text = strings.TrimSpace(DecodeText([]byte(text)))

	format := "csv"
	delim := DetectDelimiter(text)
	if delim == '\t' {
		format = "tsv"
	}
	if text == "" {
		return nil, &table.ParseError{Format: format, Reason: "empty input"}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1 // ragged rows are handled manually
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, &table.ParseError{Format: format, Line: 1, Reason: "unreadable header: " + err.Error()}
	}
	names := naming.UniqueHeaders(header)

	var rows []table.Row
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &table.ParseError{Format: format, Line: line, Reason: err.Error()}
		}
		rows = append(rows, recordToRow(names, rec))
	}
	if len(rows) == 0 {
		return nil, &table.ParseError{Format: format, Reason: "no data rows after header"}
	}

	t := &table.Table{
		Names:    names,
		Metadata: infer.Columns(names, rows, typeSampleRows),
		Rows:     rows,
	}
	t.NormalizeRows()
	return t, nil
}

// recordToRow aligns one record to the header width: short records are
// padded with the empty placeholder, long records truncated.
func recordToRow(names []string, rec []string) table.Row {
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
	return row
}

// Serialize renders a table back to delimited text using the given
// delimiter, preserving header order and cell strings. Empty placeholders
// serialize as empty fields, so Parse(Serialize(t)) round-trips the header
// order and cell contents.
func Serialize(t *table.Table, delim rune) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delim

	_ = w.Write(t.Names)
	rec := make([]string, len(t.Names))
	for _, row := range t.Rows {
		for i, n := range t.Names {
			rec[i] = cellString(row[n])
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.String()
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

// DecodeText converts raw bytes to a UTF-8 string, honoring a UTF-8/UTF-16
// byte-order mark when present. Input without a BOM passes through as UTF-8.
func DecodeText(data []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		// Undecodable input falls back to the raw bytes; the parser will
		// surface a ParseError if the content is genuinely unusable.
		return string(data)
	}
	return string(out)
}
