// Package htmltable extracts tabular data from HTML documents.
//
// URL imports frequently point at pages rather than raw CSV/JSON; the
// extractor turns each <table> element into a canonical table so those pages
// import like any other source.
//
// A malformed table element is skipped so the rest of the page still
// imports.
package htmltable

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tableimport/internal/infer"
	"tableimport/internal/naming"
	"tableimport/internal/table"
)

const typeSampleRows = 2000

// Extract parses an HTML document and returns one canonical table per
// <table> element that yields at least a header and one data row.
//
// Header selection:
//   - <th> cells when present (thead or first row).
//   - Otherwise the first row's <td> cells.
//
// Errors:
//   - *table.ParseError when the document cannot be parsed or no table
//     element yields data.
func Extract(html string) ([]*table.Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &table.ParseError{Format: "html", Reason: "unparsable document: " + err.Error()}
	}

	var tables []*table.Table
	doc.Find("table").Each(func(_ int, sel *goquery.Selection) {
		if t := extractOne(sel); t != nil {
			tables = append(tables, t)
		}
	})
	if len(tables) == 0 {
		return nil, &table.ParseError{Format: "html", Reason: "document contains no usable table elements"}
	}
	return tables, nil
}

// Sniff reports whether the body looks like an HTML document rather than a
// raw data format.
func Sniff(body string) bool {
	head := strings.ToLower(body)
	if len(head) > 1024 {
		head = head[:1024]
	}
	return strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<html") ||
		strings.Contains(head, "<table")
}

func extractOne(sel *goquery.Selection) *table.Table {
	var header []string
	var body [][]string

	rows := sel.Find("tr")
	rows.Each(func(i int, tr *goquery.Selection) {
		ths := cellTexts(tr, "th")
		tds := cellTexts(tr, "td")

		if header == nil {
			if len(ths) > 0 {
				header = ths
				return
			}
			if len(tds) > 0 {
				header = tds
				return
			}
			return // blank row before the header
		}
		if len(tds) > 0 {
			body = append(body, tds)
		}
	})

	if len(header) == 0 || len(body) == 0 {
		return nil
	}
	names := naming.UniqueHeaders(header)

	recs := make([]table.Row, 0, len(body))
	for _, rec := range body {
		row := make(table.Row, len(names))
		for i, n := range names {
			if i >= len(rec) || rec[i] == "" {
				row[n] = nil
			} else {
				row[n] = rec[i]
			}
		}
		recs = append(recs, row)
	}

	t := &table.Table{
		Names:    names,
		Metadata: infer.Columns(names, recs, typeSampleRows),
		Rows:     recs,
	}
	t.NormalizeRows()
	return t
}

func cellTexts(tr *goquery.Selection, tag string) []string {
	var out []string
	tr.Find(tag).Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}
