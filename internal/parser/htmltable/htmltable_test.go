package htmltable

import (
	"errors"
	"reflect"
	"testing"

	"tableimport/internal/table"
)

const page = `<!doctype html>
<html><body>
<table>
  <thead><tr><th>City</th><th>Population</th></tr></thead>
  <tbody>
    <tr><td>Oslo</td><td>709037</td></tr>
    <tr><td>Bergen</td><td>291940</td></tr>
  </tbody>
</table>
</body></html>`

// TestExtract verifies header detection from th cells and typed columns.
func TestExtract(t *testing.T) {
	t.Parallel()

	tables, err := Extract(page)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(tables))
	}

	tab := tables[0]
	if !reflect.DeepEqual(tab.Names, []string{"city", "population"}) {
		t.Fatalf("names = %v", tab.Names)
	}
	if got := tab.Metadata["population"].Type; got != table.Integer {
		t.Fatalf("population type = %v, want integer", got)
	}
	if tab.Rows[0]["city"] != "Oslo" {
		t.Fatalf("row 0 city = %v", tab.Rows[0]["city"])
	}
}

// TestExtract_HeaderlessTable verifies the first td row is promoted to a
// header when no th cells exist.
func TestExtract_HeaderlessTable(t *testing.T) {
	t.Parallel()

	tables, err := Extract(`<table><tr><td>a</td><td>b</td></tr><tr><td>1</td><td>2</td></tr></table>`)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if !reflect.DeepEqual(tables[0].Names, []string{"a", "b"}) {
		t.Fatalf("names = %v", tables[0].Names)
	}
	if len(tables[0].Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(tables[0].Rows))
	}
}

// TestExtract_SkipsDegenerateTables verifies layout-only tables (no data
// rows) are skipped, and that a page with nothing usable fails.
func TestExtract_SkipsDegenerateTables(t *testing.T) {
	t.Parallel()

	_, err := Extract(`<table><tr><th>only a header</th></tr></table>`)
	var pe *table.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ParseError", err)
	}
}

// TestSniff verifies HTML detection for format routing.
func TestSniff(t *testing.T) {
	t.Parallel()

	if !Sniff(page) {
		t.Fatalf("page not sniffed as HTML")
	}
	if Sniff("a,b\n1,2\n") {
		t.Fatalf("CSV sniffed as HTML")
	}
	if Sniff(`[{"a":1}]`) {
		t.Fatalf("JSON sniffed as HTML")
	}
}
