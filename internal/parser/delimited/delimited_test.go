package delimited

import (
	"errors"
	"reflect"
	"testing"

	"tableimport/internal/table"
)

// TestDetectDelimiter verifies comma-vs-tab sniffing on the first line.
func TestDetectDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"tab", "a\tb\tc\n1\t2\t3\n", '\t'},
		{"tab wins when more tabs", "a\tb,c\td\n", '\t'},
		{"single column defaults to comma", "lonely\n1\n", ','},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectDelimiter(tt.in); got != tt.want {
				t.Fatalf("DetectDelimiter = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParse verifies the end-to-end paste scenario: header order, inferred
// column types, and row contents.
func TestParse(t *testing.T) {
	t.Parallel()

	tab, err := Parse("x,y\n1,a\n2,b\n")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if !reflect.DeepEqual(tab.Names, []string{"x", "y"}) {
		t.Fatalf("names = %v, want [x y]", tab.Names)
	}
	if got := tab.Metadata["x"].Type; got != table.Integer {
		t.Fatalf("x type = %v, want integer", got)
	}
	if got := tab.Metadata["y"].Type; got != table.String {
		t.Fatalf("y type = %v, want string", got)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tab.Rows))
	}
	if tab.Rows[0]["x"] != "1" || tab.Rows[0]["y"] != "a" {
		t.Fatalf("row 0 = %v", tab.Rows[0])
	}
}

// TestParse_RaggedRows verifies the lenient policy: short rows are padded
// with the empty placeholder and long rows truncated to the header width.
func TestParse_RaggedRows(t *testing.T) {
	t.Parallel()

	tab, err := Parse("a,b\n1\n2,3,4\n")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tab.Rows))
	}
	if tab.Rows[0]["b"] != nil {
		t.Fatalf("short row b = %v, want nil placeholder", tab.Rows[0]["b"])
	}
	if _, ok := tab.Rows[1]["c"]; ok {
		t.Fatalf("long row leaked an extra column")
	}
}

// TestParse_Failures verifies ParseError outcomes for empty and header-only
// input.
func TestParse_Failures(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   \n  ", "a,b\n"} {
		_, err := Parse(in)
		var pe *table.ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%q) error = %v, want ParseError", in, err)
		}
	}
}

// TestParse_TSV verifies tab-delimited input parses with normalized headers.
func TestParse_TSV(t *testing.T) {
	t.Parallel()

	tab, err := Parse("Col One\tCol Two\nfoo\tbar\n")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !reflect.DeepEqual(tab.Names, []string{"col_one", "col_two"}) {
		t.Fatalf("names = %v", tab.Names)
	}
}

// TestRoundTrip verifies parse-serialize idempotence: re-parsing a
// serialization yields the same header order and cell strings.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tab, err := Parse("x,y\n1,a\n2,\n")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	text := Serialize(tab, ',')
	again, err := Parse(text)
	if err != nil {
		t.Fatalf("re-Parse error: %v", err)
	}

	if !reflect.DeepEqual(again.Names, tab.Names) {
		t.Fatalf("names changed across round trip: %v vs %v", again.Names, tab.Names)
	}
	if !reflect.DeepEqual(again.Rows, tab.Rows) {
		t.Fatalf("rows changed across round trip: %v vs %v", again.Rows, tab.Rows)
	}
}

// TestDecodeText verifies BOM handling for UTF-8 and UTF-16 input.
func TestDecodeText(t *testing.T) {
	t.Parallel()

	if got := DecodeText([]byte("\xef\xbb\xbfa,b")); got != "a,b" {
		t.Fatalf("utf-8 BOM not stripped: %q", got)
	}
	// "a,b" in UTF-16LE with BOM.
	utf16 := []byte{0xff, 0xfe, 'a', 0, ',', 0, 'b', 0}
	if got := DecodeText(utf16); got != "a,b" {
		t.Fatalf("utf-16 input not decoded: %q", got)
	}
	if got := DecodeText([]byte("plain")); got != "plain" {
		t.Fatalf("plain passthrough broken: %q", got)
	}
}
