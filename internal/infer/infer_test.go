package infer

import (
	"encoding/json"
	"testing"

	"tableimport/internal/table"
)

// TestInfer verifies the strictest-common-type rule.
//
// The policy is exact-match: a single value outside a candidate type
// disqualifies that type for the whole column, no majority vote.
func TestInfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []any
		want   table.ScalarType
	}{
		{"all integers", []any{"1", "2", "3"}, table.Integer},
		{"single stray string", []any{"1", "2", "x"}, table.String},
		{"mixed int and float", []any{"1", "2.5"}, table.Number},
		{"booleans case-insensitive", []any{"true", "FALSE", "True"}, table.Boolean},
		{"iso dates", []any{"2024-01-01", "2024-06-30"}, table.Date},
		{"timestamps", []any{"2024-01-01T10:00:00Z"}, table.Date},
		{"empty sample", nil, table.String},
		{"all empty values", []any{"", "  ", nil}, table.String},
		{"empties ignored inside integers", []any{"1", "", "3"}, table.Integer},
		{"negative integers", []any{"-1", "0", "42"}, table.Integer},
		{"exponent is not integer", []any{"1e3", "2"}, table.Number},
		{"native json kinds", []any{json.Number("1"), json.Number("2")}, table.Integer},
		{"native booleans", []any{true, false}, table.Boolean},
		{"bool and int disagree", []any{"true", "1"}, table.String},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Infer(tt.values); got != tt.want {
				t.Fatalf("Infer(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

// TestColumns verifies per-column inference across rows and the sample bound.
func TestColumns(t *testing.T) {
	t.Parallel()

	rows := []table.Row{
		{"x": "1", "y": "a"},
		{"x": "2", "y": "b"},
	}
	meta := Columns([]string{"x", "y"}, rows, 0)

	if meta["x"].Type != table.Integer {
		t.Fatalf("x type = %v, want integer", meta["x"].Type)
	}
	if meta["y"].Type != table.String {
		t.Fatalf("y type = %v, want string", meta["y"].Type)
	}
}

// TestColumns_SampleLimit verifies that rows beyond the sample bound do not
// influence the inferred type.
func TestColumns_SampleLimit(t *testing.T) {
	t.Parallel()

	rows := []table.Row{
		{"x": "1"},
		{"x": "2"},
		{"x": "not a number"},
	}
	meta := Columns([]string{"x"}, rows, 2)
	if meta["x"].Type != table.Integer {
		t.Fatalf("bounded sample type = %v, want integer", meta["x"].Type)
	}
}

// TestParseDateLoose verifies permissive date parsing. The returned ok bit is
// the contract; layout is informational.
func TestParseDateLoose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"iso date", "2023-01-02", true},
		{"rfc3339", "2023-01-02T15:04:05Z", true},
		{"dotted european", "02.01.2023", true},
		{"invalid", "2023-99-99", false},
		{"plain number", "12345", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, _, ok := ParseDateLoose(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseDateLoose(%q) ok=%v, want %v", tt.in, ok, tt.ok)
			}
			if ok && d.IsZero() {
				t.Fatalf("ParseDateLoose(%q) returned zero time with ok=true", tt.in)
			}
		})
	}
}
