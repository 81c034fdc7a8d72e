// Package infer determines the scalar type of a column from a sample of its
// raw values.
//
// The rule is the strictest common type: a column is Integer only when every
// non-empty sampled value is a whole-number literal, Number only when every
// value is numeric, and so on. Any disagreement collapses the result to
// String. This is an exact-match policy, not a majority vote: a downstream
// schema expects exactness, so a single non-numeric value anywhere forces
// String even when the rest of the column is numeric.
package infer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tableimport/internal/table"
)

// Candidate priority, most specific first. Boolean outranks Integer so that
// a column of "true"/"false" literals never types as String by accident, and
// Integer outranks Number so mixed whole/fractional columns settle on Number.

// Infer returns the strictest scalar type that every non-empty value in the
// sample satisfies.
//
// Edge cases:
//   - An empty sample, or one with only empty values, yields String.
//   - Mixed integer and float literals yield Number, not Integer.
//   - Non-string scalars (JSON booleans, json.Number, floats) are classified
//     by their native kind before falling back to lexical checks.
func Infer(values []any) table.ScalarType {
	seen := false
	allBool := true
	allInt := true
	allNum := true
	allDate := true

	for _, v := range values {
		s, empty := scalarString(v)
		if empty {
			continue
		}
		seen = true

		if allBool && !isBoolLiteral(s) {
			allBool = false
		}
		if allInt && !isIntegerLiteral(s) {
			allInt = false
		}
		if allNum {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allNum = false
			}
		}
		if allDate {
			if _, _, ok := ParseDateLoose(s); !ok {
				allDate = false
			}
		}

		if !allBool && !allInt && !allNum && !allDate {
			return table.String
		}
	}

	if !seen {
		return table.String
	}
	switch {
	case allBool:
		return table.Boolean
	case allInt:
		return table.Integer
	case allNum:
		return table.Number
	case allDate:
		return table.Date
	default:
		return table.String
	}
}

// Columns infers a type per column across rows, sampling at most sampleLimit
// rows per column. sampleLimit <= 0 means no bound.
func Columns(names []string, rows []table.Row, sampleLimit int) map[string]table.ColumnMeta {
	meta := make(map[string]table.ColumnMeta, len(names))

	n := len(rows)
	if sampleLimit > 0 && n > sampleLimit {
		n = sampleLimit
	}

	values := make([]any, 0, n)
	for _, name := range names {
		values = values[:0]
		for _, r := range rows[:n] {
			values = append(values, r[name])
		}
		meta[name] = table.ColumnMeta{Type: Infer(values)}
	}
	return meta
}

// scalarString renders a raw cell value to its lexical form for
// classification. The second return is true when the value counts as empty.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		s := strings.TrimSpace(t)
		return s, s == ""
	case bool:
		if t {
			return "true", false
		}
		return "false", false
	case json.Number:
		return t.String(), false
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), false
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), false
	case int:
		return strconv.Itoa(t), false
	case int64:
		return strconv.FormatInt(t, 10), false
	case time.Time:
		return t.Format(time.RFC3339), false
	default:
		s := strings.TrimSpace(fmt.Sprint(v))
		return s, s == ""
	}
}

func isBoolLiteral(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

// isIntegerLiteral accepts whole-number lexical forms only: no fractional
// part, no exponent.
func isIntegerLiteral(s string) bool {
	if strings.ContainsAny(s, ".eE") {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDateLoose parses s against a permissive set of date and timestamp
// layouts, returning the matching layout for callers that need it.
func ParseDateLoose(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", false
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}
