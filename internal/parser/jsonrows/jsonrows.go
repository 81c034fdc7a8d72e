// Package jsonrows normalizes loosely-typed JSON records into the canonical
// table shape.
//
// JSON arrays carry no declared schema and objects commonly vary (optional
// fields), so the column set is the union of all keys seen across all input
// objects in first-seen order, and any object missing a key present
// elsewhere gets the empty placeholder for it.
//
// Token-level decoding is used instead of map decoding so key order survives;
// a plain map would randomize the column order.
package jsonrows

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tableimport/internal/infer"
	"tableimport/internal/table"
)

// arrayJoinSeparator flattens arrays-of-strings into one scalar cell.
const arrayJoinSeparator = ", "

// Record is one loosely-typed object with its key order preserved.
type Record struct {
	Keys   []string
	Values map[string]any
}

// Parse turns raw JSON text into a canonical table.
//
// Accepted shapes:
//   - A top-level array of objects.
//   - JSON Lines (newline-delimited objects), used as the fallback strategy
//     when whole-document parsing fails. A line that fails to parse aborts
//     the whole operation with a ParseError naming the offending line.
//
// Structurally invalid top-level shapes (an object, a scalar, an array of
// non-objects) are rejected with a named ParseError, never silently coerced.
func Parse(text string) (*table.Table, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &table.ParseError{Format: "json", Reason: "empty input"}
	}

	var records []Record
	var err error
	if json.Valid([]byte(trimmed)) {
		// A well-formed document must be an array of objects; wrong shapes
		// are rejected, never coerced.
		records, err = decodeArray(trimmed)
	} else {
		// Whole-document parsing failed: fall back to JSON Lines.
		records, err = decodeLines(trimmed)
	}
	if err != nil {
		return nil, err
	}

	return Normalize(records, true)
}

// Normalize turns decoded records into a canonical table using the
// union-of-keys policy.
//
// When allowHeterogeneousKeys is false, a record whose key set differs from
// the first record's is rejected instead of padded; callers use this for
// sources that promise a fixed schema.
func Normalize(records []Record, allowHeterogeneousKeys bool) (*table.Table, error) {
	if len(records) == 0 {
		return nil, &table.ParseError{Format: "json", Reason: "no records"}
	}

	var names []string
	seen := make(map[string]struct{})
	for i, rec := range records {
		if !allowHeterogeneousKeys && i > 0 && !sameKeySet(records[0].Keys, rec.Keys) {
			return nil, &table.ParseError{
				Format: "json",
				Line:   i + 1,
				Reason: "record keys differ from the first record",
			}
		}
		for _, k := range rec.Keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
	}
	if len(names) == 0 {
		return nil, &table.ParseError{Format: "json", Reason: "records carry no keys"}
	}

	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		row := make(table.Row, len(names))
		for _, n := range names {
			row[n] = flattenValue(rec.Values[n])
		}
		rows = append(rows, row)
	}

	t := &table.Table{
		Names:    names,
		Metadata: infer.Columns(names, rows, 0),
		Rows:     rows,
	}
	t.NormalizeRows()
	return t, nil
}

// decodeArray parses a top-level JSON array of objects, preserving key order
// per object. Null elements are skipped; any other non-object element is a
// shape error.
func decodeArray(text string) ([]Record, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &table.ParseError{Format: "json", Reason: "unreadable document: " + err.Error()}
	}
	d, ok := tok.(json.Delim)
	if !ok || d != '[' {
		return nil, &table.ParseError{Format: "json", Reason: fmt.Sprintf("top-level value is not an array of objects (got %v)", tok)}
	}

	var records []Record
	for dec.More() {
		first, err := dec.Token()
		if err != nil {
			return nil, &table.ParseError{Format: "json", Reason: "read element: " + err.Error()}
		}
		if first == nil {
			continue
		}
		ed, ok := first.(json.Delim)
		if !ok || ed != '{' {
			return nil, &table.ParseError{
				Format: "json",
				Line:   len(records) + 1,
				Reason: fmt.Sprintf("array element %d is not an object", len(records)+1),
			}
		}
		rec, err := decodeObjectOrdered(dec)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeLines parses newline-delimited JSON objects, each line independent.
func decodeLines(text string) ([]Record, error) {
	var records []Record
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()

		tok, err := dec.Token()
		if err != nil {
			return nil, &table.ParseError{Format: "jsonl", Line: i + 1, Reason: err.Error()}
		}
		d, ok := tok.(json.Delim)
		if !ok || d != '{' {
			return nil, &table.ParseError{Format: "jsonl", Line: i + 1, Reason: "line is not a JSON object"}
		}
		rec, err := decodeObjectOrdered(dec)
		if err != nil {
			return nil, &table.ParseError{Format: "jsonl", Line: i + 1, Reason: err.Error()}
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, &table.ParseError{Format: "jsonl", Line: i + 1, Reason: "trailing content after object"}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, &table.ParseError{Format: "jsonl", Reason: "no objects found"}
	}
	return records, nil
}

// decodeObjectOrdered consumes an object whose opening '{' has already been
// read, returning keys in document order.
func decodeObjectOrdered(dec *json.Decoder) (Record, error) {
	rec := Record{Values: make(map[string]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return rec, fmt.Errorf("read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return rec, fmt.Errorf("object key not a string (got %T)", keyTok)
		}
		val, err := materializeValue(dec)
		if err != nil {
			return rec, err
		}
		if _, dup := rec.Values[key]; !dup {
			rec.Keys = append(rec.Keys, key)
		}
		rec.Values[key] = val
	}
	end, err := dec.Token()
	if err != nil {
		return rec, fmt.Errorf("read object end: %w", err)
	}
	if end != json.Delim('}') {
		return rec, fmt.Errorf("expected '}', got %v", end)
	}
	return rec, nil
}

// materializeValue reads the next JSON value, recursing into containers.
func materializeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read value: %w", err)
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		m := make(map[string]any)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("read nested key: %w", err)
			}
			k, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("nested key not a string (got %T)", kt)
			}
			v, err := materializeValue(dec)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		if end, err := dec.Token(); err != nil || end != json.Delim('}') {
			return nil, fmt.Errorf("unterminated nested object")
		}
		return m, nil
	case '[':
		var arr []any
		for dec.More() {
			v, err := materializeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if end, err := dec.Token(); err != nil || end != json.Delim(']') {
			return nil, fmt.Errorf("unterminated nested array")
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", d)
	}
}

// flattenValue reduces container values to scalar cells: arrays of strings
// join with a separator, other containers render as compact JSON text.
// Scalars pass through untouched.
func flattenValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		if len(t) == 0 {
			return nil
		}
		ss := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return compactJSON(t)
			}
			ss = append(ss, s)
		}
		return strings.Join(ss, arrayJoinSeparator)
	case map[string]any:
		return compactJSON(t)
	default:
		return v
	}
}

func sameKeySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
