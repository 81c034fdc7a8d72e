// Package table defines the canonical in-memory table representation that
// every import path converges on.
//
// The package is responsible for:
//   - The Table type and its column metadata
//   - The scalar type vocabulary shared with type inference
//   - The provenance ("source") tag attached at commit time
//   - Structural invariants (column/row key agreement)
//
// Design constraints:
//   - A Table is a plain value; nothing here performs I/O.
//   - Absent cell values are represented by the nil placeholder, never by a
//     missing key, so that Names and every row's key set always agree.
package table

import (
	"fmt"
	"time"
)

// ScalarType is the discrete kind of a column's values.
type ScalarType string

const (
	Integer ScalarType = "integer"
	Number  ScalarType = "number"
	Boolean ScalarType = "boolean"
	Date    ScalarType = "date"
	String  ScalarType = "string"
)

// Row maps a column name to a scalar value. A nil value is the empty
// placeholder for a cell that had no data.
type Row map[string]any

// ColumnMeta describes one column of a Table.
//
// SemanticType is filled in later, out-of-band, by the semantic-type
// collaborator once it inspects the loaded rows. Levels stays empty until an
// external collaborator populates observed discrete values.
type ColumnMeta struct {
	Type         ScalarType `json:"type"`
	SemanticType string     `json:"semantic_type,omitempty"`
	Levels       []string   `json:"levels,omitempty"`
}

// Virtual marks that Rows holds only a materialized sample and the
// authoritative row count lives server-side.
type Virtual struct {
	TableID  string `json:"table_id"`
	RowCount int64  `json:"row_count"`
}

// Table is the canonical representation produced by every import path.
//
// Invariants (enforced by CheckInvariants, relied on by all consumers):
//   - Names are unique within the table and ordered; order determines display
//     and serialization order.
//   - Every row's key set equals Names exactly. Absent values are stored as
//     nil rather than omitted.
//   - ID is unique across the currently-loaded set at the moment of
//     insertion; naming.Resolve is the sole mechanism permitted to mint IDs.
type Table struct {
	ID        string                `json:"id"`
	DisplayID string                `json:"display_id,omitempty"`
	Names     []string              `json:"names"`
	Metadata  map[string]ColumnMeta `json:"metadata"`
	Rows      []Row                 `json:"rows"`
	Virtual   *Virtual              `json:"virtual,omitempty"`
	Anchored  bool                  `json:"anchored"`
	CreatedBy string                `json:"created_by"`
	Source    Source                `json:"source"`
}

// Display returns the human-facing label, defaulting to ID when DisplayID is
// absent.
func (t *Table) Display() string {
	if t.DisplayID != "" {
		return t.DisplayID
	}
	return t.ID
}

// RowCount returns the authoritative row count: the virtual count when the
// table is virtual, otherwise the materialized length.
func (t *Table) RowCount() int64 {
	if t.Virtual != nil {
		return t.Virtual.RowCount
	}
	return int64(len(t.Rows))
}

// NormalizeRows rewrites every row so its key set equals Names: missing
// columns get the nil placeholder, orphan keys are dropped.
//
// Parsers call this once before returning; consumers may assume the invariant
// holds afterwards.
func (t *Table) NormalizeRows() {
	for i, r := range t.Rows {
		fixed := make(Row, len(t.Names))
		for _, n := range t.Names {
			if v, ok := r[n]; ok {
				fixed[n] = v
			} else {
				fixed[n] = nil
			}
		}
		t.Rows[i] = fixed
	}
}

// CheckInvariants verifies the structural invariants documented on Table.
//
// Edge cases:
//   - A table with zero rows is valid.
//   - A table with zero columns is not (every import path rejects degenerate
//     shapes before constructing a Table).
//
// Errors:
//   - Returns a descriptive error naming the first violated invariant.
func (t *Table) CheckInvariants() error {
	if len(t.Names) == 0 {
		return fmt.Errorf("table %q: no columns", t.ID)
	}
	seen := make(map[string]struct{}, len(t.Names))
	for _, n := range t.Names {
		if n == "" {
			return fmt.Errorf("table %q: empty column name", t.ID)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("table %q: duplicate column %q", t.ID, n)
		}
		seen[n] = struct{}{}
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Names) {
			return fmt.Errorf("table %q: row %d has %d keys, want %d", t.ID, i, len(r), len(t.Names))
		}
		for k := range r {
			if _, ok := seen[k]; !ok {
				return fmt.Errorf("table %q: row %d has orphan column %q", t.ID, i, k)
			}
		}
	}
	if err := t.Source.Validate(); err != nil {
		return fmt.Errorf("table %q: %w", t.ID, err)
	}
	return nil
}

// Column returns the metadata for a column name, or a zero ColumnMeta when
// the column is unknown.
func (t *Table) Column(name string) ColumnMeta {
	return t.Metadata[name]
}

// SetLastRefreshed stamps the source with the moment a refresh succeeded.
func (t *Table) SetLastRefreshed(at time.Time) {
	t.Source.LastRefreshed = at
}
