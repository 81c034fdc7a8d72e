// Package refresh validates freshly-fetched rows against an existing table's
// column set for the refresh and watch flows.
//
// The contract is deliberately narrow: only column-name-set equality is
// enforced, order-independent, with no per-cell type re-validation. A
// stricter check (type compatibility between old and new data) would be a
// behavior change and must not be added silently.
package refresh

import (
	"tableimport/internal/table"
)

// Validate decides whether candidate rows are schema-compatible with the
// existing column set.
//
// Failure cases, each with an actionable reason:
//   - candidate is empty;
//   - the candidate's column-name set (taken from its rows,
//     order-independent) differs from existingNames in cardinality or
//     membership; the SchemaMismatchError enumerates missing and
//     unexpected names.
//
// On success the candidate rows are returned unchanged for the caller to
// install as the table's new rows: full replacement, not merge.
func Validate(existingNames []string, candidate []table.Row) ([]table.Row, error) {
	if len(candidate) == 0 {
		return nil, &table.ParseError{Format: "refresh", Reason: "fetched data contains no rows"}
	}

	existing := make(map[string]struct{}, len(existingNames))
	for _, n := range existingNames {
		existing[n] = struct{}{}
	}

	got := make(map[string]struct{})
	for _, row := range candidate {
		for k := range row {
			got[k] = struct{}{}
		}
	}

	var missing, unexpected []string
	for n := range existing {
		if _, ok := got[n]; !ok {
			missing = append(missing, n)
		}
	}
	for n := range got {
		if _, ok := existing[n]; !ok {
			unexpected = append(unexpected, n)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		return nil, &table.SchemaMismatchError{Missing: missing, Unexpected: unexpected}
	}
	return candidate, nil
}

// Replace installs validated rows into the table and re-normalizes, keeping
// the column order and metadata of the existing table. Callers stamp
// LastRefreshed themselves once the surrounding operation fully succeeds.
func Replace(t *table.Table, rows []table.Row) {
	t.Rows = rows
	t.NormalizeRows()
}
