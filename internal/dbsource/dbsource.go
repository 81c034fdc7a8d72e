// Package dbsource provides backend-agnostic access to database tables for
// the database import and refresh flows.
//
// IMPORTANT: This interface is intentionally minimal and focused on what the
// import orchestrator needs: enumerate tables, and fetch rows honoring an
// import directive. Each backend implements these semantics in its own
// idiomatic way (Postgres LIMIT, MSSQL TOP, etc).
package dbsource

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"tableimport/internal/table"
)

// Config selects and configures a backend.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// TableInfo describes one importable table.
type TableInfo struct {
	Name     string
	RowCount int64
}

// Source is the backend-agnostic contract for database imports.
type Source interface {
	// Close releases backend resources. Treat as "call once".
	Close()

	// ListTables enumerates importable tables with their row counts.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// FetchRows reads rows from one table honoring the directive: full mode
	// reads everything, subset mode applies the row limit and sort order.
	// Column order follows the backend's declared order.
	FetchRows(ctx context.Context, tableName string, d table.ImportDirective) ([]string, []table.Row, error)
}

type factory func(ctx context.Context, cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering
// the same kind twice panics to fail fast on ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("dbsource: Register called with empty kind")
	}
	if f == nil {
		panic("dbsource: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("dbsource: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Source using the registered backend factory.
//
// Errors:
//   - If cfg.Kind is empty or not registered.
//   - Whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Source, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("dbsource: missing Kind")
	}
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dbsource: unsupported kind %q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for error messages and CLI
// help.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to interpolate as a table or
// column identifier. Backends must reject anything else; directives carry
// user-chosen sort columns.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// OrderByClause renders the directive's sort specification using the given
// identifier quoting function, or "" when no sort applies.
//
// Errors:
//   - When a sort column is not a valid identifier.
//   - When the sort order is neither empty, asc, nor desc.
func OrderByClause(d table.ImportDirective, quote func(string) string) (string, error) {
	if len(d.SortColumns) == 0 {
		return "", nil
	}
	dir := strings.ToLower(d.SortOrder)
	switch dir {
	case "", "asc":
		dir = "ASC"
	case "desc":
		dir = "DESC"
	default:
		return "", fmt.Errorf("dbsource: invalid sort order %q", d.SortOrder)
	}

	quoted := make([]string, 0, len(d.SortColumns))
	for _, c := range d.SortColumns {
		if !ValidIdentifier(c) {
			return "", fmt.Errorf("dbsource: invalid sort column %q", c)
		}
		quoted = append(quoted, quote(c))
	}
	return " ORDER BY " + strings.Join(quoted, ", ") + " " + dir, nil
}

// ScanValue converts a driver value to the canonical cell representation:
// nil stays the empty placeholder, byte slices become strings, everything
// else passes through.
func ScanValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	default:
		return v
	}
}
