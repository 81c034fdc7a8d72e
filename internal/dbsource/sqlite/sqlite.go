// Package sqlite implements dbsource.Source for SQLite.
//
// SQLite keeps no row-count statistics, so ListTables issues a COUNT(*) per
// table. That is acceptable here: local SQLite files are small and the
// listing runs once per import dialog.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"tableimport/internal/dbsource"
	"tableimport/internal/table"
)

type source struct {
	db *sql.DB
}

func init() {
	dbsource.Register("sqlite", New)
}

func New(ctx context.Context, cfg dbsource.Config) (dbsource.Source, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return &source{db: db}, nil
}

func (s *source) Close() { _ = s.db.Close() }

func (s *source) ListTables(ctx context.Context) ([]dbsource.TableInfo, error) {
	const q = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite scan table name: %w", err)
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]dbsource.TableInfo, 0, len(names))
	for _, n := range names {
		if !dbsource.ValidIdentifier(n) {
			continue
		}
		var count int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quote(n)).Scan(&count); err != nil {
			return nil, fmt.Errorf("sqlite count %s: %w", n, err)
		}
		out = append(out, dbsource.TableInfo{Name: n, RowCount: count})
	}
	return out, nil
}

func (s *source) FetchRows(ctx context.Context, tableName string, d table.ImportDirective) ([]string, []table.Row, error) {
	if !dbsource.ValidIdentifier(tableName) {
		return nil, nil, fmt.Errorf("sqlite: invalid table name %q", tableName)
	}

	q := `SELECT * FROM ` + quote(tableName)
	orderBy, err := dbsource.OrderByClause(d, quote)
	if err != nil {
		return nil, nil, err
	}
	q += orderBy
	if d.Mode == table.ImportSubset && d.RowLimit > 0 {
		q += fmt.Sprintf(" LIMIT %d", d.RowLimit)
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite fetch %s: %w", tableName, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite columns %s: %w", tableName, err)
	}

	var out []table.Row
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("sqlite scan %s: %w", tableName, err)
		}
		row := make(table.Row, len(names))
		for i, n := range names {
			row[n] = dbsource.ScanValue(values[i])
		}
		out = append(out, row)
	}
	return names, out, rows.Err()
}

func quote(ident string) string {
	return `"` + ident + `"`
}
