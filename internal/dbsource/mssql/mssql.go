// Package mssql implements dbsource.Source for Microsoft SQL Server.
//
// Key differences vs the Postgres backend:
//   - Row limiting uses SELECT TOP n, not LIMIT.
//   - Identifiers quote with square brackets.
//   - Row counts come from sys.partitions, which is an estimate the same
//     way pg_class.reltuples is.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"tableimport/internal/dbsource"
	"tableimport/internal/table"
)

type source struct {
	db *sql.DB
}

func init() {
	dbsource.Register("mssql", New)
}

func New(ctx context.Context, cfg dbsource.Config) (dbsource.Source, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql ping: %w", err)
	}
	return &source{db: db}, nil
}

func (s *source) Close() { _ = s.db.Close() }

func (s *source) ListTables(ctx context.Context) ([]dbsource.TableInfo, error) {
	const q = `
		SELECT t.name, SUM(p.rows)
		FROM sys.tables t
		JOIN sys.partitions p ON p.object_id = t.object_id AND p.index_id IN (0, 1)
		GROUP BY t.name
		ORDER BY t.name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mssql list tables: %w", err)
	}
	defer rows.Close()

	var out []dbsource.TableInfo
	for rows.Next() {
		var ti dbsource.TableInfo
		if err := rows.Scan(&ti.Name, &ti.RowCount); err != nil {
			return nil, fmt.Errorf("mssql scan table info: %w", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

func (s *source) FetchRows(ctx context.Context, tableName string, d table.ImportDirective) ([]string, []table.Row, error) {
	if !dbsource.ValidIdentifier(tableName) {
		return nil, nil, fmt.Errorf("mssql: invalid table name %q", tableName)
	}

	q := `SELECT `
	if d.Mode == table.ImportSubset && d.RowLimit > 0 {
		q += fmt.Sprintf("TOP %d ", d.RowLimit)
	}
	q += `* FROM ` + quote(tableName)
	orderBy, err := dbsource.OrderByClause(d, quote)
	if err != nil {
		return nil, nil, err
	}
	q += orderBy

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql fetch %s: %w", tableName, err)
	}
	defer rows.Close()

	return scanRows(rows, tableName)
}

func scanRows(rows *sql.Rows, tableName string) ([]string, []table.Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("mssql columns %s: %w", tableName, err)
	}

	var out []table.Row
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("mssql scan %s: %w", tableName, err)
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
	return "[" + ident + "]"
}
