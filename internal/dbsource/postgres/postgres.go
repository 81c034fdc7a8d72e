// Package postgres implements dbsource.Source for PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableimport/internal/dbsource"
	"tableimport/internal/table"
)

type source struct {
	pool *pgxpool.Pool
}

func init() {
	dbsource.Register("postgres", New)
}

// New creates a Postgres-backed source from a pgx DSN.
func New(ctx context.Context, cfg dbsource.Config) (dbsource.Source, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &source{pool: pool}, nil
}

func (s *source) Close() { s.pool.Close() }

// ListTables enumerates public-schema tables with estimated row counts from
// pg_class. Estimates are sufficient: the count only sizes the import
// preview, the ingest service recounts on load.
func (s *source) ListTables(ctx context.Context) ([]dbsource.TableInfo, error) {
	const q = `
		SELECT c.relname, GREATEST(c.reltuples::bigint, 0)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND c.relkind = 'r'
		ORDER BY c.relname`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres list tables: %w", err)
	}
	defer rows.Close()

	var out []dbsource.TableInfo
	for rows.Next() {
		var ti dbsource.TableInfo
		if err := rows.Scan(&ti.Name, &ti.RowCount); err != nil {
			return nil, fmt.Errorf("postgres scan table info: %w", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

func (s *source) FetchRows(ctx context.Context, tableName string, d table.ImportDirective) ([]string, []table.Row, error) {
	if !dbsource.ValidIdentifier(tableName) {
		return nil, nil, fmt.Errorf("postgres: invalid table name %q", tableName)
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

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres fetch %s: %w", tableName, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	var out []table.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres scan %s: %w", tableName, err)
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
	return pgx.Identifier{ident}.Sanitize()
}
