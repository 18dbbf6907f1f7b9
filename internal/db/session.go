package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
)

// Row is one result row keyed by column name. Byte slices returned by the
// driver are converted to strings.
type Row map[string]any

// Session is the storage boundary used by the migration: generic reads,
// statement execution, quoting and column introspection. It runs either on
// the connection pool or inside a transaction.
type Session struct {
	ext     sqlx.ExtContext
	dialect Dialect
	columns map[string][]string
}

// NewSession creates a session over a *sqlx.DB or *sqlx.Tx
func NewSession(ext sqlx.ExtContext, dialect Dialect) *Session {
	return &Session{
		ext:     ext,
		dialect: dialect,
		columns: make(map[string][]string),
	}
}

// Flavor returns the sqlbuilder flavor statements must be built with
func (s *Session) Flavor() sqlbuilder.Flavor {
	return s.dialect.Flavor
}

// Dialect returns the session's dialect
func (s *Session) Dialect() Dialect {
	return s.dialect
}

// SelectAll runs query and returns every row in result order
func (s *Session) SelectAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.ext.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range row {
			row[k] = normalize(v)
		}
		result = append(result, Row(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// SelectValues runs query and returns the first column of every row
func (s *Session) SelectValues(ctx context.Context, query string, args ...any) ([]any, error) {
	rows, err := s.ext.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []any
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(cols) == 0 {
			continue
		}
		result = append(result, normalize(cols[0]))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// Exec runs a statement whose result is not consumed
func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.ext.ExecContext(ctx, query, args...)
	return err
}

// Quote renders v as a SQL literal for the session's dialect
func (s *Session) Quote(v any) string {
	query, args := sqlbuilder.Build("$?", v).BuildWithFlavor(s.dialect.Flavor)
	literal, err := s.dialect.Flavor.Interpolate(query, args)
	if err != nil {
		return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
	}
	return literal
}

// QuoteTableName quotes a possibly schema-qualified table name
func (s *Session) QuoteTableName(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = s.dialect.Flavor.Quote(part)
	}
	return strings.Join(parts, ".")
}

// QuoteColumnName quotes a single column identifier
func (s *Session) QuoteColumnName(name string) string {
	return s.dialect.Flavor.Quote(name)
}

// Statement renders query with its arguments inlined, for logging
func (s *Session) Statement(query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	sql, err := s.dialect.Flavor.Interpolate(query, args)
	if err != nil {
		literals := make([]string, len(args))
		for i, arg := range args {
			literals[i] = s.Quote(arg)
		}
		return query + " -- args: " + strings.Join(literals, ", ")
	}
	return sql
}

// Columns returns the column names of table in ordinal order. Results are
// cached for the lifetime of the session.
func (s *Session) Columns(ctx context.Context, table string) ([]string, error) {
	if cols, ok := s.columns[table]; ok {
		return cols, nil
	}

	values, err := s.SelectValues(ctx, s.dialect.columnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("table %s has no columns (does it exist?)", table)
	}

	cols := make([]string, 0, len(values))
	for _, v := range values {
		cols = append(cols, fmt.Sprint(v))
	}
	s.columns[table] = cols
	return cols, nil
}

// RequireTables verifies that every named table exists and returns the
// names of the missing ones in an error.
func (s *Session) RequireTables(ctx context.Context, tables ...string) error {
	var missing []string
	for _, table := range tables {
		if _, err := s.Columns(ctx, table); err != nil {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
