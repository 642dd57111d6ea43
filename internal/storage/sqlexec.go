package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"etlmanifest/internal/query"
	"etlmanifest/internal/query/sqlgen"
	"etlmanifest/pkg/records"
)

// DB is the subset of *sql.DB used by SQLExecutor.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// SQLExecutor runs plans through database/sql. The sqlite, sqlite3, mysql
// and mssql backends are thin constructors around it.
type SQLExecutor struct {
	db      DB
	dialect *sqlgen.Dialect
	log     zerolog.Logger
}

// NewSQLExecutor wraps db, rendering plans with dialect.
func NewSQLExecutor(db DB, dialect *sqlgen.Dialect, log zerolog.Logger) *SQLExecutor {
	return &SQLExecutor{db: db, dialect: dialect, log: log}
}

// Execute renders plan, runs it and collects every row.
func (e *SQLExecutor) Execute(ctx context.Context, plan *query.Plan) ([]records.Row, error) {
	stmt, args, err := sqlgen.Render(plan, e.dialect)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrapf(ErrExecution, "%s: %v", e.dialect.Name(), err)
	}
	defer rows.Close()

	out, err := ScanRows(rows)
	if err != nil {
		return nil, errors.Wrapf(ErrExecution, "%s: %v", e.dialect.Name(), err)
	}
	e.log.Debug().
		Str("dialect", e.dialect.Name()).
		Str("sql", stmt).
		Int("rows", len(out)).
		Dur("took", time.Since(start)).
		Msg("plan executed")
	return out, nil
}

// Close closes the underlying pool.
func (e *SQLExecutor) Close() error { return e.db.Close() }

// ScanRows drains rows into ordered records, keeping column order.
func ScanRows(rows *sql.Rows) ([]records.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []records.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = Normalize(v)
		}
		out = append(out, records.NewRow(cols, vals))
	}
	return out, rows.Err()
}

// Normalize converts driver values into plain scalars: byte slices become
// strings.
func Normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
