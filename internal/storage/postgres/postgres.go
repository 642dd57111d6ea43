// Package postgres registers the "postgres" executor, which runs plans on a
// pgx v5 connection pool.
package postgres

import (
	"context"
	"database/sql/driver"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"etlmanifest/internal/query"
	"etlmanifest/internal/query/sqlgen"
	"etlmanifest/internal/storage"
	"etlmanifest/pkg/records"
)

const Kind = "postgres"

// Querier is the subset of *pgxpool.Pool the executor needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Executor runs plans against Postgres.
type Executor struct {
	pool Querier
	log  zerolog.Logger
}

var _ storage.Executor = (*Executor)(nil)

// New wraps an open pool.
func New(pool Querier, log zerolog.Logger) *Executor {
	return &Executor{pool: pool, log: log}
}

// Execute renders plan with $n placeholders and collects every row.
func (e *Executor) Execute(ctx context.Context, plan *query.Plan) ([]records.Row, error) {
	stmt, args, err := sqlgen.Render(plan, sqlgen.Postgres)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := e.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrapf(storage.ErrExecution, "postgres: %v", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	var out []records.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, errors.Wrapf(storage.ErrExecution, "postgres: %v", err)
		}
		for i, v := range vals {
			vals[i] = scalar(v)
		}
		out = append(out, records.NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(storage.ErrExecution, "postgres: %v", err)
	}

	e.log.Debug().Str("sql", stmt).Int("rows", len(out)).Dur("took", time.Since(start)).Msg("plan executed")
	return out, nil
}

// Close releases the pool.
func (e *Executor) Close() error {
	e.pool.Close()
	return nil
}

// scalar flattens pgtype values (numeric, uuid, ...) into driver scalars.
func scalar(v any) any {
	if vr, ok := v.(driver.Valuer); ok {
		if dv, err := vr.Value(); err == nil {
			return storage.Normalize(dv)
		}
	}
	return storage.Normalize(v)
}

// newPool is a test hook that points to pgxpool.New by default.
var newPool = func(ctx context.Context, dsn string) (Querier, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool")
	}
	return pool, nil
}

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Executor, error) {
		pool, err := newPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return New(pool, cfg.ComponentLogger(Kind)), nil
	})
}
