package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// CopyFn inserts rows aligned to columns and reports how many were written.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains in, groups rows into batches of batchSize and calls
// copyFn once per non-empty batch. It returns the total reported by copyFn
// and the first error. Used to seed demo tables.
func LoadBatches(
	ctx context.Context,
	log zerolog.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, errors.New("copyFn must not be nil")
	}

	var (
		total   int64
		batches int
		batch   = make([][]any, 0, batchSize)
		start   = time.Now()
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			return errors.Wrapf(err, "batch %d", batches+1)
		}
		batches++
		log.Debug().Int("batch", batches).Int64("inserted", n).Int64("total", total).Msg("batch loaded")
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				log.Debug().Int64("total", total).Dur("elapsed", time.Since(start)).Msg("load complete")
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// TxCopy returns a CopyFn inserting rows into table with one prepared
// statement per batch, inside a transaction. placeholder renders the n-th
// (1-based) bind marker.
func TxCopy(db interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}, table string, placeholder func(n int) string) CopyFn {
	return func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		if len(columns) == 0 {
			return 0, errors.New("columns must not be empty")
		}
		marks := make([]string, len(columns))
		for i := range marks {
			marks[i] = placeholder(i + 1)
		}
		stmtSQL := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return 0, errors.Wrap(err, "begin tx")
		}
		stmt, err := tx.PrepareContext(ctx, stmtSQL)
		if err != nil {
			_ = tx.Rollback()
			return 0, errors.Wrap(err, "prepare insert")
		}
		defer stmt.Close()

		var inserted int64
		for _, row := range rows {
			if len(row) != len(columns) {
				_ = tx.Rollback()
				return 0, errors.Errorf("row length %d != columns length %d", len(row), len(columns))
			}
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				_ = tx.Rollback()
				return 0, errors.Wrap(err, "insert")
			}
			inserted++
		}
		if err := tx.Commit(); err != nil {
			return 0, errors.Wrap(err, "commit")
		}
		return inserted, nil
	}
}
