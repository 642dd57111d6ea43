// Package demo creates and fills the sample users/orders/payments schema that
// the example manifest runs against.
//
// The schema is managed with goose migrations embedded in the binary. Seed
// data is generated relative to a reference time so that the example's
// "last_month" window always has rows to aggregate.
package demo

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"time"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"etlmanifest/internal/metrics"
	"etlmanifest/internal/query"
	"etlmanifest/internal/storage"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

//go:embed example.yaml
var exampleManifest []byte

// ExampleManifest returns a manifest that exercises the seeded tables.
func ExampleManifest() []byte {
	out := make([]byte, len(exampleManifest))
	copy(out, exampleManifest)
	return out
}

// TimeLayout is how seeded timestamps are stored; it sorts lexically.
const TimeLayout = "2006-01-02 15:04:05"

const batchSize = 100

// gooseLogger routes goose output into zerolog.
type gooseLogger struct{ log zerolog.Logger }

func (g gooseLogger) Printf(format string, v ...any) { g.log.Info().Msgf(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...any) { g.log.Error().Msgf(format, v...) }

// Migrate applies every pending migration to a SQLite database.
func Migrate(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	fsys, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "demo: migrations fs")
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys,
		goose.WithLogger(gooseLogger{log: log}),
	)
	if err != nil {
		return errors.Wrap(err, "demo: goose provider")
	}
	results, err := p.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "demo: migrate")
	}
	for _, r := range results {
		log.Info().
			Int64("version", r.Source.Version).
			Dur("took", r.Duration).
			Msg("migration applied")
	}
	return nil
}

// Table is one seeded table: column names and row values in column order.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Summary reports rows inserted per table.
type Summary map[string]int64

// Data returns the demo rows, with timestamps placed around the calendar
// month before now.
func Data(now time.Time) []Table {
	start, _ := query.LastMonth(now)
	thisMonth := start.AddDate(0, 1, 0)
	at := func(t time.Time) string { return t.Format(TimeLayout) }
	day := func(n int) string { return at(start.AddDate(0, 0, n).Add(10 * time.Hour)) }

	return []Table{
		{
			Name:    "users",
			Columns: []string{"id", "name", "email", "status", "created_at"},
			Rows: [][]any{
				{1, "Ann Archer", "ann@example.com", "active", day(-90)},
				{2, "Bob Brown", "bob@example.com", "active", day(-60)},
				{3, "Cy Cole", "cy@example.com", "inactive", day(-45)},
				{4, "Di Dunn", "di@example.com", "active", day(-30)},
				{5, "Ed Evans", "ed@example.com", "active", day(1)},
			},
		},
		{
			Name:    "orders",
			Columns: []string{"id", "user_id", "amount", "created_at", "refunded_at"},
			Rows: [][]any{
				{1, 1, 25.5, day(2), nil},
				{2, 1, 74.5, day(10), nil},
				{3, 1, 10.0, at(thisMonth.Add(time.Hour)), nil},
				{4, 2, 100.0, day(5), nil},
				{5, 2, 20.0, day(6), day(8)},
				{6, 3, 40.0, day(7), nil},
				{7, 4, 15.25, day(-3), nil},
			},
		},
		{
			Name:    "payments",
			Columns: []string{"id", "user_id", "amount", "method", "created_at", "refunded_at"},
			Rows: [][]any{
				{1, 1, 49.99, "card", day(3), nil},
				{2, 1, 5.0, "card", day(4), nil},
				{3, 2, 120.0, "paypal", day(5), nil},
				{4, 4, 300.0, "card", day(6), day(9)},
				{5, 5, 12.0, "transfer", day(7), nil},
			},
		},
	}
}

// Seed inserts Data(now) into db in batches. The tables must exist and be
// empty.
func Seed(ctx context.Context, db *sql.DB, log zerolog.Logger, now time.Time) (Summary, error) {
	sum := Summary{}
	for _, tbl := range Data(now) {
		n, err := load(ctx, db, log, tbl)
		if err != nil {
			return sum, errors.Wrapf(err, "demo: seed %s", tbl.Name)
		}
		sum[tbl.Name] = n
		metrics.RecordRows("seed", "seeded", n)
		log.Info().Str("table", tbl.Name).Int64("rows", n).Msg("table seeded")
	}
	return sum, nil
}

func load(ctx context.Context, db *sql.DB, log zerolog.Logger, tbl Table) (int64, error) {
	in := make(chan []any)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer close(in)
		for _, row := range tbl.Rows {
			select {
			case in <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	copyFn := storage.TxCopy(db, tbl.Name, func(int) string { return "?" })
	counted := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		n, err := copyFn(ctx, columns, rows)
		if err == nil {
			metrics.RecordBatches("seed", 1)
		}
		return n, err
	}
	return storage.LoadBatches(ctx, log.With().Str("table", tbl.Name).Logger(), tbl.Columns, in, batchSize, counted)
}
