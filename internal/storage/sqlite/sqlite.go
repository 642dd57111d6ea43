// Package sqlite registers the "sqlite" executor, backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"etlmanifest/internal/query/sqlgen"
	"etlmanifest/internal/storage"
)

// Kind is the storage kind this package registers.
const Kind = "sqlite"

// Open opens and pings a SQLite database. DSN is passed to the driver as is,
// e.g. "etl.db" or "file:etl.db?_pragma=busy_timeout(5000)".
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite: ping")
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return db, nil
}

// openDB is a test hook that points to Open by default.
var openDB = Open

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Executor, error) {
		db, err := openDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLExecutor(db, sqlgen.SQLite, cfg.ComponentLogger(Kind)), nil
	})
}
