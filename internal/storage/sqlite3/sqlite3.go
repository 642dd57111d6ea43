// Package sqlite3 registers the "sqlite3" executor, backed by the cgo
// github.com/mattn/go-sqlite3 driver. It renders the same SQL as "sqlite".
package sqlite3

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"etlmanifest/internal/query/sqlgen"
	"etlmanifest/internal/storage"
)

const Kind = "sqlite3"

// openDB is a test hook.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite3: DSN must not be empty")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite3: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite3: ping")
	}
	return db, nil
}

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Executor, error) {
		db, err := openDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLExecutor(db, sqlgen.SQLite, cfg.ComponentLogger(Kind)), nil
	})
}
