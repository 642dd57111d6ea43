// Package mysql registers the "mysql" executor using go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"etlmanifest/internal/query/sqlgen"
	"etlmanifest/internal/storage"
)

const Kind = "mysql"

// FormatDSN validates dsn and turns on the options the executor relies on:
// DATETIME columns scan into time.Time.
func FormatDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "mysql: parse dsn")
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// openDB is a test hook.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn, err := FormatDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "mysql: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "mysql: ping")
	}
	return db, nil
}

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Executor, error) {
		db, err := openDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLExecutor(db, sqlgen.MySQL, cfg.ComponentLogger(Kind)), nil
	})
}
