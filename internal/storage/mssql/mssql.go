// Package mssql registers the "mssql" executor using microsoft/go-mssqldb.
package mssql

import (
	"context"
	"database/sql"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/pkg/errors"

	"etlmanifest/internal/query/sqlgen"
	"etlmanifest/internal/storage"
)

const Kind = "mssql"

// CheckDSN reports whether dsn is a connection string the driver accepts.
// Both URL ("sqlserver://...") and ADO ("server=...;") forms are valid.
func CheckDSN(dsn string) error {
	if _, err := msdsn.Parse(dsn); err != nil {
		return errors.Wrap(err, "mssql: parse dsn")
	}
	return nil
}

// openDB is a test hook.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	if err := CheckDSN(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "mssql: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "mssql: ping")
	}
	return db, nil
}

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Executor, error) {
		db, err := openDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return storage.NewSQLExecutor(db, sqlgen.MSSQL, cfg.ComponentLogger(Kind)), nil
	})
}
