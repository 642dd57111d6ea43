// Package all wires every built-in executor into the storage factory.
// Import it for side effects:
//
//	import _ "etlmanifest/internal/storage/all"
//
// After that storage.New accepts the kinds "sqlite", "sqlite3", "postgres",
// "mysql" and "mssql".
package all

import (
	_ "etlmanifest/internal/storage/mssql"
	_ "etlmanifest/internal/storage/mysql"
	_ "etlmanifest/internal/storage/postgres"
	_ "etlmanifest/internal/storage/sqlite"
	_ "etlmanifest/internal/storage/sqlite3"
)
