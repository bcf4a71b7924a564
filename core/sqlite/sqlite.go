// Package sqlite opens the annotation database with the driver selected at
// build time.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite, registered as "sqlite"
//   - -tags cgo_sqlite (CGO_ENABLED=1): mattn/go-sqlite3 via
//     contrib/sqlite-external, registered as "sqlite3"
//
// Use Open rather than sql.Open so callers never name a driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DriverName returns the database/sql driver name in use.
func DriverName() string {
	return driverName
}

// DriverType returns "purego" or "cgo".
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO driver is compiled in.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a database. dsn is a file path, ":memory:", or a file: URI.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open(driverName, dsn)
}

// OpenReadOnly opens an existing database file in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open("file:" + path + "?mode=ro")
}

// OpenFile opens path for read-write use and applies the connection pragmas.
// The pool is limited to one connection so pragmas and in-memory databases
// apply to every statement.
func OpenFile(ctx context.Context, path string) (*sql.DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := Configure(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// pragmas are applied by Configure.
var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Configure enables foreign keys and a busy timeout.
func Configure(ctx context.Context, db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Migrate brings the schema up to date. migrations[i] upgrades from version i
// to i+1; the current version is kept in PRAGMA user_version. Each migration
// runs in its own transaction. It returns the resulting version.
func Migrate(ctx context.Context, db *sql.DB, migrations []string) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return version, fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}
	for ; version < len(migrations); version++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return version, err
		}
		for _, stmt := range splitStatements(migrations[version]) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return version, fmt.Errorf("migration %d: %w", version+1, err)
			}
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			tx.Rollback()
			return version, fmt.Errorf("migration %d: %w", version+1, err)
		}
		if err := tx.Commit(); err != nil {
			return version, fmt.Errorf("migration %d: %w", version+1, err)
		}
	}
	return version, nil
}

// splitStatements splits a migration on semicolons. Migrations must not put
// semicolons inside literals.
func splitStatements(s string) []string {
	var out []string
	for _, stmt := range strings.Split(s, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Info describes the compiled-in driver.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns the driver description.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
