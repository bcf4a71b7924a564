// Package sqliteexternal provides the optional CGO SQLite driver.
//
// The annotation store opens databases through core/sqlite, which uses the
// pure Go modernc.org/sqlite driver unless built with the cgo_sqlite tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/marginalia
//
// With the tag, core/sqlite imports this package and registers
// github.com/mattn/go-sqlite3 under the "sqlite3" driver name instead.
package sqliteexternal
